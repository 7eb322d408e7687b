package ml

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var ErrInvalidConfig = errors.New("invalid training config")

// TrainingConfig controls a single training run.
type TrainingConfig struct {
	MaxIterations  int     `yaml:"max_iterations" json:"max_iterations"`
	ErrorThreshold float64 `yaml:"error_threshold" json:"error_threshold"`
	LogPeriod      int     `yaml:"log_period" json:"log_period"`
	Log            bool    `yaml:"log" json:"log"`

	HiddenLayers []int   `yaml:"hidden_layers" json:"hidden_layers"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Momentum     float64 `yaml:"momentum" json:"momentum"`
	Activation   string  `yaml:"activation" json:"activation"`
	Seed         int64   `yaml:"seed" json:"seed"`
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		MaxIterations:  2000,
		ErrorThreshold: 0.005,
		LogPeriod:      100,
		Log:            true,
		HiddenLayers:   []int{3},
		LearningRate:   0.3,
		Momentum:       0.1,
		Activation:     "sigmoid",
		Seed:           1,
	}
}

func (c TrainingConfig) Validate() error {
	var err error
	if c.MaxIterations <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: max_iterations must be positive, got %d", ErrInvalidConfig, c.MaxIterations))
	}
	if c.ErrorThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: error_threshold must not be negative, got %g", ErrInvalidConfig, c.ErrorThreshold))
	}
	if c.LogPeriod < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: log_period must not be negative, got %d", ErrInvalidConfig, c.LogPeriod))
	}
	if c.LearningRate <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: learning_rate must be positive, got %g", ErrInvalidConfig, c.LearningRate))
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		err = multierr.Append(err, fmt.Errorf("%w: momentum must be in [0,1), got %g", ErrInvalidConfig, c.Momentum))
	}
	for i, size := range c.HiddenLayers {
		if size <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: hidden layer %d has size %d", ErrInvalidConfig, i, size))
		}
	}
	if _, lookupErr := activationByName(c.Activation); lookupErr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %v", ErrInvalidConfig, lookupErr))
	}
	return err
}
