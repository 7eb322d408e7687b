package ml

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Progress is reported every LogPeriod iterations while training.
type Progress struct {
	Iteration int     `json:"iteration"`
	Error     float64 `json:"error"`
}

func (p Progress) String() string {
	return fmt.Sprintf("iterations: %d, training error: %g", p.Iteration, p.Error)
}

type ProgressFunc func(Progress)

// TrainingResult summarises a finished run.
type TrainingResult struct {
	Iterations int           `json:"iterations"`
	Error      float64       `json:"error"`
	Duration   time.Duration `json:"duration"`
	Accuracy   float64       `json:"accuracy"`
	Samples    int           `json:"samples"`
}

// Converged reports whether training stopped on the error threshold rather
// than the iteration cap.
func (r TrainingResult) Converged(config TrainingConfig) bool {
	return r.Error <= config.ErrorThreshold
}

type Trainer struct {
	config   TrainingConfig
	logger   *zap.Logger
	progress []ProgressFunc
}

func NewTrainer(config TrainingConfig, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{config: config, logger: logger}
}

// OnProgress registers fn to receive progress reports. It is only called when
// logging is enabled in the config.
func (t *Trainer) OnProgress(fn ProgressFunc) {
	t.progress = append(t.progress, fn)
}

// Train is shorthand for NewTrainer(config, nil).Train(ctx, dataset).
func Train(ctx context.Context, dataset Dataset, config TrainingConfig) (*Model, TrainingResult, error) {
	return NewTrainer(config, nil).Train(ctx, dataset)
}

// Train fits a new model to dataset. It runs until the mean error drops to
// the configured threshold or MaxIterations passes have been made.
func (t *Trainer) Train(ctx context.Context, dataset Dataset) (*Model, TrainingResult, error) {
	var result TrainingResult
	if err := dataset.Validate(); err != nil {
		return nil, result, fmt.Errorf("validate dataset: %w", err)
	}
	if err := t.config.Validate(); err != nil {
		return nil, result, err
	}
	hidden, _ := activationByName(t.config.Activation)

	sizes := append([]int{NumFeatures}, t.config.HiddenLayers...)
	sizes = append(sizes, NumClasses)
	state := newTrainingState(newModel(sizes, hidden, rand.New(rand.NewSource(t.config.Seed))), t.config)

	inputs := make([][]float64, len(dataset))
	for i, s := range dataset {
		inputs[i] = s.Features.Vector()
	}

	t.logger.Info("training started",
		zap.Int("samples", len(dataset)),
		zap.Ints("shape", sizes),
		zap.Int("max_iterations", t.config.MaxIterations),
		zap.Float64("error_threshold", t.config.ErrorThreshold))

	start := time.Now()
	trainErr := 1.0
	iterations := 0
	for iterations < t.config.MaxIterations && trainErr > t.config.ErrorThreshold {
		if err := ctx.Err(); err != nil {
			return nil, result, fmt.Errorf("training interrupted after %d iterations: %w", iterations, err)
		}
		iterations++
		sum := 0.0
		for i, s := range dataset {
			sum += state.step(inputs[i], s.Label)
		}
		trainErr = sum / float64(len(dataset))

		if t.config.Log && t.config.LogPeriod > 0 && iterations%t.config.LogPeriod == 0 {
			t.report(Progress{Iteration: iterations, Error: trainErr})
		}
	}

	result = TrainingResult{
		Iterations: iterations,
		Error:      trainErr,
		Duration:   time.Since(start),
		Samples:    len(dataset),
	}
	result.Accuracy, _ = Evaluate(state.model, dataset)

	t.logger.Info("training completed",
		zap.Int("iterations", result.Iterations),
		zap.Float64("error", result.Error),
		zap.Float64("accuracy", result.Accuracy),
		zap.Duration("duration", result.Duration))
	return state.model, result, nil
}

func (t *Trainer) report(p Progress) {
	t.logger.Info("training progress", zap.Int("iterations", p.Iteration), zap.Float64("training_error", p.Error))
	for _, fn := range t.progress {
		fn(p)
	}
}

// trainingState holds what backpropagation needs beyond the model itself.
type trainingState struct {
	model        *Model
	changes      []*mat.Dense
	learningRate float64
	momentum     float64
}

func newTrainingState(model *Model, config TrainingConfig) *trainingState {
	changes := make([]*mat.Dense, len(model.layers))
	for i, l := range model.layers {
		r, c := l.weights.Dims()
		changes[i] = mat.NewDense(r, c, nil)
	}
	return &trainingState{
		model:        model,
		changes:      changes,
		learningRate: config.LearningRate,
		momentum:     config.Momentum,
	}
}

// step runs one forward and backward pass on a single sample, updates the
// weights and returns the mean squared error of the output before the update.
func (s *trainingState) step(input []float64, target Label) float64 {
	layers := s.model.layers
	acts := s.model.activations(input)
	last := len(layers) - 1
	out := acts[last+1]

	deltas := make([]*mat.VecDense, len(layers))
	deltas[last] = mat.NewVecDense(out.Len(), nil)
	mse := 0.0
	for k := 0; k < out.Len(); k++ {
		y := out.AtVec(k)
		e := target[k] - y
		mse += e * e
		deltas[last].SetVec(k, e*layers[last].act.derivative(y))
	}
	mse /= float64(out.Len())

	for l := last - 1; l >= 0; l-- {
		errs := mat.NewVecDense(layers[l].biases.Len(), nil)
		errs.MulVec(layers[l+1].weights.T(), deltas[l+1])
		for i := 0; i < errs.Len(); i++ {
			errs.SetVec(i, errs.AtVec(i)*layers[l].act.derivative(acts[l+1].AtVec(i)))
		}
		deltas[l] = errs
	}

	for l := range layers {
		var change mat.Dense
		change.Outer(s.learningRate, deltas[l], acts[l])
		s.changes[l].Scale(s.momentum, s.changes[l])
		s.changes[l].Add(s.changes[l], &change)
		layers[l].weights.Add(layers[l].weights, s.changes[l])
		layers[l].biases.AddScaledVec(layers[l].biases, s.learningRate, deltas[l])
	}
	return mse
}
