// Package config loads config.yaml.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"irisnet/logger"
	"irisnet/ml"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log   logger.Config     `yaml:"log"`
	ML    ml.TrainingConfig `yaml:"ml"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Form struct {
		// StrictInput rejects measurements that do not parse as finite
		// numbers instead of passing NaN to the model.
		StrictInput bool   `yaml:"strict_input"`
		Language    string `yaml:"language"`
	} `yaml:"form"`
}

// Default returns the configuration used when config.yaml omits a value.
func Default() *Config {
	c := &Config{}
	c.Http.Port = 8080
	c.Http.Timeout = 30 * time.Second
	c.Http.AllowedOrigins = []string{"*"}
	c.Http.MaxBodyBytes = 1 << 20
	c.Database.Path = "data/irisnet.db"
	c.Log = logger.DefaultConfig()
	c.ML = ml.DefaultTrainingConfig()
	c.Cache.Size = 1024
	c.Form.StrictInput = true
	c.Form.Language = "es"
	return c
}

// Load reads path on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.Http.Port)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return c.ML.Validate()
}
