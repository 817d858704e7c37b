package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	Optimizer OptimizerConfig `json:"optimizer"`
	Logging   LoggingConfig   `json:"logging"`
}

// OptimizerConfig selects the optimizer recipe and the batch layout it is scaled for
type OptimizerConfig struct {
	Model     string `json:"model"`
	BatchSize int    `json:"batch_size"`
	NumGPUs   int    `json:"num_gpus"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// DefaultConfig returns the reference configuration
func DefaultConfig() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			Model:     "alexnet",
			BatchSize: 128,
			NumGPUs:   1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the fields the rest of the program relies on.
// Batch size and GPU count are passed through unchecked.
func (c *Config) Validate() error {
	if c.Optimizer.Model == "" {
		return errors.New("optimizer model must be set")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	return nil
}

// Load reads and parses the configuration file.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}
