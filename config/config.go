// Package config loads the YAML configuration for a fit run: logging,
// particle counts, the tolerance schedule (explicit or adaptive), prior
// expressions, and the failure/concurrency limits handed to abcloop.Loop.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level fit configuration.
type Config struct {
	Logging  LoggingConfig   `yaml:"logging"`
	Fit      FitConfig       `yaml:"fit"`
	Priors   []string        `yaml:"priors"`
	Schedule *ScheduleConfig `yaml:"schedule"`
	// Continuation is an additional tolerance schedule appended to an
	// existing fit's history by the "continue" subcommand. Its columns
	// must continue strictly decreasing from Schedule's last column.
	Continuation *ScheduleConfig `yaml:"continuation"`
}

// LoggingConfig controls the zerolog writer.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FitConfig controls the ABC-SMC run itself.
type FitConfig struct {
	Target        string `yaml:"target"` // "gdata" or "ldata"
	NParticles    int    `yaml:"n_particles"`
	NInit         int    `yaml:"n_init"` // used only when Schedule is nil (adaptive mode)
	FailureBudget int    `yaml:"failure_budget"`
	MaxBatch      int    `yaml:"max_batch"`
	Seed          uint64 `yaml:"seed"`
}

// ScheduleConfig is an explicit S x G tolerance schedule, row-major by
// summary statistic.
type ScheduleConfig struct {
	Rows [][]float64 `yaml:"rows"`
}

// DefaultConfig returns the fit defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Fit: FitConfig{
			Target:        "gdata",
			NParticles:    1000,
			FailureBudget: 1000,
			MaxBatch:      100000,
		},
	}
}

// Load reads and parses a YAML config file, falling back to defaults if
// path does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "abcsmc.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Fit.Target != "gdata" && c.Fit.Target != "ldata" {
		return fmt.Errorf("fit.target must be \"gdata\" or \"ldata\", got %q", c.Fit.Target)
	}
	if c.Fit.NParticles <= 0 {
		return fmt.Errorf("fit.n_particles must be positive")
	}
	if len(c.Priors) == 0 {
		return fmt.Errorf("at least one prior expression is required")
	}
	if c.Schedule == nil && c.Fit.NInit <= c.Fit.NParticles {
		return fmt.Errorf("fit.n_init must exceed fit.n_particles when no schedule is supplied")
	}
	if c.Schedule != nil {
		for i, row := range c.Schedule.Rows {
			for g := 1; g < len(row); g++ {
				if row[g] >= row[g-1] {
					return fmt.Errorf("schedule row %d is not strictly decreasing at column %d", i, g)
				}
			}
		}
	}
	return nil
}
