package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edp1096/cck-mna/internal/consts"
	"github.com/edp1096/cck-mna/pkg/analysis"
	"github.com/edp1096/cck-mna/pkg/device"
	"github.com/edp1096/cck-mna/pkg/matrix"
)

const (
	DefaultDuration = 1.0
	DefaultBackend  = "sparse"
	DefaultMethod   = "be"
	DefaultLogLevel = "info"
)

type Config struct {
	Backend     string  `yaml:"backend"`
	Method      string  `yaml:"method"`
	Dt          float64 `yaml:"dt"`
	Duration    float64 `yaml:"duration"`
	Start       float64 `yaml:"start"`
	ResidualTol float64 `yaml:"residual_tol"`
	MaxIter     int     `yaml:"max_iter"`
	LogLevel    string  `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:     DefaultBackend,
		Method:      DefaultMethod,
		Dt:          consts.DefaultTimeStep,
		Duration:    DefaultDuration,
		ResidualTol: consts.ResidualTolerance,
		MaxIter:     consts.MaxIterations,
		LogLevel:    DefaultLogLevel,
	}
}

// Load reads path over the defaults, so a file only needs the fields it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := matrix.ParseBackend(c.Backend); err != nil {
		return err
	}
	if _, err := c.IntegrationMethod(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	if c.Start < 0 || c.Start > c.Duration {
		return fmt.Errorf("start %g outside [0, %g]", c.Start, c.Duration)
	}
	if c.ResidualTol <= 0 {
		return fmt.Errorf("residual_tol must be positive, got %g", c.ResidualTol)
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("max_iter must be at least 1, got %d", c.MaxIter)
	}
	return nil
}

// IntegrationMethod maps "be" and "tr" (or their long names) to device.BE
// and device.TR.
func (c *Config) IntegrationMethod() (int, error) {
	switch strings.ToLower(c.Method) {
	case "be", "euler", "backward-euler", "":
		return device.BE, nil
	case "tr", "trap", "trapezoidal":
		return device.TR, nil
	}
	return 0, fmt.Errorf("unknown integration method %q", c.Method)
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// SolverOptions turns the configuration into solver options. Call Validate
// first; invalid fields fall back to the solver defaults.
func (c *Config) SolverOptions(logger *slog.Logger) []analysis.Option {
	opts := []analysis.Option{
		analysis.WithResidualTolerance(c.ResidualTol),
		analysis.WithMaxIterations(c.MaxIter),
	}
	if backend, err := matrix.ParseBackend(c.Backend); err == nil {
		opts = append(opts, analysis.WithBackend(backend))
	}
	if method, err := c.IntegrationMethod(); err == nil {
		opts = append(opts, analysis.WithMethod(method))
	}
	if logger != nil {
		opts = append(opts, analysis.WithLogger(logger))
	}
	return opts
}
