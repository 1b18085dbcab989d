// Package config loads the service and CLI configuration from the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/gradopt/internal/optimization/descent"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		Method            string  `env:"OPT_METHOD" envDefault:"bfgs"`
		LineSearch        string  `env:"OPT_LINE_SEARCH" envDefault:"wolfe"`
		GradientTolerance float64 `env:"OPT_GRADIENT_TOLERANCE" envDefault:"1e-9"`
		RelativeTolerance float64 `env:"OPT_RELATIVE_TOLERANCE" envDefault:"1e-9"`
		MaxIterations     int     `env:"OPT_MAX_ITERATIONS" envDefault:"100000"`

		LineSearchMaxIterations int     `env:"OPT_LS_MAX_ITERATIONS" envDefault:"1000"`
		ArmijoCoeff             float64 `env:"OPT_ARMIJO_COEFF" envDefault:"1e-4"`
		WolfeCoeff              float64 `env:"OPT_WOLFE_COEFF" envDefault:"0.9"`
		ContractionCoeff        float64 `env:"OPT_CONTRACTION_COEFF" envDefault:"0.5"`

		MaxDimension int           `env:"OPT_MAX_DIMENSION" envDefault:"1000"`
		WorkerCount  int           `env:"OPT_WORKER_COUNT" envDefault:"4"`
		JobRetention time.Duration `env:"OPT_JOB_RETENTION" envDefault:"1h"`
	}
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that env cannot express.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: HTTP_PORT out of range: %d", c.HTTP.Port)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}
	if c.Optimization.MaxDimension < 1 {
		return fmt.Errorf("config: OPT_MAX_DIMENSION must be at least 1, got %d", c.Optimization.MaxDimension)
	}
	if c.Optimization.WorkerCount < 1 {
		return fmt.Errorf("config: OPT_WORKER_COUNT must be at least 1, got %d", c.Optimization.WorkerCount)
	}
	if c.Optimization.JobRetention <= 0 {
		return fmt.Errorf("config: OPT_JOB_RETENTION must be positive, got %s", c.Optimization.JobRetention)
	}
	if err := c.Solver().Validate(); err != nil {
		return fmt.Errorf("config: invalid solver settings: %w", err)
	}
	return nil
}

// Solver returns the default optimizer description of the service.
func (c *Config) Solver() descent.Spec {
	opt := c.Optimization
	return descent.Spec{
		Method:                  opt.Method,
		LineSearch:              opt.LineSearch,
		GradientTolerance:       opt.GradientTolerance,
		RelativeTolerance:       opt.RelativeTolerance,
		MaxIterations:           opt.MaxIterations,
		LineSearchMaxIterations: opt.LineSearchMaxIterations,
		ArmijoCoeff:             opt.ArmijoCoeff,
		WolfeCoeff:              opt.WolfeCoeff,
		ContractionCoeff:        opt.ContractionCoeff,
	}
}
