package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Metrics struct {
		Namespace string `env:"METRICS_NAMESPACE" envDefault:"landscape"`
	}
	Solver Solver
}

// Solver holds the parameters the default algorithm roster is built from.
type Solver struct {
	Dimensions      int      `env:"SOLVER_DIMENSIONS" envDefault:"2"`
	Precision       int      `env:"SOLVER_PRECISION" envDefault:"20"`
	BrutePrecision  int      `env:"SOLVER_BRUTE_PRECISION" envDefault:"1"`
	PopSize         int      `env:"SOLVER_POP_SIZE" envDefault:"50"`
	Generations     int      `env:"SOLVER_GENERATIONS" envDefault:"1"`
	Grace           int      `env:"SOLVER_GRACE" envDefault:"200"`
	Steps           int      `env:"SOLVER_STEPS" envDefault:"1"`
	Seed            int64    `env:"SOLVER_SEED" envDefault:"0"`
	Forever         bool     `env:"SOLVER_FOREVER" envDefault:"false"`
	RunAll          bool     `env:"SOLVER_RUN_ALL" envDefault:"false"`
	Functions       []string `env:"SOLVER_FUNCTIONS" envSeparator:","`
	Maximize        bool     `env:"SOLVER_MAXIMIZE" envDefault:"false"`
	TrailingForever bool     `env:"SOLVER_TRAILING_FOREVER" envDefault:"true"`
}

// Validate rejects parameters no algorithm can be built from.
func (s Solver) Validate() error {
	checks := []struct {
		name  string
		value int
		min   int
	}{
		{"SOLVER_DIMENSIONS", s.Dimensions, 1},
		{"SOLVER_PRECISION", s.Precision, 0},
		{"SOLVER_BRUTE_PRECISION", s.BrutePrecision, 0},
		{"SOLVER_POP_SIZE", s.PopSize, 1},
		{"SOLVER_GENERATIONS", s.Generations, 1},
		{"SOLVER_GRACE", s.Grace, 0},
		{"SOLVER_STEPS", s.Steps, 1},
	}
	for _, c := range checks {
		if c.value < c.min {
			return fmt.Errorf("%s must be at least %d, got %d", c.name, c.min, c.value)
		}
	}
	return nil
}

func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom parses configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Solver.Validate(); err != nil {
		return nil, fmt.Errorf("invalid solver configuration: %w", err)
	}

	return cfg, nil
}
