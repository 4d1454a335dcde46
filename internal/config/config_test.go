package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 60*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "landscape", cfg.Metrics.Namespace)

	s := cfg.Solver
	assert.Equal(t, 2, s.Dimensions)
	assert.Equal(t, 20, s.Precision)
	assert.Equal(t, 1, s.BrutePrecision)
	assert.Equal(t, 50, s.PopSize)
	assert.Equal(t, 1, s.Generations)
	assert.Equal(t, 200, s.Grace)
	assert.Equal(t, 1, s.Steps)
	assert.Equal(t, int64(0), s.Seed)
	assert.False(t, s.Forever)
	assert.True(t, s.TrailingForever)
	assert.Empty(t, s.Functions)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HTTP_PORT":          "9090",
		"SOLVER_DIMENSIONS":  "3",
		"SOLVER_POP_SIZE":    "20",
		"SOLVER_SEED":        "42",
		"SOLVER_FOREVER":     "true",
		"SOLVER_FUNCTIONS":   "sphere,rastrigin",
		"SOLVER_GENERATIONS": "10",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 3, cfg.Solver.Dimensions)
	assert.Equal(t, 20, cfg.Solver.PopSize)
	assert.Equal(t, int64(42), cfg.Solver.Seed)
	assert.True(t, cfg.Solver.Forever)
	assert.Equal(t, []string{"sphere", "rastrigin"}, cfg.Solver.Functions)
	assert.Equal(t, 10, cfg.Solver.Generations)
}

func TestLoadRejectsInvalidSolver(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero dimensions", "SOLVER_DIMENSIONS", "0"},
		{"zero population", "SOLVER_POP_SIZE", "0"},
		{"zero generations", "SOLVER_GENERATIONS", "0"},
		{"negative grace", "SOLVER_GRACE", "-1"},
		{"zero steps", "SOLVER_STEPS", "0"},
		{"negative precision", "SOLVER_PRECISION", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(map[string]string{tt.key: tt.val})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	_, err := LoadFrom(map[string]string{"SOLVER_POP_SIZE": "many"})
	assert.Error(t, err)
}
