// Package baseline runs an external optimiser on catalog problems so the
// roster algorithms can be compared against it.
package baseline

import (
	"math/rand"
	"time"

	"github.com/cwbudde/mayfly"

	apperrors "github.com/copyleftdev/landscape/internal/errors"
	"github.com/copyleftdev/landscape/internal/optimization"
)

// MinPopSize is the smallest population the mayfly library accepts.
const MinPopSize = 20

// Config parameterises a baseline run.
type Config struct {
	Iterations int
	PopSize    int
	// Seed 0 seeds from the clock
	Seed      int64
	Direction optimization.Direction
}

// DefaultConfig returns the configuration used by the bench command.
func DefaultConfig() Config {
	return Config{
		Iterations: 100,
		PopSize:    MinPopSize,
		Direction:  optimization.Minimize,
	}
}

// Result is the best point a baseline run found.
type Result struct {
	Function string
	Value    float64
	Point    []float64
}

// Mayfly runs the mayfly algorithm on p over dims coordinates. Maximisation
// is done by minimising the negated objective.
func Mayfly(p optimization.Problem, dims int, cfg Config) (Result, error) {
	if dims < 1 {
		return Result{}, apperrors.Invalidf("dimensions must be positive, got %d", dims)
	}
	if cfg.Iterations < 1 {
		return Result{}, apperrors.Invalidf("iterations must be positive, got %d", cfg.Iterations)
	}
	if cfg.PopSize < MinPopSize {
		return Result{}, apperrors.Invalidf("mayfly needs a population of at least %d, got %d", MinPopSize, cfg.PopSize)
	}

	sign := 1.0
	if cfg.Direction == optimization.Maximize {
		sign = -1
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mc := mayfly.NewDefaultConfig()
	mc.ObjectiveFunc = func(x []float64) float64 { return sign * p.Func(x) }
	mc.ProblemSize = dims
	mc.MaxIterations = cfg.Iterations
	mc.NPop = cfg.PopSize
	mc.LowerBound = p.Bounds.Low
	mc.UpperBound = p.Bounds.High
	mc.Rand = rand.New(rand.NewSource(seed))

	res, err := mayfly.Optimize(mc)
	if err != nil {
		return Result{}, apperrors.Wrapf(err, "mayfly on %s", p.Name)
	}
	return Result{
		Function: p.Name,
		Value:    sign * res.GlobalBest.Cost,
		Point:    append([]float64(nil), res.GlobalBest.Position...),
	}, nil
}
