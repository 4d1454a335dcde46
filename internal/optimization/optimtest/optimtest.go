// Package optimtest provides objectives and random sources for algorithm tests.
package optimtest

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// Sphere is f(x) = sum(x_i^2) over [-5.12, 5.12].
var Sphere = optimization.Problem{
	Name:   "sphere",
	Func:   func(x []float64) float64 { return floats.Dot(x, x) },
	Bounds: optimization.Bounds{Low: -5.12, High: 5.12},
}

// Flat is f(x) = 0 over [-1, 1].
var Flat = optimization.Problem{
	Name:   "flat",
	Func:   func(x []float64) float64 { return 0 },
	Bounds: optimization.Bounds{Low: -1, High: 1},
}

// Identity is f(x) = sum(x_i) over [0, 1], handy when the optimum must sit
// on a corner of the box.
var Identity = optimization.Problem{
	Name:   "sum",
	Func:   func(x []float64) float64 { return floats.Sum(x) },
	Bounds: optimization.Bounds{Low: 0, High: 1},
}

// ScriptedSource is a rand.Source replaying fixed Float64 draws in order,
// cycling when exhausted.
type ScriptedSource struct {
	draws []float64
	pos   int
}

// NewScripted returns a *rand.Rand whose Float64 calls return draws in order.
func NewScripted(draws ...float64) *rand.Rand {
	return rand.New(&ScriptedSource{draws: draws})
}

// Int63 implements rand.Source.
func (s *ScriptedSource) Int63() int64 {
	if len(s.draws) == 0 {
		return 0
	}
	d := s.draws[s.pos%len(s.draws)]
	s.pos++
	return int64(d * (1 << 63))
}

// Seed implements rand.Source.
func (s *ScriptedSource) Seed(int64) {
	s.pos = 0
}

// AssertFloat64SlicesEqual fails unless got and want have the same length and
// agree element-wise within tol.
func AssertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertMonotone fails when a sequence of best values regresses.
func AssertMonotone(t *testing.T, dir optimization.Direction, values []float64) {
	t.Helper()

	for i := 1; i < len(values); i++ {
		if dir.Better(values[i-1], values[i]) {
			t.Fatalf("best value regressed at step %d: %v -> %v", i, values[i-1], values[i])
		}
	}
}
