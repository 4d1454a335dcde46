package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProblem() Problem {
	return Problem{
		Name: "square",
		Func: func(x []float64) float64 {
			sum := 0.0
			for _, v := range x {
				sum += v * v
			}
			return sum
		},
		Bounds: Bounds{Low: -1, High: 3},
	}
}

func TestDirection(t *testing.T) {
	assert.True(t, Minimize.Better(1, 2))
	assert.False(t, Minimize.Better(2, 2))
	assert.True(t, Maximize.Better(2, 1))
	assert.False(t, Maximize.Better(1, 1))
	assert.Equal(t, math.Inf(1), Minimize.Worst())
	assert.Equal(t, math.Inf(-1), Maximize.Worst())
	assert.Equal(t, 1.0, Minimize.Pick(3, 1, 2))
	assert.Equal(t, 3.0, Maximize.Pick(3, 1, 2))
	assert.Equal(t, "maximize", Maximize.String())
}

func TestTrackerOfferIsStrict(t *testing.T) {
	tr := NewTracker(testProblem(), Minimize)

	x := []float64{1, 1}
	v := tr.Eval(x)
	require.Equal(t, 2.0, v)
	require.True(t, tr.Offer(v, x, []uint8{1, 0}, 4))

	// the stored point must not alias the caller's slice
	x[0] = 100
	assert.Equal(t, []float64{1, 1}, tr.Best().Point)
	assert.Equal(t, []uint8{1, 0}, tr.Best().Bits)
	assert.Equal(t, 1, tr.Best().FoundAtEval)
	assert.Equal(t, 4, tr.Best().FoundAt)

	assert.False(t, tr.Offer(2.0, []float64{0, 0}, nil, 5))
	assert.True(t, tr.Offer(1.0, []float64{1, 0}, nil, 6))
	assert.Nil(t, tr.Best().Bits)
}

func TestTrackerRunTrace(t *testing.T) {
	tr := NewTracker(testProblem(), Minimize)
	calls := 0
	trace := Run(tr, 3, func() bool {
		calls++
		tr.Eval([]float64{float64(calls), 0})
		return true
	})
	require.Len(t, trace, 3)
	assert.Equal(t, 9.0, trace[2].Value)

	trace = Run(tr, 1, func() bool { return false })
	assert.Empty(t, trace)
	assert.Equal(t, 3, tr.Evals())

	tr.Reset()
	assert.Equal(t, 0, tr.Evals())
	assert.Equal(t, Minimize.Worst(), tr.Best().Value)
}

func TestBudget(t *testing.T) {
	b := Budget{Current: 350, Max: 350}
	assert.True(t, b.Exhausted())
	assert.True(t, b.Recent(200, 200))
	assert.False(t, b.Recent(150, 200))
}

func TestProbe(t *testing.T) {
	p := testProblem()
	// corners: 2, 18; centre (1,1): 2
	assert.Equal(t, 2.0, Probe(p, 2, Minimize))
	assert.Equal(t, 18.0, Probe(p, 2, Maximize))
}

func TestValidateSettings(t *testing.T) {
	err := ValidateSettings("test", testProblem(), Settings{Dimensions: 0})
	require.ErrorIs(t, err, ErrInvalidConfig)
	e, ok := IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "test", e.Component)
	assert.Contains(t, err.Error(), "dimensions must be positive")

	require.NoError(t, ValidateSettings("test", testProblem(), Settings{Dimensions: 2}))
}

func TestProgressFraction(t *testing.T) {
	assert.Equal(t, 0.5, Progress{Current: 5, Max: 10}.Fraction())
	assert.Equal(t, 3.0, Progress{Current: 3}.Fraction())
}
