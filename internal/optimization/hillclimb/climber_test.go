package hillclimb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/encoding"
	"github.com/copyleftdev/landscape/internal/optimization/optimtest"
)

func newClimber(t *testing.T, problem optimization.Problem, repeats int) *Climber {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Precision = 2
	cfg.Repeats = repeats
	cfg.Seed = 21
	c, err := New(problem, cfg)
	require.NoError(t, err)
	return c
}

func TestBestNeighborTieKeepsLowestIndex(t *testing.T) {
	// flipping bit 1 or bit 3 gives the same best value
	values := map[string]float64{
		"1000": 5, "0100": 1, "0010": 3, "0001": 1,
	}
	eval := func(b encoding.Bits) (float64, []float64) {
		return values[b.String()], nil
	}
	b := encoding.Bits{0, 0, 0, 0}
	n := BestNeighbor(b, optimization.Minimize, eval)
	assert.Equal(t, 1, n.Index)
	assert.Equal(t, 1.0, n.Value)
	assert.Equal(t, "0000", b.String(), "scan must restore the candidate")

	n = BestNeighbor(b, optimization.Maximize, eval)
	assert.Equal(t, 0, n.Index)
}

func TestClimbReachesLocalOptimum(t *testing.T) {
	enc, err := encoding.New(optimtest.Identity.Bounds, 2, 2)
	require.NoError(t, err)
	eval := func(b encoding.Bits) (float64, []float64) {
		x := enc.Decode(b)
		return optimtest.Identity.Func(x), x
	}

	b := make(encoding.Bits, enc.Len())
	for i := range b {
		b[i] = 1
	}
	v, x := eval(b)
	v, x = Climb(b, v, x, optimization.Minimize, eval)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, []float64{0, 0}, x)
	for _, bit := range b {
		assert.Equal(t, uint8(0), bit)
	}
}

func TestFlatObjectiveRestartsEveryStep(t *testing.T) {
	c := newClimber(t, optimtest.Flat, 5)
	n := c.Encoder().Len()

	for i := 1; i <= 5; i++ {
		require.True(t, c.SolveStep())
		_, climbing := c.Current()
		assert.False(t, climbing, "no flip may be committed on a flat objective")
		p := c.Progress()
		assert.Equal(t, i, p.Current)
		assert.Equal(t, i*(n+1), p.Evals)
		assert.Equal(t, 0.0, c.Best().Value)
	}
	assert.False(t, c.SolveStep())
}

func TestClimbCompletesBeforeExhaustion(t *testing.T) {
	c := newClimber(t, optimtest.Identity, 1)
	for c.SolveStep() {
	}
	// the single restart ran to its local optimum, the global one here
	assert.Equal(t, 0.0, c.Best().Value)
	assert.Equal(t, 1, c.Progress().Current)
	assert.Equal(t, 1, c.Best().FoundAt)
}

func TestBestNeverRegresses(t *testing.T) {
	c := newClimber(t, optimtest.Sphere, 50)
	var history []float64
	for c.SolveStep() {
		history = append(history, c.Best().Value)
	}
	optimtest.AssertMonotone(t, optimization.Minimize, history)
	assert.Less(t, c.Best().Value, 1e-3)
}

func TestForeverRestarts(t *testing.T) {
	c := newClimber(t, optimtest.Flat, 2)
	c.Run(2)
	assert.Empty(t, c.Run(3))

	c.SetForever(true)
	trace := c.Run(1)
	assert.Len(t, trace, c.Encoder().Len()+1)
	assert.Equal(t, 1, c.Progress().Current)
}

func TestNewValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Repeats = 0
	_, err := New(optimtest.Sphere, cfg)
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}
