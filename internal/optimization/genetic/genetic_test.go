package genetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/encoding"
	"github.com/copyleftdev/landscape/internal/optimization/optimtest"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Precision = 1
	cfg.PopSize = 4
	cfg.Generations = 10
	cfg.Grace = 5
	cfg.Seed = 17
	return cfg
}

func TestRouletteSelect(t *testing.T) {
	cum := []float64{1, 3, 6, 10}
	draws := []float64{0.5, 2.5, 5.5, 9.5}
	assert.Equal(t, []int{0, 1, 2, 3}, rouletteSelect(cum, draws))

	// repeated picks of the heaviest bucket
	assert.Equal(t, []int{0, 3, 3, 3}, rouletteSelect(cum, []float64{0, 6, 7, 9.99}))
	// a draw on a boundary falls in the next bucket
	assert.Equal(t, []int{1, 2}, rouletteSelect(cum, []float64{1, 3}))
}

func TestFitness(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	minFit := fitness(values, 1, 4, optimization.Minimize, 1)
	assert.InDelta(t, 2.02, minFit[0], 1e-12)
	assert.InDelta(t, 0.02, minFit[3], 1e-12)

	maxFit := fitness(values, 1, 4, optimization.Maximize, 1)
	assert.InDelta(t, 0.02, maxFit[0], 1e-12)
	assert.InDelta(t, 2.02, maxFit[3], 1e-12)

	squared := fitness(values, 1, 4, optimization.Minimize, 2)
	assert.InDelta(t, 2.02*2.02, squared[0], 1e-12)
}

func TestFitnessZeroSpread(t *testing.T) {
	fit := fitness([]float64{5, 5, 5}, 5, 5, optimization.Minimize, 3)
	for _, f := range fit {
		assert.InDelta(t, 0.02*0.02*0.02, f, 1e-15)
	}
}

func TestSelectionWithScriptedDraws(t *testing.T) {
	cfg := smallConfig()
	cfg.Direction = optimization.Maximize
	cfg.Rand = optimtest.NewScripted(0.95, 0.05, 0.55, 0.25)
	a, err := New(optimtest.Identity, cfg)
	require.NoError(t, err)

	a.pop = []encoding.Bits{
		{0, 0, 0, 0, 0, 0, 0, 1},
		{0, 0, 0, 0, 0, 0, 1, 0},
		{0, 0, 0, 0, 0, 1, 0, 0},
		{0, 0, 0, 0, 1, 0, 0, 0},
	}
	a.points = make([][]float64, 4)
	a.values = []float64{1, 2, 3, 4}
	// chosen so the normalised fitness is exactly proportional to the values
	a.genMin, a.genMax = 0.05, 5.05

	a.selection()
	require.Len(t, a.pop, 4)
	assert.Equal(t, "00000001", a.pop[0].String())
	assert.Equal(t, "00000010", a.pop[1].String())
	assert.Equal(t, "00000100", a.pop[2].String())
	assert.Equal(t, "00001000", a.pop[3].String())
	assert.Equal(t, []float64{1, 2, 3, 4}, a.values)
}

func TestSelectionCopiesIndividuals(t *testing.T) {
	cfg := smallConfig()
	cfg.Rand = optimtest.NewScripted(0.1, 0.2, 0.3, 0.4)
	a, err := New(optimtest.Identity, cfg)
	require.NoError(t, err)

	// only the first individual has meaningful fitness
	a.pop = []encoding.Bits{{0, 0, 0, 0, 0, 0, 0, 0}, {1, 1, 1, 1, 1, 1, 1, 1}}
	a.points = make([][]float64, 2)
	a.values = []float64{0, 2}
	a.genMin, a.genMax = 0, 2

	a.selection()
	require.Len(t, a.pop, 4)
	a.pop[0].Flip(0)
	assert.Equal(t, "00000000", a.pop[1].String(), "selected copies must not alias")
}

func TestCrossoverPairing(t *testing.T) {
	tests := []struct {
		name     string
		draws    []float64
		wantSize int
	}{
		// scores 0.1 0.9 0.2 0.3: pairs (0,2); 3 waits, 1 is above threshold
		// and the trailing draw 0.4 pairs (3,1)
		{"trailing pair taken", []float64{0.1, 0.9, 0.2, 0.3, 0.5, 0.4, 0.5}, 8},
		{"trailing pair dropped", []float64{0.1, 0.9, 0.2, 0.3, 0.5, 0.6}, 6},
		{"nobody eligible", []float64{0.7, 0.9, 0.8, 0.6}, 4},
		// scores 0.1 0.2 0.9 0.95: one pair, then the scan stops with no one pending
		{"even eligible count", []float64{0.1, 0.2, 0.9, 0.95, 0.5}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			cfg.Pcx = 0.5
			cfg.Rand = optimtest.NewScripted(tt.draws...)
			a, err := New(optimtest.Identity, cfg)
			require.NoError(t, err)
			require.Equal(t, 8, a.Encoder().Len())

			a.pop = []encoding.Bits{
				{0, 0, 0, 0, 0, 0, 0, 0},
				{1, 0, 1, 0, 1, 0, 1, 0},
				{1, 1, 1, 1, 1, 1, 1, 1},
				{0, 1, 0, 1, 0, 1, 0, 1},
			}
			a.crossover()
			assert.Len(t, a.pop, tt.wantSize)
		})
	}
}

func TestCrossoverOffspring(t *testing.T) {
	cfg := smallConfig()
	cfg.Pcx = 0.5
	cfg.Rand = optimtest.NewScripted(0.1, 0.9, 0.2, 0.3, 0.5, 0.6)
	a, err := New(optimtest.Identity, cfg)
	require.NoError(t, err)

	a.pop = []encoding.Bits{
		{0, 0, 0, 0, 0, 0, 0, 0},
		{1, 0, 1, 0, 1, 0, 1, 0},
		{1, 1, 1, 1, 1, 1, 1, 1},
		{0, 1, 0, 1, 0, 1, 0, 1},
	}
	a.crossover()
	require.Len(t, a.pop, 6)
	// cut at int(1 + 0.5*6) = 4
	assert.Equal(t, "00001111", a.pop[4].String())
	assert.Equal(t, "11110000", a.pop[5].String())
}

func TestCrossAtInteriorCut(t *testing.T) {
	kids := crossAt(encoding.Bits{0, 0, 0}, encoding.Bits{1, 1, 1}, 1)
	assert.Equal(t, "011", kids[0].String())
	assert.Equal(t, "100", kids[1].String())
}

func TestMutationRates(t *testing.T) {
	cfg := smallConfig()
	cfg.Pm = 1
	a, err := New(optimtest.Identity, cfg)
	require.NoError(t, err)
	a.pop = []encoding.Bits{{0, 1, 0, 1, 0, 1, 0, 1}}
	a.mutate()
	assert.Equal(t, "10101010", a.pop[0].String())

	a.cfg.Pm = 0
	a.mutate()
	assert.Equal(t, "10101010", a.pop[0].String())
}

func TestGracePeriodExtendsBudget(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 151
	cfg.Grace = 200
	a, err := New(optimtest.Flat, cfg)
	require.NoError(t, err)

	for i := 0; i < 151; i++ {
		require.True(t, a.SolveStep())
	}
	// the only improvement happened in generation 1, 150 generations ago
	require.Equal(t, 1, a.Best().FoundAt)
	require.Equal(t, 151, a.Progress().Max)

	require.True(t, a.SolveStep())
	p := a.Progress()
	assert.Equal(t, 351, p.Max)
	assert.Equal(t, 152, p.Current)

	steps := 1
	for a.SolveStep() {
		steps++
	}
	// no improvement within the grace window at 351: the run stops
	assert.Equal(t, 351, a.Progress().Current)
	assert.Equal(t, 351, a.Progress().Max)
	assert.Equal(t, 200, steps)
	assert.False(t, a.SolveStep())
}

func TestForeverRestartsAfterBudget(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 2
	cfg.Grace = 0
	cfg.Forever = true
	a, err := New(optimtest.Sphere, cfg)
	require.NoError(t, err)

	require.True(t, a.SolveStep())
	require.True(t, a.SolveStep())
	require.True(t, a.SolveStep())
	p := a.Progress()
	assert.Equal(t, 1, p.Current)
	assert.Equal(t, 2, p.Max)
	assert.Equal(t, cfg.PopSize, len(a.Population()))
}

func TestSphereImproves(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopSize = 50
	cfg.Generations = 100
	cfg.Grace = 20
	cfg.Seed = 99
	a, err := New(optimtest.Sphere, cfg)
	require.NoError(t, err)

	var history []float64
	for a.SolveStep() {
		history = append(history, a.Best().Value)
		lo, hi := a.GenerationRange()
		require.LessOrEqual(t, lo, hi)
	}
	optimtest.AssertMonotone(t, optimization.Minimize, history)
	assert.GreaterOrEqual(t, len(history), 100)
	assert.Less(t, a.Best().Value, 0.1)
	assert.Len(t, a.Population(), 50)
}

func TestHybridPolishesEveryMember(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 3
	cfg.Grace = 0
	a, err := NewHybrid(optimtest.Identity, cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, a.SolveStep())
	}
	evals := a.Progress().Evals
	for i := 0; i < cfg.PopSize; i++ {
		require.True(t, a.SolveStep(), "polish step %d", i)
		assert.Equal(t, 3+i+1, a.Progress().Current)
	}
	assert.Greater(t, a.Progress().Evals, evals)
	assert.Equal(t, 3+cfg.PopSize, a.Progress().Max)

	// every member sits on the unique local optimum of a linear objective
	for _, c := range a.Population() {
		assert.Equal(t, "00000000", c.String())
	}
	assert.Equal(t, 0.0, a.Best().Value)
	assert.False(t, a.SolveStep())
}

func TestHybridRestartResetsBootstrap(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 2
	cfg.Grace = 0
	cfg.Forever = true
	a, err := NewHybrid(optimtest.Flat, cfg)
	require.NoError(t, err)

	// two generations, four polishing steps, then a restart with a generation
	for i := 0; i < 2+cfg.PopSize; i++ {
		require.True(t, a.SolveStep())
	}
	require.Equal(t, 2+cfg.PopSize, a.Progress().Current)
	require.True(t, a.SolveStep())
	assert.Equal(t, 1, a.Progress().Current)

	for i := 0; i < 1+cfg.PopSize; i++ {
		require.True(t, a.SolveStep())
	}
	assert.Equal(t, 2+cfg.PopSize, a.Progress().Current)
	assert.Equal(t, 2+cfg.PopSize, a.Progress().Max)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"population", func(c *Config) { c.PopSize = 0 }},
		{"generations", func(c *Config) { c.Generations = 0 }},
		{"grace", func(c *Config) { c.Grace = -1 }},
		{"pressure", func(c *Config) { c.SelPressure = 0 }},
		{"dimensions", func(c *Config) { c.Dimensions = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(&cfg)
			_, err := New(optimtest.Sphere, cfg)
			assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
		})
	}
}

func TestNames(t *testing.T) {
	cfg := smallConfig()
	a, err := New(optimtest.Sphere, cfg)
	require.NoError(t, err)
	h, err := NewHybrid(optimtest.Sphere, cfg)
	require.NoError(t, err)

	assert.Contains(t, a.Name(), "popSize = 4")
	assert.Contains(t, h.Name(), "post-BIHC")
}
