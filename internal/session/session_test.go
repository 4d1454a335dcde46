package session

import (
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/landscape/internal/config"
	apperrors "github.com/copyleftdev/landscape/internal/errors"
	"github.com/copyleftdev/landscape/internal/metrics"
	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/hillclimb"
	"github.com/copyleftdev/landscape/internal/optimization/optimtest"
	"github.com/copyleftdev/landscape/internal/optimization/randomsearch"
)

func randomEntry(t *testing.T, repeats int) *Entry {
	t.Helper()
	cfg := randomsearch.DefaultConfig()
	cfg.Dimensions = 1
	cfg.Precision = 2
	cfg.Repeats = repeats
	cfg.Seed = 11
	alg, err := randomsearch.New(optimtest.Sphere, cfg)
	require.NoError(t, err)
	return &Entry{Kind: KindRandom, Algorithm: alg, Steps: 1, Dimensions: 1}
}

func newSession(t *testing.T, entries []*Entry, opts ...Option) *Session {
	t.Helper()
	s, err := New("test", entries, opts...)
	require.NoError(t, err)
	return s
}

func TestNewRejectsEmptyRoster(t *testing.T) {
	_, err := New("empty", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))

	_, err = New("nil", []*Entry{{Kind: KindRandom}})
	assert.Error(t, err)
}

func TestFrameAdvancesOnExhaustion(t *testing.T) {
	first := randomEntry(t, 2)
	second := randomEntry(t, 3)
	s := newSession(t, []*Entry{first, second})

	f := s.Frame()
	assert.Len(t, f.Trace, 1)
	assert.False(t, f.Finished)
	f = s.Frame()
	assert.Len(t, f.Trace, 1)

	// give the next algorithm some state so the restart is visible
	second.Algorithm.Run(2)
	require.Equal(t, 2, second.Algorithm.Progress().Evals)

	f = s.Frame()
	assert.Empty(t, f.Trace)
	assert.True(t, f.Finished)
	assert.Equal(t, 0, f.Index)
	assert.Equal(t, 1, f.Active)
	assert.Equal(t, 0, second.Algorithm.Progress().Evals)

	f = s.Frame()
	assert.Equal(t, 1, f.Index)
	assert.Len(t, f.Trace, 1)
}

func TestFrameWrapsAround(t *testing.T) {
	first := randomEntry(t, 1)
	second := randomEntry(t, 1)
	s := newSession(t, []*Entry{first, second})

	_, err := s.Select(1)
	require.NoError(t, err)
	s.Frame()
	f := s.Frame()
	assert.True(t, f.Finished)
	assert.Equal(t, 0, f.Active)

	f = s.Frame()
	assert.Len(t, f.Trace, 1)
	assert.Equal(t, 1, first.Algorithm.Progress().Evals)
}

func TestPauseAndStep(t *testing.T) {
	e := randomEntry(t, 10)
	s := newSession(t, []*Entry{e})

	assert.True(t, s.TogglePause())
	f := s.Frame()
	assert.True(t, f.Skipped)
	assert.Equal(t, 0, e.Algorithm.Progress().Evals)

	f = s.Step()
	assert.False(t, f.Skipped)
	assert.Len(t, f.Trace, 1)

	assert.False(t, s.TogglePause())
	assert.Len(t, s.Frame().Trace, 1)
}

func TestStepsPerFrame(t *testing.T) {
	a := randomEntry(t, 100)
	b := randomEntry(t, 100)
	s := newSession(t, []*Entry{a, b})

	assert.Equal(t, 2, s.DoubleSteps())
	assert.Equal(t, 4, s.DoubleSteps())
	assert.Len(t, s.Frame().Trace, 4)
	assert.Equal(t, 1, b.Steps)

	assert.Equal(t, 2, s.HalveSteps())
	assert.Equal(t, 1, s.HalveSteps())
	assert.Equal(t, 1, s.HalveSteps())

	require.NoError(t, s.SetSteps(1, 7))
	assert.Equal(t, 7, b.Steps)
	assert.Error(t, s.SetSteps(1, 0))
	assert.Error(t, s.SetSteps(5, 1))
}

func TestRunAll(t *testing.T) {
	a := randomEntry(t, 1)
	b := randomEntry(t, 5)
	s := newSession(t, []*Entry{a, b}, WithRunAll(true))

	f := s.Frame()
	assert.Len(t, f.Trace, 2)

	// steps apply to every algorithm
	assert.Equal(t, 2, s.DoubleSteps())
	assert.Equal(t, 2, a.Steps)
	assert.Equal(t, 2, b.Steps)

	// an exhausted algorithm does not move the selection in run-all mode
	f = s.Frame()
	assert.Len(t, f.Trace, 2)
	assert.False(t, f.Finished)
	assert.Equal(t, 0, f.Active)

	s.SetRunAll(false)
	f = s.Frame()
	assert.True(t, f.Finished)
	assert.Equal(t, 1, f.Active)
}

func TestSelection(t *testing.T) {
	s := newSession(t, []*Entry{randomEntry(t, 1), randomEntry(t, 1), randomEntry(t, 1)})

	assert.Equal(t, 2, s.Prev().Index)
	assert.Equal(t, 0, s.Next().Index)
	assert.Equal(t, 1, s.Next().Index)
	assert.True(t, s.Info().Current.Active)
	assert.Equal(t, 1, s.Info().Active)

	_, err := s.Select(3)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
	_, err = s.Status(-1)
	assert.Error(t, err)
}

func TestToggleForever(t *testing.T) {
	e := randomEntry(t, 1)
	s := newSession(t, []*Entry{e})

	assert.True(t, s.ToggleForever())
	assert.True(t, e.Algorithm.Forever())

	s.Frame()
	f := s.Frame()
	assert.False(t, f.Finished)
	assert.Len(t, f.Trace, 1)

	assert.False(t, s.ToggleForever())
}

func TestRestartAndProbe(t *testing.T) {
	e := randomEntry(t, 10)
	s := newSession(t, []*Entry{e})
	s.Frame()

	st, err := s.Restart(0)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Evals)
	assert.Nil(t, st.Best)

	v, err := s.Probe(0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 0, e.Algorithm.Progress().Evals)

	p, dims := s.ActiveProblem()
	assert.Equal(t, "sphere", p.Name)
	assert.Equal(t, 1, dims)
}

func TestStatus(t *testing.T) {
	e := randomEntry(t, 10)
	s := newSession(t, []*Entry{e})

	st, err := s.Status(0)
	require.NoError(t, err)
	assert.Nil(t, st.Best)
	assert.Contains(t, st.String(), "Best: none")
	assert.Equal(t, "minimize", st.Direction)
	assert.Equal(t, -5.12, st.Low)

	s.Frame()
	st = s.Statuses()[0]
	require.NotNil(t, st.Best)
	assert.Len(t, st.BestPoint, 1)
	assert.Equal(t, 1, st.Evals)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 10, st.Max)
	assert.InDelta(t, 0.1, st.Fraction, 1e-12)
	assert.Contains(t, st.String(), "Total evals: 1 Br / Cr / R: 0 / 1 / 10")
}

func TestStatusReportsClimberCandidate(t *testing.T) {
	cfg := hillclimb.DefaultConfig()
	cfg.Precision = 1
	cfg.Repeats = 5
	cfg.Seed = 3
	alg, err := hillclimb.New(optimtest.Identity, cfg)
	require.NoError(t, err)
	s := newSession(t, []*Entry{{Kind: KindHillClimb, Algorithm: alg, Steps: 1, Dimensions: 2}})

	s.Frame()
	st, err := s.Status(0)
	require.NoError(t, err)
	require.Nil(t, st.Best)
	require.NotNil(t, st.Candidate)
	assert.Contains(t, st.String(), "none (current")
}

func TestLogsAndMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	m, err := metrics.New("landscape", reg)
	require.NoError(t, err)

	s := newSession(t, []*Entry{randomEntry(t, 1), randomEntry(t, 1)},
		WithLogger(zap.New(core)), WithMetrics(m))
	s.Frame()
	s.Frame()

	finished := logs.FilterMessage("algorithm finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "test", finished[0].ContextMap()["session"])
	assert.Equal(t, int64(0), finished[0].ContextMap()["index"])
	assert.Len(t, logs.FilterMessage("algorithm selected").All(), 1)
	assert.Len(t, logs.FilterMessage("frame").All(), 2)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				counts[f.GetName()] += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil && f.GetName() == "landscape_sessions" {
				counts[f.GetName()] = g.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, counts["landscape_evaluations_total"])
	assert.Equal(t, 2.0, counts["landscape_steps_total"])
	assert.Equal(t, 1.0, counts["landscape_exhaustions_total"])
	assert.Equal(t, 1.0, counts["landscape_restarts_total"])
	assert.Equal(t, 1.0, counts["landscape_sessions"])

	s.Close()
}

func TestConcurrentDrivers(t *testing.T) {
	s := newSession(t, []*Entry{randomEntry(t, 1000), randomEntry(t, 1000)})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Frame()
				s.Statuses()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, s.Info().Frames)
}

func TestBuildRoster(t *testing.T) {
	solver := testSolver()
	entries, err := BuildRoster([]optimization.Problem{optimtest.Sphere}, solver)
	require.NoError(t, err)
	require.Len(t, entries, 12)

	kinds := make([]Kind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []Kind{
		KindRandom, KindBruteForce, KindHillClimb, KindSwarm,
		KindGenetic, KindGenetic, KindGenetic,
		KindHybrid, KindHybrid, KindHybrid,
		KindBayes,
		KindGenetic,
	}, kinds)

	random := entries[0]
	assert.Equal(t, 4, random.Steps)
	assert.Equal(t, 4*(1+5*2), random.Algorithm.Progress().Max)
	assert.Equal(t, 1+5*2, entries[2].Algorithm.Progress().Max)
	assert.Equal(t, 1, entries[3].Algorithm.Progress().Max)
	assert.Contains(t, entries[5].Algorithm.Name(), "pm = 0.5")
	assert.Contains(t, entries[9].Algorithm.Name(), "pm = 0.95")
	assert.Contains(t, entries[7].Algorithm.Name(), "post-BIHC")

	bayes := entries[10]
	assert.Contains(t, bayes.Algorithm.Name(), "Bayesian")
	assert.Equal(t, 4+4*1, bayes.Algorithm.Progress().Max)

	trailing := entries[11]
	assert.True(t, trailing.Algorithm.Forever())
	assert.Equal(t, "rastrigin", trailing.Algorithm.Problem().Name)
	assert.False(t, entries[4].Algorithm.Forever())

	for _, e := range entries {
		assert.Equal(t, 2, e.Dimensions)
		assert.Equal(t, optimization.Minimize, e.Direction)
	}
}

func TestBuildRosterOptions(t *testing.T) {
	solver := testSolver()
	solver.TrailingForever = false
	solver.Maximize = true
	entries, err := BuildRoster([]optimization.Problem{optimtest.Sphere, optimtest.Flat}, solver)
	require.NoError(t, err)
	require.Len(t, entries, 22)
	assert.Equal(t, "flat", entries[11].Algorithm.Problem().Name)
	assert.Equal(t, optimization.Maximize, entries[0].Direction)

	solver.PopSize = 0
	_, err = BuildRoster([]optimization.Problem{optimtest.Sphere}, solver)
	assert.Error(t, err)
}

func TestRosterDrivesToCompletion(t *testing.T) {
	solver := testSolver()
	solver.TrailingForever = false
	entries, err := BuildRoster([]optimization.Problem{optimtest.Flat}, solver)
	require.NoError(t, err)
	s := newSession(t, entries)

	// every algorithm of the roster finishes with these budgets, so the
	// selection wraps back to the start
	wrapped := false
	for i := 0; i < 100000 && !wrapped; i++ {
		f := s.Frame()
		wrapped = f.Finished && f.Active == 0
	}
	assert.True(t, wrapped)
}

func testSolver() config.Solver {
	return config.Solver{
		Dimensions:      2,
		Precision:       3,
		BrutePrecision:  1,
		PopSize:         4,
		Generations:     1,
		Grace:           2,
		Steps:           1,
		Seed:            7,
		TrailingForever: true,
	}
}

func TestSessionDelegatesToStepper(t *testing.T) {
	first := optimtest.NewMockStepper(optimtest.Sphere)
	second := optimtest.NewMockStepper(optimtest.Flat)
	trace := []optimization.Evaluation{{Value: 1, Point: []float64{1}}}
	first.On("Run", 3).Return(trace).Once()
	first.On("Run", 3).Return(nil).Once()
	second.On("Restart").Return().Once()
	second.On("SetForever", true).Return().Once()
	second.On("Probe").Return(42.0).Once()

	s := newSession(t, []*Entry{
		{Kind: KindRandom, Algorithm: first, Steps: 3},
		{Kind: KindBruteForce, Algorithm: second, Steps: 1},
	})

	f := s.Frame()
	assert.Equal(t, trace, f.Trace)
	assert.False(t, f.Finished)

	f = s.Frame()
	assert.True(t, f.Finished)
	assert.Equal(t, 1, f.Active)

	s.ToggleForever()
	v, err := s.Probe(1)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
	second.AssertNotCalled(t, "Run", mock.Anything)
}

func TestRosterLoggerReachesSurrogate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	solver := testSolver()
	entries, err := BuildRoster([]optimization.Problem{optimtest.Sphere}, solver, WithRosterLogger(zap.New(core)))
	require.NoError(t, err)

	bayes := entries[10]
	require.Equal(t, KindBayes, bayes.Kind)
	trace := bayes.Algorithm.Run(bayes.Algorithm.Progress().Max)
	require.NotEmpty(t, trace)

	fits := logs.FilterMessage("Fitted GP model").All()
	require.NotEmpty(t, fits)
	assert.Equal(t, "sphere", fits[0].ContextMap()["function"])
}
