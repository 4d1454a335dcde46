// Package randomsearch implements binary random search, the baseline every
// other algorithm is compared against.
package randomsearch

import (
	"math/rand"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/encoding"
)

// Config contains configuration for random search
type Config struct {
	optimization.Settings

	// Number of random candidates per pass
	Repeats int
}

// DefaultConfig returns the configuration used by the default roster.
func DefaultConfig() Config {
	return Config{
		Settings: optimization.Settings{
			Direction:  optimization.Minimize,
			Dimensions: 2,
			Precision:  5,
		},
		Repeats: 1,
	}
}

// Search draws independent uniformly random candidates.
type Search struct {
	cfg     Config
	enc     *encoding.Encoder
	rng     *rand.Rand
	tracker *optimization.Tracker
	budget  optimization.Budget
}

var _ optimization.Stepper = (*Search)(nil)

// New creates a random search over problem.
func New(problem optimization.Problem, cfg Config) (*Search, error) {
	if err := optimization.ValidateSettings("randomsearch", problem, cfg.Settings); err != nil {
		return nil, err
	}
	if cfg.Repeats < 1 {
		return nil, optimization.InvalidConfigf("randomsearch", "repeats must be positive, got %d", cfg.Repeats)
	}
	enc, err := encoding.New(problem.Bounds, cfg.Precision, cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	return &Search{
		cfg:     cfg,
		enc:     enc,
		rng:     cfg.RNG(),
		tracker: optimization.NewTracker(problem, cfg.Direction),
		budget:  optimization.Budget{Max: cfg.Repeats, Forever: cfg.Forever},
	}, nil
}

// Name returns the algorithm description.
func (s *Search) Name() string {
	return "Random Search Algorithm (Binary)"
}

// Problem returns the searched catalog entry.
func (s *Search) Problem() optimization.Problem {
	return s.tracker.Problem()
}

// Encoder returns the bit encoding in use.
func (s *Search) Encoder() *encoding.Encoder {
	return s.enc
}

// SolveStep evaluates one random candidate.
func (s *Search) SolveStep() bool {
	if s.budget.Exhausted() {
		if !s.budget.Forever {
			return false
		}
		s.Restart()
	}
	s.budget.Current++
	bits := s.enc.Random(s.rng)
	x := s.enc.Decode(bits)
	v := s.tracker.Eval(x)
	s.tracker.Offer(v, x, bits, s.budget.Current-1)
	return true
}

// Run performs steps calls to SolveStep and returns their evaluations.
func (s *Search) Run(steps int) []optimization.Evaluation {
	return optimization.Run(s.tracker, steps, s.SolveStep)
}

// Restart clears counters and best-so-far.
func (s *Search) Restart() {
	s.tracker.Reset()
	s.budget.Current = 0
}

// Best returns the best solution since the last restart.
func (s *Search) Best() optimization.Solution {
	return s.tracker.Best()
}

// Progress returns the run counters.
func (s *Search) Progress() optimization.Progress {
	return optimization.Progress{
		Evals:   s.tracker.Evals(),
		Current: s.budget.Current,
		Max:     s.budget.Max,
		BestAt:  s.tracker.Best().FoundAt,
	}
}

// Forever reports the restart-on-exhaustion policy.
func (s *Search) Forever() bool {
	return s.budget.Forever
}

// SetForever sets the restart-on-exhaustion policy.
func (s *Search) SetForever(forever bool) {
	s.budget.Forever = forever
}

// Probe returns the best of the corner and centre evaluations.
func (s *Search) Probe() float64 {
	return optimization.Probe(s.Problem(), s.cfg.Dimensions, s.cfg.Direction)
}
