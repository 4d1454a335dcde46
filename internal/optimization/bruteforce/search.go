// Package bruteforce enumerates every bit vector of an encoding exactly once
// per pass.
package bruteforce

import (
	"math"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/encoding"
)

type phase int

const (
	unstarted phase = iota
	enumerating
	exhausted
)

// Config contains configuration for brute force enumeration. The budget is
// always the size of the search space.
type Config struct {
	optimization.Settings
}

// DefaultConfig returns the low precision configuration used by the
// default roster; brute force is only practical on small encodings.
func DefaultConfig() Config {
	return Config{
		Settings: optimization.Settings{
			Direction:  optimization.Minimize,
			Dimensions: 2,
			Precision:  1,
		},
	}
}

// Search walks the encoding as a binary counter. Bit 0 is the least
// significant digit of the counter.
type Search struct {
	cfg       Config
	enc       *encoding.Encoder
	tracker   *optimization.Tracker
	budget    optimization.Budget
	phase     phase
	candidate encoding.Bits
}

var _ optimization.Stepper = (*Search)(nil)

// New creates a brute force search over problem.
func New(problem optimization.Problem, cfg Config) (*Search, error) {
	if err := optimization.ValidateSettings("bruteforce", problem, cfg.Settings); err != nil {
		return nil, err
	}
	enc, err := encoding.New(problem.Bounds, cfg.Precision, cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	return &Search{
		cfg:     cfg,
		enc:     enc,
		tracker: optimization.NewTracker(problem, cfg.Direction),
		budget:  optimization.Budget{Max: spaceSize(enc.Len()), Forever: cfg.Forever},
	}, nil
}

// spaceSize returns 2^bits, saturating at the largest int.
func spaceSize(bits int) int {
	if bits >= maxSpaceBits {
		return math.MaxInt
	}
	return 1 << bits
}

const maxSpaceBits = 63

// Name returns the algorithm description.
func (s *Search) Name() string {
	return "Brute Force Algorithm (Binary)"
}

// Problem returns the searched catalog entry.
func (s *Search) Problem() optimization.Problem {
	return s.tracker.Problem()
}

// Encoder returns the bit encoding in use.
func (s *Search) Encoder() *encoding.Encoder {
	return s.enc
}

// SolveStep evaluates the next vector of the enumeration.
func (s *Search) SolveStep() bool {
	switch s.phase {
	case exhausted:
		if !s.budget.Forever {
			return false
		}
		s.Restart()
		s.begin()
	case unstarted:
		s.begin()
	case enumerating:
		if s.increment() {
			// the carry escaped the top bit: the pass is complete
			if !s.budget.Forever {
				s.phase = exhausted
				return false
			}
			s.Restart()
			s.begin()
		} else {
			s.budget.Current++
		}
	}

	x := s.enc.Decode(s.candidate)
	v := s.tracker.Eval(x)
	s.tracker.Offer(v, x, s.candidate, s.budget.Current)
	return true
}

func (s *Search) begin() {
	s.candidate = make(encoding.Bits, s.enc.Len())
	s.budget.Max = spaceSize(s.enc.Len())
	s.budget.Current = 1
	s.phase = enumerating
}

// increment adds one to the counter and reports whether it wrapped around.
func (s *Search) increment() bool {
	for i := range s.candidate {
		if s.candidate[i] == 0 {
			s.candidate[i] = 1
			return false
		}
		s.candidate[i] = 0
	}
	return true
}

// Run performs steps calls to SolveStep and returns their evaluations.
func (s *Search) Run(steps int) []optimization.Evaluation {
	return optimization.Run(s.tracker, steps, s.SolveStep)
}

// Restart clears counters and best-so-far; the next step starts a new pass.
func (s *Search) Restart() {
	s.tracker.Reset()
	s.budget.Current = 0
	s.candidate = nil
	s.phase = unstarted
}

// Best returns the best solution since the last restart.
func (s *Search) Best() optimization.Solution {
	return s.tracker.Best()
}

// Progress returns the run counters. Current counts visited vectors.
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
