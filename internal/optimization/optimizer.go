package optimization

import (
	"math"
	"math/rand"
	"time"
)

// Stepper defines the interface shared by every search algorithm.
// An algorithm performs one unit of work per SolveStep and never runs
// on its own; drivers decide how many steps to spend per frame.
type Stepper interface {
	// Name returns a human readable description including parameters
	Name() string

	// Problem returns the catalog entry being searched
	Problem() Problem

	// SolveStep performs one unit of work. It returns false when the
	// algorithm is exhausted and the call did nothing.
	SolveStep() bool

	// Run resets the trace, performs steps calls to SolveStep and returns
	// the evaluations made during this call
	Run(steps int) []Evaluation

	// Restart clears run counters and best-so-far, keeping configuration
	Restart()

	// Best returns the best solution found since the last restart
	Best() Solution

	// Progress returns the run counters for display
	Progress() Progress

	// Forever reports whether an exhausted budget restarts the search
	Forever() bool

	// SetForever toggles the restart-on-exhaustion policy
	SetForever(forever bool)

	// Probe evaluates a baseline value without touching run state
	Probe() float64
}

// Objective is a pure scalar function over a point of the search box.
type Objective func(x []float64) float64

// Bounds is the closed interval shared by every dimension.
type Bounds struct {
	Low  float64
	High float64
}

// Width returns High - Low.
func (b Bounds) Width() float64 {
	return b.High - b.Low
}

// Center returns the midpoint of the interval.
func (b Bounds) Center() float64 {
	return b.Low + b.Width()/2
}

// Contains reports whether v lies within the closed interval.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Problem is an entry of the objective catalog.
type Problem struct {
	Name   string
	Func   Objective
	Bounds Bounds
}

// Direction selects whether lower or higher objective values are better.
type Direction int

const (
	// Minimize favours lower objective values
	Minimize Direction = iota
	// Maximize favours higher objective values
	Maximize
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Better reports whether a is strictly better than b.
func (d Direction) Better(a, b float64) bool {
	if d == Maximize {
		return a > b
	}
	return a < b
}

// Worst returns the value every real evaluation improves upon.
func (d Direction) Worst() float64 {
	if d == Maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// Pick returns the best of the given values.
func (d Direction) Pick(first float64, rest ...float64) float64 {
	best := first
	for _, v := range rest {
		if d.Better(v, best) {
			best = v
		}
	}
	return best
}

// Settings holds the configuration shared by all algorithms.
type Settings struct {
	// Direction of optimisation
	Direction Direction

	// Number of dimensions of the search box
	Dimensions int

	// Decimal digits of precision for bit encodings
	Precision int

	// Restart instead of stopping when the budget is exhausted
	Forever bool

	// Random seed for reproducibility, 0 seeds from the clock
	Seed int64

	// Rand overrides Seed when set
	Rand *rand.Rand
}

// RNG returns the generator configured by the settings.
func (s Settings) RNG() *rand.Rand {
	if s.Rand != nil {
		return s.Rand
	}
	return NewRand(s.Seed)
}

// NewRand returns a generator seeded with seed, or with the clock when
// seed is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(seed))
}

// Evaluation is a single objective evaluation recorded in a run trace.
type Evaluation struct {
	Value float64
	Point []float64
}

// Solution is the best point found since the last restart.
type Solution struct {
	Value float64
	Point []float64

	// Bits holds the encoded candidate, nil for real-valued algorithms
	Bits []uint8

	// FoundAtEval is the evaluation count at discovery
	FoundAtEval int

	// FoundAt is the progress counter at discovery
	FoundAt int
}

// Progress holds the counters a driver displays.
type Progress struct {
	Evals   int
	Current int
	Max     int
	BestAt  int
}

// Fraction returns Current/Max, treating a zero budget as one.
func (p Progress) Fraction() float64 {
	m := p.Max
	if m == 0 {
		m = 1
	}
	return float64(p.Current) / float64(m)
}
