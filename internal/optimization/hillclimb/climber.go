// Package hillclimb implements best-improvement hill climbing over the
// 1-bit-flip neighbourhood of a binary encoding, restarted from random
// points whenever a local optimum is reached.
package hillclimb

import (
	"math/rand"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/encoding"
)

// Neighbor is the outcome of a neighbourhood scan.
type Neighbor struct {
	// Index of the flipped bit, -1 when no neighbour beat the initial value
	Index int
	Value float64
	Point []float64
}

// Evaluator decodes and evaluates a candidate.
type Evaluator func(b encoding.Bits) (float64, []float64)

// BestNeighbor evaluates every 1-bit-flip neighbour of b and returns the
// best one. The first neighbour strictly better than everything seen before
// wins, so ties keep the lowest index. b is restored before returning.
func BestNeighbor(b encoding.Bits, dir optimization.Direction, eval Evaluator) Neighbor {
	best := Neighbor{Index: -1, Value: dir.Worst()}
	for i := range b {
		b.Flip(i)
		v, x := eval(b)
		if dir.Better(v, best.Value) {
			best = Neighbor{Index: i, Value: v, Point: x}
		}
		b.Flip(i)
	}
	return best
}

// Climb repeatedly commits the best improving flip to b until none exists.
// It returns the value and point of the resulting local optimum.
func Climb(b encoding.Bits, value float64, point []float64, dir optimization.Direction, eval Evaluator) (float64, []float64) {
	for {
		n := BestNeighbor(b, dir, eval)
		if n.Index < 0 || !dir.Better(n.Value, value) {
			return value, point
		}
		b.Flip(n.Index)
		value, point = n.Value, n.Point
	}
}

type phase int

const (
	noCandidate phase = iota
	climbing
)

// Config contains configuration for the hill climber
type Config struct {
	optimization.Settings

	// Number of random restarts
	Repeats int
}

// DefaultConfig returns the configuration of the original roster.
func DefaultConfig() Config {
	return Config{
		Settings: optimization.Settings{
			Direction:  optimization.Minimize,
			Dimensions: 2,
			Precision:  5,
		},
		Repeats: 10000,
	}
}

// Climber is a repeated-restart best-improvement hill climber. One step
// scans the whole neighbourhood of the current candidate once.
type Climber struct {
	cfg     Config
	enc     *encoding.Encoder
	rng     *rand.Rand
	tracker *optimization.Tracker
	budget  optimization.Budget

	phase     phase
	candidate encoding.Bits
	value     float64
	point     []float64
}

var _ optimization.Stepper = (*Climber)(nil)

// New creates a hill climber over problem.
func New(problem optimization.Problem, cfg Config) (*Climber, error) {
	if err := optimization.ValidateSettings("hillclimb", problem, cfg.Settings); err != nil {
		return nil, err
	}
	if cfg.Repeats < 1 {
		return nil, optimization.InvalidConfigf("hillclimb", "repeats must be positive, got %d", cfg.Repeats)
	}
	enc, err := encoding.New(problem.Bounds, cfg.Precision, cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	return &Climber{
		cfg:     cfg,
		enc:     enc,
		rng:     cfg.RNG(),
		tracker: optimization.NewTracker(problem, cfg.Direction),
		budget:  optimization.Budget{Max: cfg.Repeats, Forever: cfg.Forever},
	}, nil
}

// Name returns the algorithm description.
func (c *Climber) Name() string {
	return "Best Improvement Hill-Climbing Algorithm (Binary)"
}

// Problem returns the searched catalog entry.
func (c *Climber) Problem() optimization.Problem {
	return c.tracker.Problem()
}

// Encoder returns the bit encoding in use.
func (c *Climber) Encoder() *encoding.Encoder {
	return c.enc
}

func (c *Climber) evaluate(b encoding.Bits) (float64, []float64) {
	x := c.enc.Decode(b)
	return c.tracker.Eval(x), x
}

// SolveStep draws a new start point when needed, then scans the
// neighbourhood once and either moves or records a local optimum.
func (c *Climber) SolveStep() bool {
	if c.phase == noCandidate {
		if c.budget.Exhausted() {
			if !c.budget.Forever {
				return false
			}
			c.Restart()
		}
		c.budget.Current++
		c.candidate = c.enc.Random(c.rng)
		c.value, c.point = c.evaluate(c.candidate)
		c.phase = climbing
	}

	dir := c.cfg.Direction
	n := BestNeighbor(c.candidate, dir, c.evaluate)
	if n.Index >= 0 && dir.Better(n.Value, c.value) {
		c.candidate.Flip(n.Index)
		c.value, c.point = n.Value, n.Point
		return true
	}

	c.tracker.Offer(c.value, c.point, c.candidate, c.budget.Current)
	c.phase = noCandidate
	return true
}

// Run performs steps calls to SolveStep and returns their evaluations.
func (c *Climber) Run(steps int) []optimization.Evaluation {
	return optimization.Run(c.tracker, steps, c.SolveStep)
}

// Restart clears counters, best-so-far and the current climb.
func (c *Climber) Restart() {
	c.tracker.Reset()
	c.budget.Current = 0
	c.phase = noCandidate
	c.candidate = nil
	c.point = nil
}

// Current returns the value of the point being climbed, and false between
// climbs.
func (c *Climber) Current() (float64, bool) {
	return c.value, c.phase == climbing
}

// Best returns the best local optimum since the last restart.
func (c *Climber) Best() optimization.Solution {
	return c.tracker.Best()
}

// Progress returns the run counters. Current counts restarts.
func (c *Climber) Progress() optimization.Progress {
	return optimization.Progress{
		Evals:   c.tracker.Evals(),
		Current: c.budget.Current,
		Max:     c.budget.Max,
		BestAt:  c.tracker.Best().FoundAt,
	}
}

// Forever reports the restart-on-exhaustion policy.
func (c *Climber) Forever() bool {
	return c.budget.Forever
}

// SetForever sets the restart-on-exhaustion policy.
func (c *Climber) SetForever(forever bool) {
	c.budget.Forever = forever
}

// Probe returns the best of the corner and centre evaluations.
func (c *Climber) Probe() float64 {
	return optimization.Probe(c.Problem(), c.cfg.Dimensions, c.cfg.Direction)
}
