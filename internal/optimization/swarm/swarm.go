// Package swarm implements particle swarm optimisation over the real box,
// without any bit encoding.
package swarm

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/landscape/internal/optimization"
)

type phase int

const (
	unseeded phase = iota
	flying
	exhausted
)

// Weights are the coefficients of the velocity update.
type Weights struct {
	// Inertia applied to the previous velocity
	Inertia float64
	// Cognitive pull toward the particle's own best
	Cognitive float64
	// Social pull toward the generation's best
	Social float64
	// InertiaDecay multiplies the inertia after every generation
	InertiaDecay float64
	// SpeedScale is the initial speed as a fraction of the box width
	SpeedScale float64
	// Noise scales the random velocity component
	Noise float64
}

// Config contains configuration for the swarm. Settings.Precision is
// ignored.
type Config struct {
	optimization.Settings

	PopSize     int
	Generations int
	Grace       int
	Weights     Weights
}

// DefaultConfig returns the default swarm parameters.
func DefaultConfig() Config {
	return Config{
		Settings: optimization.Settings{
			Direction:  optimization.Minimize,
			Dimensions: 2,
		},
		PopSize:     100,
		Generations: 1000,
		Grace:       200,
		Weights: Weights{
			Inertia:      1,
			Cognitive:    2,
			Social:       2,
			InertiaDecay: 0.9,
			SpeedScale:   0.5,
			Noise:        0.1,
		},
	}
}

// Particle is one member of the swarm.
type Particle struct {
	Position []float64
	Velocity []float64
	Value    float64

	// personal best
	BestPosition []float64
	BestValue    float64
}

// Swarm is a generational particle swarm. One step is one generation.
type Swarm struct {
	cfg     Config
	rng     *rand.Rand
	tracker *optimization.Tracker
	budget  optimization.Budget

	phase     phase
	inertia   float64
	particles []Particle

	// best of the current generation only
	genBest      []float64
	genBestValue float64
	genMin       float64
	genMax       float64
}

var _ optimization.Stepper = (*Swarm)(nil)

// New creates a particle swarm over problem.
func New(problem optimization.Problem, cfg Config) (*Swarm, error) {
	if err := optimization.ValidateSettings("swarm", problem, cfg.Settings); err != nil {
		return nil, err
	}
	switch {
	case cfg.PopSize < 1:
		return nil, optimization.InvalidConfigf("swarm", "population size must be positive, got %d", cfg.PopSize)
	case cfg.Generations < 1:
		return nil, optimization.InvalidConfigf("swarm", "generations must be positive, got %d", cfg.Generations)
	case cfg.Grace < 0:
		return nil, optimization.InvalidConfigf("swarm", "grace must not be negative, got %d", cfg.Grace)
	}
	return &Swarm{
		cfg:     cfg,
		rng:     cfg.RNG(),
		tracker: optimization.NewTracker(problem, cfg.Direction),
		budget:  optimization.Budget{Max: cfg.Generations, Forever: cfg.Forever},
		inertia: cfg.Weights.Inertia,
	}, nil
}

// Name returns the algorithm description including its parameters.
func (s *Swarm) Name() string {
	w := s.cfg.Weights
	return fmt.Sprintf("Particle Swarm Optimisation Algorithm (Floating-point), popSize = %d "+
		"w[inertia, cognition, social, inertia/random decayMultiplier, maxSpeedAsDimensionProportion, randomNoise] = %v",
		s.cfg.PopSize, []float64{w.Inertia, w.Cognitive, w.Social, w.InertiaDecay, w.SpeedScale, w.Noise})
}

// Problem returns the searched catalog entry.
func (s *Swarm) Problem() optimization.Problem {
	return s.tracker.Problem()
}

// Particles returns the swarm. The slice is owned by the algorithm.
func (s *Swarm) Particles() []Particle {
	return s.particles
}

// GenerationBest returns the best position and value of the last evaluated
// generation. Unlike Best it is recomputed every generation and may get
// worse.
func (s *Swarm) GenerationBest() ([]float64, float64) {
	return s.genBest, s.genBestValue
}

// GenerationRange returns the lowest and highest value of the last
// evaluated generation.
func (s *Swarm) GenerationRange() (float64, float64) {
	return s.genMin, s.genMax
}

// Inertia returns the current, decayed inertia weight.
func (s *Swarm) Inertia() float64 {
	return s.inertia
}

// SolveStep advances the swarm by one generation.
func (s *Swarm) SolveStep() bool {
	if s.phase == exhausted || (s.phase == flying && s.budget.Exhausted()) {
		switch {
		case s.phase == flying && s.budget.Recent(s.tracker.Best().FoundAt, s.cfg.Grace):
			s.budget.Max += s.cfg.Grace
		case s.budget.Forever:
			s.Restart()
		default:
			s.phase = exhausted
			return false
		}
	}

	s.budget.Current++
	if s.phase == unseeded {
		s.seed()
	}
	s.evaluate()
	s.updatePersonalBests()
	s.accelerate()
	s.move()
	s.inertia *= s.cfg.Weights.InertiaDecay
	return true
}

func (s *Swarm) seed() {
	b := s.tracker.Problem().Bounds
	s.particles = make([]Particle, s.cfg.PopSize)
	for i := range s.particles {
		p := Particle{
			Position:  make([]float64, s.cfg.Dimensions),
			BestValue: s.cfg.Direction.Worst(),
		}
		for d := range p.Position {
			p.Position[d] = b.Low + b.Width()*s.rng.Float64()
		}
		p.Velocity = s.randomSpeed()
		s.particles[i] = p
	}
	s.phase = flying
}

// randomSpeed returns a vector uniform in +-SpeedScale*width per dimension.
func (s *Swarm) randomSpeed() []float64 {
	width := s.tracker.Problem().Bounds.Width()
	v := make([]float64, s.cfg.Dimensions)
	for d := range v {
		v[d] = s.cfg.Weights.SpeedScale * width * (s.rng.Float64()*2 - 1)
	}
	return v
}

func (s *Swarm) evaluate() {
	dir := s.cfg.Direction
	s.genBest = nil
	s.genBestValue = dir.Worst()
	for i := range s.particles {
		p := &s.particles[i]
		p.Value = s.tracker.Eval(append([]float64(nil), p.Position...))
		if i == 0 {
			s.genMin, s.genMax = p.Value, p.Value
		}
		if p.Value < s.genMin {
			s.genMin = p.Value
		}
		if p.Value > s.genMax {
			s.genMax = p.Value
		}
		if dir.Better(p.Value, s.genBestValue) {
			s.genBestValue = p.Value
			s.genBest = append([]float64(nil), p.Position...)
		}
		s.tracker.Offer(p.Value, p.Position, nil, s.budget.Current)
	}
}

func (s *Swarm) updatePersonalBests() {
	for i := range s.particles {
		p := &s.particles[i]
		if s.cfg.Direction.Better(p.Value, p.BestValue) {
			p.BestValue = p.Value
			p.BestPosition = append(p.BestPosition[:0], p.Position...)
		}
	}
}

// accelerate computes the next velocity of every particle.
func (s *Swarm) accelerate() {
	w := s.cfg.Weights
	diff := make([]float64, s.cfg.Dimensions)
	for i := range s.particles {
		p := &s.particles[i]
		floats.Scale(s.inertia, p.Velocity)

		if p.BestPosition != nil {
			floats.SubTo(diff, p.BestPosition, p.Position)
			floats.AddScaled(p.Velocity, w.Cognitive*s.rng.Float64(), diff)
		}

		if s.genBest != nil {
			floats.SubTo(diff, s.genBest, p.Position)
			floats.AddScaled(p.Velocity, w.Social*s.rng.Float64(), diff)
		}

		floats.AddScaled(p.Velocity, w.Noise*s.inertia, s.randomSpeed())
	}
}

// move applies velocities and stops particles at the walls.
func (s *Swarm) move() {
	b := s.tracker.Problem().Bounds
	for i := range s.particles {
		p := &s.particles[i]
		floats.Add(p.Position, p.Velocity)
		clamp(p.Position, p.Velocity, b)
	}
}

// clamp pins out-of-box coordinates to the boundary and zeroes the
// matching velocity components.
func clamp(pos, vel []float64, b optimization.Bounds) {
	for d, x := range pos {
		switch {
		case x < b.Low:
			pos[d] = b.Low
			vel[d] = 0
		case x > b.High:
			pos[d] = b.High
			vel[d] = 0
		}
	}
}

// Run performs steps calls to SolveStep and returns their evaluations.
func (s *Swarm) Run(steps int) []optimization.Evaluation {
	return optimization.Run(s.tracker, steps, s.SolveStep)
}

// Restart discards the swarm, counters and best-so-far and restores the
// initial inertia.
func (s *Swarm) Restart() {
	s.tracker.Reset()
	s.budget.Current = 0
	s.budget.Max = s.cfg.Generations
	s.phase = unseeded
	s.particles = nil
	s.genBest = nil
	s.genBestValue = s.cfg.Direction.Worst()
	s.inertia = s.cfg.Weights.Inertia
}

// Best returns the best solution since the last restart.
func (s *Swarm) Best() optimization.Solution {
	return s.tracker.Best()
}

// Progress returns the run counters. Current counts generations.
func (s *Swarm) Progress() optimization.Progress {
	return optimization.Progress{
		Evals:   s.tracker.Evals(),
		Current: s.budget.Current,
		Max:     s.budget.Max,
		BestAt:  s.tracker.Best().FoundAt,
	}
}

// Forever reports the restart-on-exhaustion policy.
func (s *Swarm) Forever() bool {
	return s.budget.Forever
}

// SetForever sets the restart-on-exhaustion policy.
func (s *Swarm) SetForever(forever bool) {
	s.budget.Forever = forever
}

// Probe returns the best of the corner and centre evaluations.
func (s *Swarm) Probe() float64 {
	return optimization.Probe(s.Problem(), s.cfg.Dimensions, s.cfg.Direction)
}
