// Package genetic implements a binary genetic algorithm and its hybrid with
// best-improvement hill climbing.
//
// A generation is mutation, crossover, evaluation and roulette-wheel
// selection over the whole population and is the unit of work of one
// SolveStep. When the generation budget runs out the budget is extended by
// the grace window as long as the best solution was found within that
// window. The hybrid variant additionally polishes every member of the
// final population with exhaustive hill climbing, one member per step.
package genetic

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/encoding"
	"github.com/copyleftdev/landscape/internal/optimization/hillclimb"
)

type phase int

const (
	unseeded phase = iota
	evolving
	bootstrapping
	exhausted
)

// Config contains configuration for the genetic algorithm
type Config struct {
	optimization.Settings

	// Nominal population size
	PopSize int

	// Generation budget before the grace policy applies
	Generations int

	// Grace window in generations
	Grace int

	// Per-bit mutation probability
	Pm float64

	// Crossover participation threshold
	Pcx float64

	// Exponent applied to normalised fitness
	SelPressure float64
}

// DefaultConfig returns the default genetic algorithm parameters.
func DefaultConfig() Config {
	return Config{
		Settings: optimization.Settings{
			Direction:  optimization.Minimize,
			Dimensions: 2,
			Precision:  5,
		},
		PopSize:     100,
		Generations: 1000,
		Grace:       200,
		Pm:          0.01,
		Pcx:         0.2,
		SelPressure: 1,
	}
}

// Algorithm is a generational binary genetic algorithm.
type Algorithm struct {
	cfg     Config
	hybrid  bool
	enc     *encoding.Encoder
	rng     *rand.Rand
	tracker *optimization.Tracker
	budget  optimization.Budget

	phase     phase
	polishIdx int

	pop    []encoding.Bits
	points [][]float64
	values []float64
	genMin float64
	genMax float64
}

var _ optimization.Stepper = (*Algorithm)(nil)

// New creates a genetic algorithm over problem.
func New(problem optimization.Problem, cfg Config) (*Algorithm, error) {
	return newAlgorithm("genetic", problem, cfg, false)
}

// NewHybrid creates a genetic algorithm whose final population is polished
// by hill climbing before the run ends.
func NewHybrid(problem optimization.Problem, cfg Config) (*Algorithm, error) {
	return newAlgorithm("genetic/hybrid", problem, cfg, true)
}

func newAlgorithm(component string, problem optimization.Problem, cfg Config, hybrid bool) (*Algorithm, error) {
	if err := optimization.ValidateSettings(component, problem, cfg.Settings); err != nil {
		return nil, err
	}
	switch {
	case cfg.PopSize < 1:
		return nil, optimization.InvalidConfigf(component, "population size must be positive, got %d", cfg.PopSize)
	case cfg.Generations < 1:
		return nil, optimization.InvalidConfigf(component, "generations must be positive, got %d", cfg.Generations)
	case cfg.Grace < 0:
		return nil, optimization.InvalidConfigf(component, "grace must not be negative, got %d", cfg.Grace)
	case cfg.SelPressure <= 0:
		return nil, optimization.InvalidConfigf(component, "selection pressure must be positive, got %v", cfg.SelPressure)
	}
	enc, err := encoding.New(problem.Bounds, cfg.Precision, cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	if enc.Len() < 2 {
		return nil, optimization.InvalidConfigf(component, "crossover needs at least 2 bits, got %d", enc.Len())
	}
	return &Algorithm{
		cfg:     cfg,
		hybrid:  hybrid,
		enc:     enc,
		rng:     cfg.RNG(),
		tracker: optimization.NewTracker(problem, cfg.Direction),
		budget:  optimization.Budget{Max: cfg.Generations, Forever: cfg.Forever},
		genMin:  math.Inf(1),
		genMax:  math.Inf(-1),
	}, nil
}

// Name returns the algorithm description including its parameters.
func (a *Algorithm) Name() string {
	kind := "Genetic Algorithm (Binary)"
	if a.hybrid {
		kind = "Genetic Algorithm boostrapped with post-BIHC (Binary)"
	}
	return fmt.Sprintf("%s, popSize = %d pm = %v pcx = %v selPressureExponent = %v",
		kind, a.cfg.PopSize, a.cfg.Pm, a.cfg.Pcx, a.cfg.SelPressure)
}

// Problem returns the searched catalog entry.
func (a *Algorithm) Problem() optimization.Problem {
	return a.tracker.Problem()
}

// Encoder returns the bit encoding in use.
func (a *Algorithm) Encoder() *encoding.Encoder {
	return a.enc
}

// Population returns the current population. The slice is owned by the
// algorithm.
func (a *Algorithm) Population() []encoding.Bits {
	return a.pop
}

// GenerationRange returns the lowest and highest objective values of the
// last evaluated generation.
func (a *Algorithm) GenerationRange() (float64, float64) {
	return a.genMin, a.genMax
}

// SolveStep advances by one generation, or by one polished member while
// the hybrid bootstrap phase runs.
func (a *Algorithm) SolveStep() bool {
	switch a.phase {
	case exhausted:
		if !a.budget.Forever {
			return false
		}
		a.Restart()
	case bootstrapping:
		if a.polishIdx < len(a.pop) {
			a.polishNext()
			return true
		}
		a.phase = evolving
		if !a.endOfBudget() {
			return false
		}
	case evolving:
		if a.budget.Exhausted() {
			if !a.budget.Recent(a.tracker.Best().FoundAt, a.cfg.Grace) && a.hybrid {
				a.phase = bootstrapping
				a.polishIdx = 0
				a.budget.Max += len(a.pop)
				a.polishNext()
				return true
			}
			if !a.endOfBudget() {
				return false
			}
		}
	}

	a.generation()
	return true
}

// endOfBudget applies the grace policy to an exhausted budget and reports
// whether a generation should still run in this step.
func (a *Algorithm) endOfBudget() bool {
	switch {
	case a.budget.Recent(a.tracker.Best().FoundAt, a.cfg.Grace):
		a.budget.Max += a.cfg.Grace
	case a.budget.Forever:
		a.Restart()
	default:
		a.phase = exhausted
		return false
	}
	return true
}

func (a *Algorithm) generation() {
	a.budget.Current++
	if len(a.pop) == 0 {
		a.seed()
	}
	a.phase = evolving
	a.mutate()
	a.crossover()
	a.evaluate()
	a.selection()
}

func (a *Algorithm) seed() {
	a.pop = make([]encoding.Bits, a.cfg.PopSize)
	for i := range a.pop {
		a.pop[i] = a.enc.Random(a.rng)
	}
}

func (a *Algorithm) mutate() {
	for _, c := range a.pop {
		for i := range c {
			if a.rng.Float64() < a.cfg.Pm {
				c.Flip(i)
			}
		}
	}
}

type scored struct {
	idx   int
	score float64
}

// crossover pairs individuals in random order while their scores stay
// below Pcx and appends the offspring to the population.
func (a *Algorithm) crossover() {
	order := make([]scored, len(a.pop))
	for i := range order {
		order[i] = scored{idx: i, score: a.rng.Float64()}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].score < order[j].score })

	pending := -1
	for _, s := range order {
		if s.score >= a.cfg.Pcx {
			if pending >= 0 && a.pairTrailing() {
				a.pop = append(a.pop, a.cross(a.pop[pending], a.pop[s.idx])...)
			}
			break
		}
		if pending < 0 {
			pending = s.idx
			continue
		}
		a.pop = append(a.pop, a.cross(a.pop[pending], a.pop[s.idx])...)
		pending = -1
	}
}

// pairTrailing decides whether an unpaired eligible individual mates with
// the first individual above the threshold.
func (a *Algorithm) pairTrailing() bool {
	return a.rng.Float64() < 0.5
}

// cross performs single point crossover at a cut in [1, len-2].
func (a *Algorithm) cross(c0, c1 encoding.Bits) []encoding.Bits {
	pos := int(1 + a.rng.Float64()*float64(len(c0)-2))
	return crossAt(c0, c1, pos)
}

func crossAt(c0, c1 encoding.Bits, pos int) []encoding.Bits {
	c01 := make(encoding.Bits, 0, len(c0))
	c01 = append(append(c01, c0[:pos]...), c1[pos:]...)
	c10 := make(encoding.Bits, 0, len(c0))
	c10 = append(append(c10, c1[:pos]...), c0[pos:]...)
	return []encoding.Bits{c01, c10}
}

func (a *Algorithm) evaluate() {
	a.points = make([][]float64, len(a.pop))
	a.values = make([]float64, len(a.pop))
	for i, c := range a.pop {
		a.values[i], a.points[i] = a.decodeEval(c)
		a.tracker.Offer(a.values[i], a.points[i], c, a.budget.Current)
	}
	a.genMin = floats.Min(a.values)
	a.genMax = floats.Max(a.values)
}

func (a *Algorithm) decodeEval(b encoding.Bits) (float64, []float64) {
	x := a.enc.Decode(b)
	return a.tracker.Eval(x), x
}

// selection resamples the population back to PopSize with
// fitness-proportionate probability.
func (a *Algorithm) selection() {
	fit := fitness(a.values, a.genMin, a.genMax, a.cfg.Direction, a.cfg.SelPressure)
	cum := make([]float64, len(fit))
	floats.CumSum(cum, fit)

	total := cum[len(cum)-1]
	draws := make([]float64, a.cfg.PopSize)
	for i := range draws {
		draws[i] = a.rng.Float64() * total
	}
	sort.Float64s(draws)

	picks := rouletteSelect(cum, draws)
	pop := make([]encoding.Bits, len(picks))
	points := make([][]float64, len(picks))
	values := make([]float64, len(picks))
	for i, p := range picks {
		pop[i] = a.pop[p].Clone()
		points[i] = a.points[p]
		values[i] = a.values[p]
	}
	a.pop, a.points, a.values = pop, points, values
}

// fitness normalises evaluations against the generation range so the best
// value maps to about 2 and the worst to about 0.02, then applies the
// selection pressure exponent.
func fitness(values []float64, lo, hi float64, dir optimization.Direction, pressure float64) []float64 {
	spread := hi - lo
	if spread == 0 {
		spread = 1
	}
	eps := spread * 0.01
	div := spread / 2

	fit := make([]float64, len(values))
	for i, v := range values {
		var f float64
		if dir == optimization.Maximize {
			f = (v - lo + eps) / div
		} else {
			f = (hi - v + eps) / div
		}
		fit[i] = math.Pow(f, pressure)
	}
	return fit
}

// rouletteSelect maps sorted draws onto cumulative fitness buckets in a
// single forward sweep.
func rouletteSelect(cum, draws []float64) []int {
	picks := make([]int, 0, len(draws))
	j := 0
	for i, ps := range cum {
		for j < len(draws) && draws[j] < ps {
			picks = append(picks, i)
			j++
		}
	}
	return picks
}

// polishNext climbs the next population member to its local optimum.
func (a *Algorithm) polishNext() {
	a.budget.Current++
	i := a.polishIdx
	a.values[i], a.points[i] = hillclimb.Climb(a.pop[i], a.values[i], a.points[i], a.cfg.Direction, a.decodeEval)
	a.tracker.Offer(a.values[i], a.points[i], a.pop[i], a.budget.Current)
	a.polishIdx++
}

// Run performs steps calls to SolveStep and returns their evaluations.
func (a *Algorithm) Run(steps int) []optimization.Evaluation {
	return optimization.Run(a.tracker, steps, a.SolveStep)
}

// Restart discards the population, counters and best-so-far.
func (a *Algorithm) Restart() {
	a.tracker.Reset()
	a.budget.Current = 0
	a.budget.Max = a.cfg.Generations
	a.phase = unseeded
	a.polishIdx = 0
	a.pop = nil
	a.points = nil
	a.values = nil
	a.genMin = math.Inf(1)
	a.genMax = math.Inf(-1)
}

// Best returns the best solution since the last restart.
func (a *Algorithm) Best() optimization.Solution {
	return a.tracker.Best()
}

// Progress returns the run counters. Current counts generations, including
// hybrid polishing steps.
func (a *Algorithm) Progress() optimization.Progress {
	return optimization.Progress{
		Evals:   a.tracker.Evals(),
		Current: a.budget.Current,
		Max:     a.budget.Max,
		BestAt:  a.tracker.Best().FoundAt,
	}
}

// Forever reports the restart-on-exhaustion policy.
func (a *Algorithm) Forever() bool {
	return a.budget.Forever
}

// SetForever sets the restart-on-exhaustion policy.
func (a *Algorithm) SetForever(forever bool) {
	a.budget.Forever = forever
}

// Probe returns the best of the corner and centre evaluations.
func (a *Algorithm) Probe() float64 {
	return optimization.Probe(a.Problem(), a.cfg.Dimensions, a.cfg.Direction)
}
