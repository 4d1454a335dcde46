package session

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/landscape/internal/config"
	"github.com/copyleftdev/landscape/internal/functions"
	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/bayesian"
	"github.com/copyleftdev/landscape/internal/optimization/bruteforce"
	"github.com/copyleftdev/landscape/internal/optimization/genetic"
	"github.com/copyleftdev/landscape/internal/optimization/hillclimb"
	"github.com/copyleftdev/landscape/internal/optimization/randomsearch"
	"github.com/copyleftdev/landscape/internal/optimization/swarm"
)

// Kind names an algorithm family.
type Kind string

const (
	KindRandom     Kind = "random"
	KindBruteForce Kind = "bruteforce"
	KindHillClimb  Kind = "bihc"
	KindSwarm      Kind = "pso"
	KindGenetic    Kind = "ga"
	KindHybrid     Kind = "gabihc"
	KindBayes      Kind = "bayes"
)

// Entry is one algorithm of a roster together with its per-frame step
// count.
type Entry struct {
	Kind       Kind
	Algorithm  optimization.Stepper
	Steps      int
	Dimensions int
	Direction  optimization.Direction
}

// maxBayesDesign caps the initial design of the Bayesian optimiser.
const maxBayesDesign = 10

// Mutation rates of the genetic variants in a roster.
var rosterMutationRates = []float64{0.01, 0.5, 0.95}

// rosterWeights are the swarm coefficients used in a roster.
var rosterWeights = swarm.Weights{
	Inertia:      1,
	Cognitive:    2.05,
	Social:       2.05,
	InertiaDecay: 0.99,
	SpeedScale:   0.1,
	Noise:        0.01,
}

// BuildRoster creates the default algorithm line-up for every problem:
// random search, brute force, hill climbing, particle swarm, three genetic
// algorithms, three hybrids and a Bayesian optimiser. With TrailingForever
// a genetic algorithm running forever on Rastrigin closes the roster.
func BuildRoster(problems []optimization.Problem, s config.Solver, opts ...RosterOption) ([]*Entry, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	b := rosterBuilder{solver: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	for _, p := range problems {
		b.addRandom(p)
		b.addBruteForce(p)
		b.addHillClimb(p)
		b.addSwarm(p)
		for _, pm := range rosterMutationRates {
			b.addGenetic(p, pm, false, s.Forever)
		}
		for _, pm := range rosterMutationRates {
			b.addGenetic(p, pm, true, s.Forever)
		}
		b.addBayes(p)
	}

	if s.TrailingForever {
		rastrigin, err := functions.Lookup("rastrigin")
		if err != nil {
			return nil, err
		}
		b.addGenetic(rastrigin, rosterMutationRates[0], false, true)
	}

	if b.err != nil {
		return nil, b.err
	}
	return b.entries, nil
}

// RosterOption configures BuildRoster.
type RosterOption func(*rosterBuilder)

// WithRosterLogger hands l to the algorithms that log diagnostics.
func WithRosterLogger(l *zap.Logger) RosterOption {
	return func(b *rosterBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

type rosterBuilder struct {
	solver  config.Solver
	logger  *zap.Logger
	entries []*Entry
	err     error
}

func (b *rosterBuilder) direction() optimization.Direction {
	if b.solver.Maximize {
		return optimization.Maximize
	}
	return optimization.Minimize
}

// settings returns the shared settings of the next entry. A fixed seed is
// offset by the slot so entries draw independent streams.
func (b *rosterBuilder) settings(precision int) optimization.Settings {
	var seed int64
	if b.solver.Seed != 0 {
		seed = b.solver.Seed + int64(len(b.entries))
	}
	return optimization.Settings{
		Direction:  b.direction(),
		Dimensions: b.solver.Dimensions,
		Precision:  precision,
		Forever:    b.solver.Forever,
		Seed:       seed,
	}
}

// stalledBudget is the attempt budget of point searches: the generation
// budget plus five grace windows.
func (b *rosterBuilder) stalledBudget() int {
	return b.solver.Generations + 5*b.solver.Grace
}

func (b *rosterBuilder) add(kind Kind, alg optimization.Stepper, err error, steps int) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = err
		return
	}
	b.entries = append(b.entries, &Entry{
		Kind:       kind,
		Algorithm:  alg,
		Steps:      steps,
		Dimensions: b.solver.Dimensions,
		Direction:  b.direction(),
	})
}

func (b *rosterBuilder) addRandom(p optimization.Problem) {
	cfg := randomsearch.Config{
		Settings: b.settings(b.solver.Precision),
		Repeats:  b.solver.PopSize * b.stalledBudget(),
	}
	alg, err := randomsearch.New(p, cfg)
	b.add(KindRandom, alg, err, b.solver.Steps*b.solver.PopSize)
}

func (b *rosterBuilder) addBruteForce(p optimization.Problem) {
	cfg := bruteforce.Config{Settings: b.settings(b.solver.BrutePrecision)}
	alg, err := bruteforce.New(p, cfg)
	b.add(KindBruteForce, alg, err, b.solver.Steps)
}

func (b *rosterBuilder) addHillClimb(p optimization.Problem) {
	cfg := hillclimb.Config{
		Settings: b.settings(b.solver.Precision),
		Repeats:  b.stalledBudget(),
	}
	alg, err := hillclimb.New(p, cfg)
	b.add(KindHillClimb, alg, err, b.solver.Steps)
}

func (b *rosterBuilder) addSwarm(p optimization.Problem) {
	cfg := swarm.Config{
		Settings:    b.settings(b.solver.Precision),
		PopSize:     b.solver.PopSize,
		Generations: b.solver.Generations,
		Grace:       b.solver.Grace,
		Weights:     rosterWeights,
	}
	alg, err := swarm.New(p, cfg)
	b.add(KindSwarm, alg, err, b.solver.Steps)
}

func (b *rosterBuilder) addGenetic(p optimization.Problem, pm float64, hybrid, forever bool) {
	cfg := genetic.DefaultConfig()
	cfg.Settings = b.settings(b.solver.Precision)
	cfg.Forever = forever
	cfg.PopSize = b.solver.PopSize
	cfg.Generations = b.solver.Generations
	cfg.Grace = b.solver.Grace
	cfg.Pm = pm

	if hybrid {
		alg, err := genetic.NewHybrid(p, cfg)
		b.add(KindHybrid, alg, err, b.solver.Steps)
		return
	}
	alg, err := genetic.New(p, cfg)
	b.add(KindGenetic, alg, err, b.solver.Steps)
}

// addBayes adds a Bayesian optimiser spending one generation's worth of
// evaluations per generation after a design of at most maxBayesDesign
// points.
func (b *rosterBuilder) addBayes(p optimization.Problem) {
	cfg := bayesian.DefaultConfig()
	cfg.Settings = b.settings(b.solver.Precision)
	cfg.InitialPoints = min(b.solver.PopSize, maxBayesDesign)
	cfg.Iterations = b.solver.PopSize * b.solver.Generations
	cfg.Grace = b.solver.Grace
	cfg.Logger = b.logger
	alg, err := bayesian.New(p, cfg)
	b.add(KindBayes, alg, err, b.solver.Steps)
}
