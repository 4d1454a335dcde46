// Package bayesian implements Bayesian optimisation: a Gaussian process
// surrogate of the objective decides where to evaluate next. The search
// works in the unit cube and scales points into the problem box.
package bayesian

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/acquisition"
	"github.com/copyleftdev/landscape/internal/optimization/kernels"
)

// duplicateTolerance is the unit cube distance under which a proposal is
// considered already observed.
const duplicateTolerance = 1e-9

// Config contains configuration for the optimiser. Settings.Precision is
// ignored.
type Config struct {
	optimization.Settings

	// InitialPoints is the size of the Latin hypercube design evaluated
	// before the surrogate is used
	InitialPoints int
	// Iterations is the number of surrogate guided evaluations
	Iterations int
	// Grace extends the budget while the best is at most this many
	// evaluations old
	Grace int

	// Kernel name and length scale in unit cube coordinates
	Kernel      string
	LengthScale float64
	NoiseVar    float64

	// Acquisition name and its parameter: xi for "ei", kappa for "ucb"
	Acquisition string
	Exploration float64

	// Starts is the number of Nelder-Mead runs per proposal
	Starts int
	// MaxHistory bounds the surrogate training set: the best observation
	// and the most recent ones
	MaxHistory int

	// Logger receives surrogate diagnostics, nil discards
	Logger *zap.Logger
}

// DefaultConfig returns the default optimiser parameters.
func DefaultConfig() Config {
	return Config{
		Settings: optimization.Settings{
			Direction:  optimization.Minimize,
			Dimensions: 2,
		},
		InitialPoints: 10,
		Iterations:    50,
		Grace:         0,
		Kernel:        kernels.NameMatern52,
		LengthScale:   0.25,
		NoiseVar:      1e-6,
		Acquisition:   acquisition.NameEI,
		Exploration:   0.01,
		Starts:        5,
		MaxHistory:    100,
	}
}

// Optimizer is a steppable Bayesian optimiser. One step is one evaluation.
type Optimizer struct {
	cfg     Config
	rng     *rand.Rand
	tracker *optimization.Tracker
	budget  optimization.Budget
	logger  *zap.Logger

	kernel kernels.Kernel
	gp     *GP
	acq    acquisition.Function

	design   [][]float64
	designed int

	// finite observations in unit cube coordinates
	units  [][]float64
	values []float64
	best   int
}

var _ optimization.Stepper = (*Optimizer)(nil)

// New creates a Bayesian optimiser over problem.
func New(problem optimization.Problem, cfg Config) (*Optimizer, error) {
	if err := optimization.ValidateSettings("bayesian", problem, cfg.Settings); err != nil {
		return nil, err
	}
	switch {
	case cfg.InitialPoints < 1:
		return nil, optimization.InvalidConfigf("bayesian", "initial points must be positive, got %d", cfg.InitialPoints)
	case cfg.Iterations < 1:
		return nil, optimization.InvalidConfigf("bayesian", "iterations must be positive, got %d", cfg.Iterations)
	case cfg.Grace < 0:
		return nil, optimization.InvalidConfigf("bayesian", "grace must not be negative, got %d", cfg.Grace)
	case cfg.Starts < 1:
		return nil, optimization.InvalidConfigf("bayesian", "starts must be positive, got %d", cfg.Starts)
	case cfg.MaxHistory < 2:
		return nil, optimization.InvalidConfigf("bayesian", "history must hold at least 2 points, got %d", cfg.MaxHistory)
	case cfg.NoiseVar < 0:
		return nil, optimization.InvalidConfigf("bayesian", "noise variance must not be negative, got %v", cfg.NoiseVar)
	}

	kernel, err := kernels.New(cfg.Kernel, cfg.LengthScale, 1)
	if err != nil {
		return nil, err
	}
	acq, err := acquisition.New(cfg.Acquisition, cfg.Exploration, cfg.Direction)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Optimizer{
		cfg:     cfg,
		rng:     cfg.RNG(),
		tracker: optimization.NewTracker(problem, cfg.Direction),
		logger:  logger.With(zap.String("function", problem.Name)),
		kernel:  kernel,
		acq:     acq,
	}
	o.Restart()
	o.budget.Forever = cfg.Forever
	return o, nil
}

// Name returns the algorithm description including its parameters.
func (o *Optimizer) Name() string {
	return fmt.Sprintf("Bayesian Optimisation Algorithm (Gaussian process, %s kernel, %s acquisition), "+
		"initialPoints = %d iterations = %d lengthScale = %g",
		o.cfg.Kernel, o.cfg.Acquisition, o.cfg.InitialPoints, o.cfg.Iterations, o.cfg.LengthScale)
}

// Problem returns the searched catalog entry.
func (o *Optimizer) Problem() optimization.Problem {
	return o.tracker.Problem()
}

// Surrogate returns the Gaussian process of the last proposal.
func (o *Optimizer) Surrogate() *GP {
	return o.gp
}

// Observations returns the number of finite evaluations the surrogate can
// learn from.
func (o *Optimizer) Observations() int {
	return len(o.values)
}

// SolveStep evaluates one point: the next design point while the design
// lasts, the acquisition maximiser afterwards.
func (o *Optimizer) SolveStep() bool {
	if o.budget.Exhausted() {
		switch {
		case o.budget.Current > 0 && o.budget.Recent(o.tracker.Best().FoundAt, o.cfg.Grace):
			o.budget.Max += o.cfg.Grace
		case o.budget.Forever:
			o.Restart()
		default:
			return false
		}
	}

	o.budget.Current++
	var u []float64
	if o.designed < len(o.design) {
		u = o.design[o.designed]
		o.designed++
	} else {
		u = o.propose()
	}

	x := o.scale(u)
	v := o.tracker.Eval(x)
	o.tracker.Offer(v, x, nil, o.budget.Current)
	o.observe(u, v)
	return true
}

func (o *Optimizer) scale(u []float64) []float64 {
	b := o.tracker.Problem().Bounds
	x := make([]float64, len(u))
	for i, ui := range u {
		x[i] = b.Low + ui*b.Width()
	}
	return x
}

func (o *Optimizer) observe(u []float64, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	o.units = append(o.units, u)
	o.values = append(o.values, v)
	if len(o.values) == 1 || o.cfg.Direction.Better(v, o.values[o.best]) {
		o.best = len(o.values) - 1
	}
}

// trainingSet returns the best observation followed by the most recent
// ones, at most MaxHistory rows.
func (o *Optimizer) trainingSet() (*mat.Dense, *mat.VecDense) {
	n := len(o.values)
	from := 0
	if n > o.cfg.MaxHistory {
		from = n - o.cfg.MaxHistory + 1
	}
	rows := []int{}
	if o.best < from {
		rows = append(rows, o.best)
	}
	for i := from; i < n; i++ {
		rows = append(rows, i)
	}

	X := mat.NewDense(len(rows), o.cfg.Dimensions, nil)
	y := mat.NewVecDense(len(rows), nil)
	for r, i := range rows {
		X.SetRow(r, o.units[i])
		y.SetVec(r, o.values[i])
	}
	return X, y
}

// propose fits the surrogate and returns the acquisition maximiser, or a
// uniform random point when there is nothing to learn from or the search
// lands on an observed point.
func (o *Optimizer) propose() []float64 {
	if len(o.values) == 0 {
		return o.randomUnit()
	}
	o.gp = NewGP(o.kernel, o.cfg.NoiseVar, o.logger)
	if err := o.gp.Fit(o.trainingSet()); err != nil {
		o.logger.Warn("Surrogate fit failed, sampling at random", zap.Error(err))
		return o.randomUnit()
	}
	o.acq.UpdateBest(o.values[o.best])

	u, ok := o.maximizeAcquisition()
	if !ok || o.observed(u) {
		return o.randomUnit()
	}
	return u
}

func (o *Optimizer) randomUnit() []float64 {
	u := make([]float64, o.cfg.Dimensions)
	for i := range u {
		u[i] = o.rng.Float64()
	}
	return u
}

func (o *Optimizer) observed(u []float64) bool {
	for _, seen := range o.units {
		if floats.Distance(u, seen, 2) < duplicateTolerance {
			return true
		}
	}
	return false
}

// maximizeAcquisition runs Nelder-Mead on the negated acquisition from the
// best observation and Starts-1 random points.
func (o *Optimizer) maximizeAcquisition() ([]float64, bool) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			u := clampUnit(append([]float64(nil), x...))
			mu, sd, err := o.gp.PredictPoint(u)
			if err != nil {
				return math.Inf(1)
			}
			return -o.acq.Compute(mu, sd)
		},
	}

	var bestU []float64
	bestF := math.Inf(1)
	for s := 0; s < o.cfg.Starts; s++ {
		var start []float64
		if s == 0 {
			start = append(start, o.units[o.best]...)
		} else {
			start = o.randomUnit()
		}
		settings := &optimize.Settings{
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-6,
				Relative:   1e-6,
				Iterations: 50,
			},
			FuncEvaluations: 200,
			Concurrent:      1,
		}
		method := &optimize.NelderMead{SimplexSize: 0.2}
		result, err := optimize.Minimize(problem, start, settings, method)
		if result == nil {
			o.logger.Debug("Acquisition search failed", zap.Error(err))
			continue
		}
		if result.F < bestF {
			bestF = result.F
			bestU = clampUnit(append([]float64(nil), result.X...))
		}
	}
	if bestU == nil || math.IsInf(bestF, 0) || math.IsNaN(bestF) {
		return nil, false
	}
	return bestU, true
}

func clampUnit(u []float64) []float64 {
	for i, v := range u {
		u[i] = math.Max(0, math.Min(1, v))
	}
	return u
}

// latinHypercube returns n points of [0,1]^dims with one point in every
// row and column stratum of each dimension.
func latinHypercube(rng *rand.Rand, n, dims int) [][]float64 {
	samples := make([][]float64, n)
	for j := range samples {
		samples[j] = make([]float64, dims)
	}
	strata := make([]float64, n)
	for i := 0; i < dims; i++ {
		for j := range strata {
			strata[j] = (float64(j) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(k, l int) {
			strata[k], strata[l] = strata[l], strata[k]
		})
		for j := range samples {
			samples[j][i] = strata[j]
		}
	}
	return samples
}

// Run performs steps calls to SolveStep and returns their evaluations.
func (o *Optimizer) Run(steps int) []optimization.Evaluation {
	return optimization.Run(o.tracker, steps, o.SolveStep)
}

// Restart discards the observations, counters and best-so-far and draws a
// new design.
func (o *Optimizer) Restart() {
	o.tracker.Reset()
	o.budget.Current = 0
	o.budget.Max = o.cfg.InitialPoints + o.cfg.Iterations
	o.design = latinHypercube(o.rng, o.cfg.InitialPoints, o.cfg.Dimensions)
	o.designed = 0
	o.units = nil
	o.values = nil
	o.best = 0
	o.gp = nil
}

// Best returns the best solution since the last restart.
func (o *Optimizer) Best() optimization.Solution {
	return o.tracker.Best()
}

// Progress returns the run counters. Current counts evaluations.
func (o *Optimizer) Progress() optimization.Progress {
	return optimization.Progress{
		Evals:   o.tracker.Evals(),
		Current: o.budget.Current,
		Max:     o.budget.Max,
		BestAt:  o.tracker.Best().FoundAt,
	}
}

// Forever reports the restart-on-exhaustion policy.
func (o *Optimizer) Forever() bool {
	return o.budget.Forever
}

// SetForever sets the restart-on-exhaustion policy.
func (o *Optimizer) SetForever(forever bool) {
	o.budget.Forever = forever
}

// Probe returns the best of the corner and centre evaluations.
func (o *Optimizer) Probe() float64 {
	return optimization.Probe(o.Problem(), o.cfg.Dimensions, o.cfg.Direction)
}
