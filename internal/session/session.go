// Package session drives a roster of search algorithms the way an
// interactive viewer does: a fixed number of steps per frame for the active
// algorithm, switching between algorithms, and moving on to the next one
// once the active algorithm is exhausted.
package session

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/landscape/internal/errors"
	"github.com/copyleftdev/landscape/internal/metrics"
	"github.com/copyleftdev/landscape/internal/optimization"
)

// Frame is the outcome of one frame of work.
type Frame struct {
	// Index of the algorithm that ran, the active one before any advance
	Index int
	// Evaluations made during the frame
	Trace []optimization.Evaluation
	// Finished is set when the active algorithm returned an empty trace
	Finished bool
	// Active is the index of the active algorithm after the frame
	Active int
	// Skipped is set when the session is paused and nothing ran
	Skipped bool
}

// Session owns a roster and the driver state around it. All methods are
// safe for concurrent use; the algorithms themselves are only touched
// under the session lock.
type Session struct {
	mu      sync.Mutex
	id      string
	entries []*Entry
	active  int
	paused  bool
	runAll  bool
	frames  int

	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the event logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) {
		s.metrics = c
	}
}

// WithRunAll advances every algorithm each frame.
func WithRunAll(runAll bool) Option {
	return func(s *Session) {
		s.runAll = runAll
	}
}

// New creates a session over entries. The first entry starts active.
func New(id string, entries []*Entry, opts ...Option) (*Session, error) {
	if len(entries) == 0 {
		return nil, apperrors.Invalidf("session %q needs at least one algorithm", id).WithComponent("session")
	}
	for i, e := range entries {
		if e == nil || e.Algorithm == nil {
			return nil, apperrors.Invalidf("roster entry %d has no algorithm", i).WithComponent("session")
		}
		if e.Steps < 1 {
			e.Steps = 1
		}
	}

	s := &Session{
		id:      id,
		entries: entries,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", id))
	s.metrics.SessionOpened()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Len returns the roster size.
func (s *Session) Len() int {
	return len(s.entries)
}

// Close releases the session's metrics.
func (s *Session) Close() {
	s.metrics.SessionClosed()
}

func (s *Session) labels(i int) metrics.Algorithm {
	e := s.entries[i]
	return metrics.Algorithm{
		Session:  s.id,
		Slot:     strconv.Itoa(i),
		Kind:     string(e.Kind),
		Function: e.Algorithm.Problem().Name,
	}
}

// Frame performs one frame of work unless the session is paused.
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Frame{Index: s.active, Active: s.active, Skipped: true}
	}
	return s.frame()
}

// Step performs one frame of work even when paused.
func (s *Session) Step() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frame()
}

func (s *Session) frame() Frame {
	s.frames++
	if s.runAll {
		var trace []optimization.Evaluation
		for i := range s.entries {
			trace = append(trace, s.run(i)...)
		}
		return Frame{Index: s.active, Trace: trace, Active: s.active}
	}

	f := Frame{Index: s.active}
	f.Trace = s.run(s.active)
	if len(f.Trace) == 0 {
		f.Finished = true
		s.finish()
	}
	f.Active = s.active
	return f
}

// run performs one Run call of entry i and records it.
func (s *Session) run(i int) []optimization.Evaluation {
	e := s.entries[i]
	trace := e.Algorithm.Run(e.Steps)

	best := e.Algorithm.Best()
	progress := e.Algorithm.Progress()
	s.metrics.ObserveRun(s.labels(i), metrics.Run{
		Steps:       e.Steps,
		Evaluations: len(trace),
		Best:        best.Value,
		HasBest:     hasBest(best),
		Direction:   e.Direction.String(),
		Fraction:    progress.Fraction(),
	})
	if ce := s.logger.Check(zap.DebugLevel, "frame"); ce != nil {
		ce.Write(
			zap.Int("index", i),
			zap.Int("evaluations", len(trace)),
			zap.Float64("best", best.Value),
			zap.Int("current", progress.Current),
			zap.Int("max", progress.Max),
		)
	}
	return trace
}

// finish logs the exhausted active algorithm, then restarts and activates
// the next one.
func (s *Session) finish() {
	e := s.entries[s.active]
	best := e.Algorithm.Best()
	progress := e.Algorithm.Progress()
	s.logger.Info("algorithm finished",
		zap.Int("index", s.active),
		zap.String("name", e.Algorithm.Name()),
		zap.String("function", e.Algorithm.Problem().Name),
		zap.Float64("best", best.Value),
		zap.Int("evals_at_best", best.FoundAtEval),
		zap.Int("evals", progress.Evals),
		zap.Int("best_at", progress.BestAt),
		zap.Int("max", progress.Max),
	)

	next := (s.active + 1) % len(s.entries)
	s.entries[next].Algorithm.Restart()
	s.metrics.ObserveRestart(s.labels(next))
	s.activate(next)
}

func (s *Session) activate(i int) {
	s.active = i
	e := s.entries[i]
	s.logger.Info("algorithm selected",
		zap.Int("index", i),
		zap.String("name", e.Algorithm.Name()),
		zap.Bool("forever", e.Algorithm.Forever()),
	)
}

// Next activates the following algorithm, wrapping around.
func (s *Session) Next() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activate((s.active + 1) % len(s.entries))
	return s.status(s.active)
}

// Prev activates the preceding algorithm, wrapping around.
func (s *Session) Prev() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activate((s.active - 1 + len(s.entries)) % len(s.entries))
	return s.status(s.active)
}

// Select activates algorithm i.
func (s *Session) Select(i int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(i); err != nil {
		return Status{}, err
	}
	s.activate(i)
	return s.status(i), nil
}

func (s *Session) check(i int) error {
	if i < 0 || i >= len(s.entries) {
		return apperrors.NotFoundf("no algorithm at index %d, roster has %d", i, len(s.entries)).WithComponent("session")
	}
	return nil
}

// DoubleSteps doubles the steps per frame of the active algorithm, or of
// every algorithm in run-all mode, and returns the new value.
func (s *Session) DoubleSteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setSteps(s.entries[s.active].Steps * 2)
}

// HalveSteps halves the steps per frame, never going below one.
func (s *Session) HalveSteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := s.entries[s.active].Steps / 2
	if steps < 1 {
		steps = 1
	}
	return s.setSteps(steps)
}

// SetSteps sets the steps per frame of algorithm i.
func (s *Session) SetSteps(i, steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(i); err != nil {
		return err
	}
	if steps < 1 {
		return apperrors.Invalidf("steps per frame must be positive, got %d", steps).WithComponent("session")
	}
	s.entries[i].Steps = steps
	return nil
}

func (s *Session) setSteps(steps int) int {
	if s.runAll {
		for _, e := range s.entries {
			e.Steps = steps
		}
	} else {
		s.entries[s.active].Steps = steps
	}
	s.logger.Debug("steps per frame", zap.Int("steps", steps), zap.Bool("run_all", s.runAll))
	return steps
}

// ToggleForever flips the restart-on-exhaustion policy of the active
// algorithm and returns the new value.
func (s *Session) ToggleForever() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	alg := s.entries[s.active].Algorithm
	alg.SetForever(!alg.Forever())
	s.logger.Info("forever toggled", zap.Int("index", s.active), zap.Bool("forever", alg.Forever()))
	return alg.Forever()
}

// TogglePause flips the paused flag and returns the new value.
func (s *Session) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = !s.paused
	return s.paused
}

// SetRunAll switches between driving the active algorithm and driving
// every algorithm each frame.
func (s *Session) SetRunAll(runAll bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runAll = runAll
}

// Restart restarts algorithm i.
func (s *Session) Restart(i int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(i); err != nil {
		return Status{}, err
	}
	s.entries[i].Algorithm.Restart()
	s.metrics.ObserveRestart(s.labels(i))
	s.logger.Info("algorithm restarted", zap.Int("index", i))
	return s.status(i), nil
}

// Probe returns the baseline value of algorithm i without touching its run
// state.
func (s *Session) Probe(i int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(i); err != nil {
		return 0, err
	}
	return s.entries[i].Algorithm.Probe(), nil
}

// ActiveProblem returns the catalog entry and dimensionality of the
// active algorithm.
func (s *Session) ActiveProblem() (optimization.Problem, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[s.active]
	return e.Algorithm.Problem(), e.Dimensions
}
