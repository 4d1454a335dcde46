package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/copyleftdev/landscape/internal/errors"
	"github.com/copyleftdev/landscape/internal/functions"
	"github.com/copyleftdev/landscape/internal/logging"
	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/session"
)

// DefaultSessionID names the session created from configuration at startup.
const DefaultSessionID = "default"

// minPlayInterval bounds the autoplay frame rate.
const minPlayInterval = 5 * time.Millisecond

// SessionRequest creates a session. Unset fields fall back to the solver
// configuration.
type SessionRequest struct {
	ID          string   `json:"id,omitempty"`
	Functions   []string `json:"functions,omitempty"`
	Dimensions  *int     `json:"dimensions,omitempty"`
	Precision   *int     `json:"precision,omitempty"`
	PopSize     *int     `json:"pop_size,omitempty"`
	Generations *int     `json:"generations,omitempty"`
	Grace       *int     `json:"grace,omitempty"`
	Steps       *int     `json:"steps,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	Forever     *bool    `json:"forever,omitempty"`
	Maximize    *bool    `json:"maximize,omitempty"`
	RunAll      *bool    `json:"run_all,omitempty"`
	Trailing    *bool    `json:"trailing_forever,omitempty"`
}

// rosterError maps a roster construction failure to an API error. Invalid
// algorithm parameters are the caller's fault; anything else is ours.
func rosterError(err error) error {
	if oe, ok := optimization.IsOptimizationError(err); ok && apperrors.Is(oe, optimization.ErrInvalidConfig) {
		return apperrors.Wrapf(err, "invalid %s parameters", oe.Component).WithKind(apperrors.KindInvalid)
	}
	return apperrors.Wrap(err, "building roster")
}

// sessionState is a session plus its optional autoplay loop.
type sessionState struct {
	*session.Session
	created time.Time

	// set while autoplay runs; guarded by Server.sessionsMu
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

func (st *sessionState) playing() bool {
	return st.cancel != nil
}

func (st *sessionState) stop() {
	if st.cancel == nil {
		return
	}
	st.cancel()
	<-st.done
	st.cancel = nil
	st.done = nil
	st.interval = 0
}

// CreateSession builds a roster from the solver configuration overridden by
// req and registers it under req.ID, or a fresh UUID when empty.
func (s *Server) CreateSession(req SessionRequest) (*session.Session, error) {
	solver := s.cfg.Solver
	if req.Functions != nil {
		solver.Functions = req.Functions
	}
	setInt(&solver.Dimensions, req.Dimensions)
	setInt(&solver.Precision, req.Precision)
	setInt(&solver.PopSize, req.PopSize)
	setInt(&solver.Generations, req.Generations)
	setInt(&solver.Grace, req.Grace)
	setInt(&solver.Steps, req.Steps)
	if req.Seed != nil {
		solver.Seed = *req.Seed
	}
	setBool(&solver.Forever, req.Forever)
	setBool(&solver.Maximize, req.Maximize)
	setBool(&solver.RunAll, req.RunAll)
	setBool(&solver.TrailingForever, req.Trailing)

	if err := solver.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "invalid session parameters").WithKind(apperrors.KindInvalid)
	}
	problems, err := functions.Select(solver.Functions)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid session functions").WithKind(apperrors.KindInvalid)
	}
	zl := logging.NewZapLogger(s.logger.WithFields(map[string]interface{}{"component": "session"}))
	entries, err := session.BuildRoster(problems, solver, session.WithRosterLogger(zl))
	if err != nil {
		return nil, rosterError(err)
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return nil, apperrors.Errorf("session %q already exists", id).WithKind(apperrors.KindConflict)
	}

	sess, err := session.New(id, entries,
		session.WithLogger(zl),
		session.WithMetrics(s.metrics),
		session.WithRunAll(solver.RunAll),
	)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = &sessionState{Session: sess, created: time.Now()}

	s.logger.Info("Session created", map[string]interface{}{
		"session_id": id,
		"algorithms": sess.Len(),
		"functions":  len(problems),
	})
	return sess, nil
}

// lookup returns the session registered under id.
func (s *Server) lookup(id string) (*sessionState, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NotFoundf("session %q not found", id)
	}
	return st, nil
}

// CloseSession stops and removes a session.
func (s *Server) CloseSession(id string) error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return apperrors.NotFoundf("session %q not found", id)
	}
	st.stop()
	st.Close()
	delete(s.sessions, id)

	s.logger.Info("Session closed", map[string]interface{}{"session_id": id})
	return nil
}

// Play advances a session by one frame every interval until stopped.
// Restarting a playing session replaces its interval.
func (s *Server) Play(id string, interval time.Duration) error {
	if interval < minPlayInterval {
		return apperrors.Invalidf("interval must be at least %v, got %v", minPlayInterval, interval)
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return apperrors.NotFoundf("session %q not found", id)
	}
	st.stop()

	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	st.done = make(chan struct{})
	st.interval = interval
	go s.play(ctx, st.Session, interval, st.done)

	s.logger.Info("Autoplay started", map[string]interface{}{
		"session_id": id,
		"interval":   interval.String(),
	})
	return nil
}

// Stop ends the autoplay loop of a session.
func (s *Server) Stop(id string) error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return apperrors.NotFoundf("session %q not found", id)
	}
	st.stop()
	return nil
}

func (s *Server) play(ctx context.Context, sess *session.Session, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.Frame()
		}
	}
}

// sessionSummary is the JSON view of a session.
type sessionSummary struct {
	session.Snapshot
	Created  time.Time `json:"created"`
	Playing  bool      `json:"playing"`
	Interval string    `json:"interval,omitempty"`
}

func (s *Server) summary(st *sessionState) sessionSummary {
	sum := sessionSummary{
		Snapshot: st.Info(),
		Created:       st.created,
		Playing:       st.playing(),
	}
	if st.interval > 0 {
		sum.Interval = st.interval.String()
	}
	return sum
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
