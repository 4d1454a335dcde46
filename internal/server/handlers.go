package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/copyleftdev/landscape/internal/errors"
	"github.com/copyleftdev/landscape/internal/functions"
	"github.com/copyleftdev/landscape/internal/session"
)

// maxFrames caps the frames a single request may run.
const maxFrames = 10000

type functionView struct {
	Name string  `json:"name"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type evaluationView struct {
	Value float64   `json:"value"`
	Point []float64 `json:"point"`
}

type frameView struct {
	Index    int              `json:"index"`
	Active   int              `json:"active"`
	Finished bool             `json:"finished,omitempty"`
	Skipped  bool             `json:"skipped,omitempty"`
	Evals    int              `json:"evals"`
	Trace    []evaluationView `json:"trace,omitempty"`
}

func viewFrame(f session.Frame, withTrace bool) frameView {
	v := frameView{
		Index:    f.Index,
		Active:   f.Active,
		Finished: f.Finished,
		Skipped:  f.Skipped,
		Evals:    len(f.Trace),
	}
	if withTrace {
		v.Trace = make([]evaluationView, len(f.Trace))
		for i, e := range f.Trace {
			v.Trace[i] = evaluationView{Value: e.Value, Point: e.Point}
		}
	}
	return v
}

// FramesRequest asks for Count frames. Step runs them even while paused.
type FramesRequest struct {
	Count int  `json:"count"`
	Step  bool `json:"step"`
	Trace bool `json:"trace"`
}

// FramesResponse lists the frames run and the session state afterwards.
type FramesResponse struct {
	Frames  []frameView           `json:"frames"`
	Session session.Snapshot `json:"session"`
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, listFunctions())
}

func listFunctions() []functionView {
	catalog := functions.Catalog()
	out := make([]functionView, len(catalog))
	for i, p := range catalog {
		out[i] = functionView{Name: p.Name, Low: p.Bounds.Low, High: p.Bounds.High}
	}
	return out
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	sess, err := s.CreateSession(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	out := make([]sessionSummary, 0, len(s.sessions))
	for _, st := range s.sessions {
		out = append(out, s.summary(st))
	}
	s.respondJSON(w, http.StatusOK, out)
}

// withSession resolves the {id} URL parameter.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request) (*sessionState, bool) {
	st, err := s.lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return nil, false
	}
	return st, true
}

// algorithmIndex parses the {index} URL parameter.
func algorithmIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Invalidf("algorithm index %q is not an integer", raw)
	}
	return i, nil
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	s.sessionsMu.RLock()
	sum := s.summary(st)
	s.sessionsMu.RUnlock()
	s.respondJSON(w, http.StatusOK, sum)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.CloseSession(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	req := FramesRequest{Count: 1}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	resp, err := runFrames(r.Context(), st.Session, req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// runFrames runs req.Count frames, stopping early when the request is
// cancelled.
func runFrames(ctx context.Context, sess *session.Session, req FramesRequest) (FramesResponse, error) {
	if req.Count < 1 || req.Count > maxFrames {
		return FramesResponse{}, apperrors.Invalidf("count must be in [1, %d], got %d", maxFrames, req.Count)
	}
	resp := FramesResponse{Frames: make([]frameView, 0, req.Count)}
	for i := 0; i < req.Count; i++ {
		if ctx.Err() != nil {
			break
		}
		var f session.Frame
		if req.Step {
			f = sess.Step()
		} else {
			f = sess.Frame()
		}
		resp.Frames = append(resp.Frames, viewFrame(f, req.Trace))
	}
	resp.Session = sess.Info()
	return resp, nil
}

// SelectRequest moves the active algorithm. Index wins over Move, which is
// "next" or "prev".
type SelectRequest struct {
	Index *int   `json:"index,omitempty"`
	Move  string `json:"move,omitempty"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	status, err := selectAlgorithm(st.Session, req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func selectAlgorithm(sess *session.Session, req SelectRequest) (session.Status, error) {
	if req.Index != nil {
		return sess.Select(*req.Index)
	}
	switch req.Move {
	case "next", "":
		return sess.Next(), nil
	case "prev":
		return sess.Prev(), nil
	default:
		return session.Status{}, apperrors.Invalidf("unknown move %q, want next or prev", req.Move)
	}
}

// StepsRequest changes steps per frame: Action is "double" or "halve", or
// Index and Steps set one algorithm directly.
type StepsRequest struct {
	Action string `json:"action,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Steps  int    `json:"steps,omitempty"`
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	var req StepsRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	steps, err := changeSteps(st.Session, req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"steps": steps})
}

func changeSteps(sess *session.Session, req StepsRequest) (int, error) {
	switch {
	case req.Index != nil:
		if err := sess.SetSteps(*req.Index, req.Steps); err != nil {
			return 0, err
		}
		return req.Steps, nil
	case req.Action == "double":
		return sess.DoubleSteps(), nil
	case req.Action == "halve":
		return sess.HalveSteps(), nil
	default:
		return 0, apperrors.Invalidf("unknown steps action %q, want double or halve", req.Action)
	}
}

func (s *Server) handleForever(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"forever": st.ToggleForever()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"paused": st.TogglePause()})
}

// PlayRequest starts autoplay with one frame per Interval, a Go duration
// string. RunAll, when set, switches the driving mode first.
type PlayRequest struct {
	Interval string `json:"interval"`
	RunAll   *bool  `json:"run_all,omitempty"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req := PlayRequest{Interval: "50ms"}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.startPlay(id, req); err != nil {
		s.respondError(w, err)
		return
	}
	st, err := s.lookup(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.sessionsMu.RLock()
	sum := s.summary(st)
	s.sessionsMu.RUnlock()
	s.respondJSON(w, http.StatusAccepted, sum)
}

func (s *Server) startPlay(id string, req PlayRequest) error {
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		return apperrors.Wrap(err, "invalid interval").WithKind(apperrors.KindInvalid)
	}
	if req.RunAll != nil {
		st, err := s.lookup(id)
		if err != nil {
			return err
		}
		st.SetRunAll(*req.RunAll)
	}
	return s.Play(id, interval)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.Stop(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, st.Statuses())
}

func (s *Server) handleAlgorithm(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	i, err := algorithmIndex(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	status, err := st.Status(i)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	i, err := algorithmIndex(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	status, err := st.Restart(i)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	st, ok := s.withSession(w, r)
	if !ok {
		return
	}
	i, err := algorithmIndex(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	v, err := st.Probe(i)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"index": i, "probe": v})
}
