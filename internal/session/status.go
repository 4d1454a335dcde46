package session

import (
	"fmt"
	"math"
	"strings"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// Status is a snapshot of one roster entry.
type Status struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Kind       Kind    `json:"kind"`
	Function   string  `json:"function"`
	Direction  string  `json:"direction"`
	Dimensions int     `json:"dimensions"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Steps      int     `json:"steps"`
	Forever    bool    `json:"forever"`
	Active     bool    `json:"active"`

	// Best is nil until the first improvement after a restart
	Best        *float64  `json:"best,omitempty"`
	BestPoint   []float64 `json:"best_point,omitempty"`
	EvalsAtBest int       `json:"evals_at_best"`
	Evals       int       `json:"evals"`
	BestAt      int       `json:"best_at"`
	Current     int       `json:"current"`
	Max         int       `json:"max"`
	Fraction    float64   `json:"fraction"`

	// Candidate is the value a hill climber is currently improving
	Candidate *float64 `json:"candidate,omitempty"`
}

// Snapshot captures the driver state.
type Snapshot struct {
	ID      string `json:"id"`
	Active  int    `json:"active"`
	Size    int    `json:"size"`
	Paused  bool   `json:"paused"`
	RunAll  bool   `json:"run_all"`
	Frames  int    `json:"frames"`
	Current Status `json:"current"`
}

// candidateReporter is implemented by algorithms exposing the candidate
// they work on before any best is known.
type candidateReporter interface {
	Current() (float64, bool)
}

func hasBest(sol optimization.Solution) bool {
	return !math.IsInf(sol.Value, 0) && !math.IsNaN(sol.Value)
}

func (s *Session) status(i int) Status {
	e := s.entries[i]
	alg := e.Algorithm
	p := alg.Problem()
	best := alg.Best()
	progress := alg.Progress()

	st := Status{
		Index:       i,
		Name:        alg.Name(),
		Kind:        e.Kind,
		Function:    p.Name,
		Direction:   e.Direction.String(),
		Dimensions:  e.Dimensions,
		Low:         p.Bounds.Low,
		High:        p.Bounds.High,
		Steps:       e.Steps,
		Forever:     alg.Forever(),
		Active:      i == s.active,
		EvalsAtBest: best.FoundAtEval,
		Evals:       progress.Evals,
		BestAt:      progress.BestAt,
		Current:     progress.Current,
		Max:         progress.Max,
		Fraction:    progress.Fraction(),
	}
	if hasBest(best) {
		v := best.Value
		st.Best = &v
		st.BestPoint = append([]float64(nil), best.Point...)
	} else if cr, ok := alg.(candidateReporter); ok {
		if v, ok := cr.Current(); ok {
			st.Candidate = &v
		}
	}
	return st
}

// Status returns the snapshot of algorithm i.
func (s *Session) Status(i int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(i); err != nil {
		return Status{}, err
	}
	return s.status(i), nil
}

// Statuses returns snapshots of the whole roster.
func (s *Session) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, len(s.entries))
	for i := range s.entries {
		out[i] = s.status(i)
	}
	return out
}

// Info returns the driver state together with the active algorithm.
func (s *Session) Info() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:      s.id,
		Active:  s.active,
		Size:    len(s.entries),
		Paused:  s.paused,
		RunAll:  s.runAll,
		Frames:  s.frames,
		Current: s.status(s.active),
	}
}

// String renders the status line shown after every frame.
func (st Status) String() string {
	var b strings.Builder
	b.WriteString(st.Name)
	b.WriteString(" Best: ")
	switch {
	case st.Best != nil:
		fmt.Fprintf(&b, "%g", *st.Best)
	case st.Candidate != nil:
		fmt.Fprintf(&b, "none (current %g)", *st.Candidate)
	default:
		b.WriteString("none")
	}
	fmt.Fprintf(&b, " #evals for best: %d Total evals: %d Br / Cr / R: %d / %d / %d",
		st.EvalsAtBest, st.Evals, st.BestAt, st.Current, st.Max)
	if st.Forever {
		b.WriteString(" (forever)")
	}
	return b.String()
}
