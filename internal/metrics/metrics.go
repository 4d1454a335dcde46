// Package metrics exposes Prometheus collectors describing the search
// sessions: evaluations spent, best values and budget progress per algorithm.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Labels identifying one algorithm of a roster.
const (
	LabelSession   = "session"
	LabelSlot      = "slot"
	LabelKind      = "kind"
	LabelFunction  = "function"
	labelDirection = "direction"
)

var algorithmLabels = []string{LabelSession, LabelSlot, LabelKind, LabelFunction}

// Collector groups the landscape metrics.
type Collector struct {
	Evaluations *prometheus.CounterVec
	Steps       *prometheus.CounterVec
	Restarts    *prometheus.CounterVec
	Exhaustions *prometheus.CounterVec
	BestValue   *prometheus.GaugeVec
	Progress    *prometheus.GaugeVec
	Sessions    prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Objective evaluations performed.",
		}, algorithmLabels),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Algorithm steps requested by drivers.",
		}, algorithmLabels),
		Restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Explicit and automatic restarts.",
		}, algorithmLabels),
		Exhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exhaustions_total",
			Help:      "Runs that returned an empty trace.",
		}, algorithmLabels),
		BestValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_value",
			Help:      "Best objective value since the last restart.",
		}, append(append([]string(nil), algorithmLabels...), labelDirection)),
		Progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_progress_ratio",
			Help:      "Current over maximum repeats or generations.",
		}, algorithmLabels),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Open driver sessions.",
		}),
	}

	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{
		c.Evaluations, c.Steps, c.Restarts, c.Exhaustions, c.BestValue, c.Progress, c.Sessions,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Algorithm identifies one roster entry in metric labels.
type Algorithm struct {
	Session  string
	Slot     string
	Kind     string
	Function string
}

func (a Algorithm) labels() prometheus.Labels {
	return prometheus.Labels{
		LabelSession:  a.Session,
		LabelSlot:     a.Slot,
		LabelKind:     a.Kind,
		LabelFunction: a.Function,
	}
}

// Run describes the outcome of one Run call.
type Run struct {
	Steps       int
	Evaluations int
	Best        float64
	HasBest     bool
	Direction   string
	Fraction    float64
}

// ObserveRun records one Run call of an algorithm.
func (c *Collector) ObserveRun(a Algorithm, r Run) {
	if c == nil {
		return
	}
	l := a.labels()
	c.Steps.With(l).Add(float64(r.Steps))
	c.Evaluations.With(l).Add(float64(r.Evaluations))
	c.Progress.With(l).Set(r.Fraction)
	if r.Evaluations == 0 {
		c.Exhaustions.With(l).Inc()
	}
	if r.HasBest {
		bl := a.labels()
		bl[labelDirection] = r.Direction
		c.BestValue.With(bl).Set(r.Best)
	}
}

// ObserveRestart counts a restart of an algorithm.
func (c *Collector) ObserveRestart(a Algorithm) {
	if c == nil {
		return
	}
	c.Restarts.With(a.labels()).Inc()
	c.Progress.With(a.labels()).Set(0)
}

// SessionOpened and SessionClosed track the number of live sessions.
func (c *Collector) SessionOpened() {
	if c != nil {
		c.Sessions.Inc()
	}
}

func (c *Collector) SessionClosed() {
	if c != nil {
		c.Sessions.Dec()
	}
}
