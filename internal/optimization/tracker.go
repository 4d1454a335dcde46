package optimization

// Tracker owns the objective evaluation primitive of an algorithm: it
// counts evaluations, records the per-run trace and keeps the best-so-far
// solution.
type Tracker struct {
	problem   Problem
	direction Direction

	best  Solution
	evals int
	trace []Evaluation
}

// NewTracker creates a tracker for the given problem.
func NewTracker(problem Problem, direction Direction) *Tracker {
	t := &Tracker{
		problem:   problem,
		direction: direction,
	}
	t.Reset()
	return t
}

// Problem returns the tracked catalog entry.
func (t *Tracker) Problem() Problem {
	return t.problem
}

// Direction returns the configured comparison direction.
func (t *Tracker) Direction() Direction {
	return t.direction
}

// Eval evaluates the objective at point, counting it and appending it to
// the current trace.
func (t *Tracker) Eval(point []float64) float64 {
	t.evals++
	v := t.problem.Func(point)
	t.trace = append(t.trace, Evaluation{Value: v, Point: point})
	return v
}

// Offer records value as best-so-far when it strictly improves on it. The
// point and bits are copied. at is the progress counter to remember.
func (t *Tracker) Offer(value float64, point []float64, bits []uint8, at int) bool {
	if !t.direction.Better(value, t.best.Value) {
		return false
	}
	t.best = Solution{
		Value:       value,
		Point:       append([]float64(nil), point...),
		FoundAtEval: t.evals,
		FoundAt:     at,
	}
	if bits != nil {
		t.best.Bits = append([]uint8(nil), bits...)
	}
	return true
}

// Better reports whether value strictly improves on best-so-far.
func (t *Tracker) Better(value float64) bool {
	return t.direction.Better(value, t.best.Value)
}

// Best returns the best-so-far solution.
func (t *Tracker) Best() Solution {
	return t.best
}

// Evals returns the number of evaluations since the last reset.
func (t *Tracker) Evals() int {
	return t.evals
}

// BeginRun clears the trace of the previous Run call.
func (t *Tracker) BeginRun() {
	t.trace = nil
}

// Trace returns the evaluations recorded since BeginRun.
func (t *Tracker) Trace() []Evaluation {
	return t.trace
}

// Reset clears best-so-far and the evaluation counter. The trace belongs
// to the enclosing Run call and survives.
func (t *Tracker) Reset() {
	t.best = Solution{Value: t.direction.Worst()}
	t.evals = 0
}

// Budget is the repeat counter of an algorithm. Its meaning depends on the
// algorithm: attempts for point searches, generations for populations.
type Budget struct {
	Current int
	Max     int
	Forever bool
}

// Exhausted reports whether the counter has reached the budget.
func (b *Budget) Exhausted() bool {
	return b.Current >= b.Max
}

// Recent reports whether an improvement found at progress bestAt lies
// within grace units of the current counter.
func (b *Budget) Recent(bestAt, grace int) bool {
	return bestAt > b.Current-grace
}

// Run performs steps calls of step against the tracker's trace and returns
// the evaluations made by this call.
func Run(t *Tracker, steps int, step func() bool) []Evaluation {
	t.BeginRun()
	for i := 0; i < steps; i++ {
		step()
	}
	return t.Trace()
}

// Probe evaluates the objective at the low corner, the high corner and the
// centre of the box and returns the best of the three. It bypasses every
// tracker so run counters are unaffected.
func Probe(p Problem, dimensions int, direction Direction) float64 {
	corner := func(v float64) []float64 {
		x := make([]float64, dimensions)
		for i := range x {
			x[i] = v
		}
		return x
	}
	return direction.Pick(
		p.Func(corner(p.Bounds.Low)),
		p.Func(corner(p.Bounds.High)),
		p.Func(corner(p.Bounds.Center())),
	)
}
