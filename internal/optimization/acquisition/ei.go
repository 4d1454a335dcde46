// Package acquisition scores candidate points from a surrogate's posterior
// mean and standard deviation. Higher scores are more promising in either
// optimisation direction.
package acquisition

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// Function is an acquisition function.
type Function interface {
	// Compute scores a point with posterior mean mu and standard deviation sigma
	Compute(mu, sigma float64) float64

	// UpdateBest sets the best objective value observed so far
	UpdateBest(best float64)
}

// minSigma is the standard deviation below which the prediction is treated
// as certain.
const minSigma = 1e-10

// ExpectedImprovement implements the Expected Improvement acquisition function
type ExpectedImprovement struct {
	// Best observed value so far
	bestObserved float64
	// Exploration-exploitation trade-off parameter (xi)
	xi        float64
	direction optimization.Direction
}

var _ Function = (*ExpectedImprovement)(nil)

// NewExpectedImprovement creates an ExpectedImprovement for the given
// direction.
func NewExpectedImprovement(bestObserved, xi float64, direction optimization.Direction) *ExpectedImprovement {
	return &ExpectedImprovement{
		bestObserved: bestObserved,
		xi:           xi,
		direction:    direction,
	}
}

func (ei *ExpectedImprovement) improvement(mu float64) float64 {
	if ei.direction == optimization.Maximize {
		return mu - ei.bestObserved - ei.xi
	}
	return ei.bestObserved - mu - ei.xi
}

// Compute returns improvement*CDF(z) + sigma*PDF(z) with
// z = improvement/sigma. It is never negative.
func (ei *ExpectedImprovement) Compute(mu, sigma float64) float64 {
	improvement := ei.improvement(mu)
	if sigma <= minSigma {
		if improvement <= 0 {
			return 0
		}
		return improvement
	}

	z := improvement / sigma
	v := improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
	if v < 0 {
		return 0
	}
	return v
}

// Gradient computes the derivative of the Expected Improvement given the
// derivatives dmu and dsigma of the posterior with respect to a parameter.
func (ei *ExpectedImprovement) Gradient(mu, dmu, sigma, dsigma float64) float64 {
	sign := -1.0
	if ei.direction == optimization.Maximize {
		sign = 1
	}
	improvement := ei.improvement(mu)
	if sigma <= minSigma {
		if improvement <= 0 {
			return 0
		}
		return sign * dmu
	}

	z := improvement / sigma
	return sign*distuv.UnitNormal.CDF(z)*dmu + distuv.UnitNormal.Prob(z)*dsigma
}

// UpdateBest updates the best observed value
func (ei *ExpectedImprovement) UpdateBest(best float64) {
	ei.bestObserved = best
}

// SetXi sets the exploration-exploitation trade-off parameter
func (ei *ExpectedImprovement) SetXi(xi float64) {
	ei.xi = xi
}

// BestObserved returns the best observed value
func (ei *ExpectedImprovement) BestObserved() float64 {
	return ei.bestObserved
}

// UpperConfidenceBound scores the optimistic end of the posterior:
// mu + kappa*sigma when maximising, -(mu - kappa*sigma) when minimising.
type UpperConfidenceBound struct {
	kappa     float64
	direction optimization.Direction
}

var _ Function = (*UpperConfidenceBound)(nil)

// NewUpperConfidenceBound creates a confidence bound acquisition.
func NewUpperConfidenceBound(kappa float64, direction optimization.Direction) *UpperConfidenceBound {
	return &UpperConfidenceBound{kappa: kappa, direction: direction}
}

// Compute returns the bound, negated for minimisation.
func (u *UpperConfidenceBound) Compute(mu, sigma float64) float64 {
	if u.direction == optimization.Maximize {
		return mu + u.kappa*sigma
	}
	return -(mu - u.kappa*sigma)
}

// UpdateBest is a no-op, the bound does not depend on the incumbent.
func (u *UpperConfidenceBound) UpdateBest(float64) {}

// Names accepted by New.
const (
	NameEI  = "ei"
	NameUCB = "ucb"
)

// New returns the acquisition registered under name. param is xi for EI
// and kappa for UCB.
func New(name string, param float64, direction optimization.Direction) (Function, error) {
	switch name {
	case NameEI:
		return NewExpectedImprovement(direction.Worst(), param, direction), nil
	case NameUCB:
		return NewUpperConfidenceBound(param, direction), nil
	}
	return nil, optimization.InvalidConfigf("acquisition", "unknown acquisition %q", name)
}
