// Package kernels provides covariance functions for Gaussian process
// surrogates.
package kernels

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// Kernel is a covariance function between two points.
type Kernel interface {
	// Eval computes the covariance between x1 and x2
	Eval(x1, x2 []float64) float64

	// Hyperparameters returns the current parameters
	Hyperparameters() []float64

	// SetHyperparameters replaces the parameters
	SetHyperparameters(params []float64) error
}

// Names accepted by New.
const (
	NameRBF      = "rbf"
	NameMatern52 = "matern52"
)

// New returns the kernel registered under name.
func New(name string, lengthScale, signalVariance float64) (Kernel, error) {
	switch name {
	case NameRBF:
		k, err := NewRBFKernel(lengthScale, signalVariance)
		if err != nil {
			return nil, err
		}
		return k, nil
	case NameMatern52:
		k, err := NewMatern52Kernel(lengthScale, signalVariance)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
	return nil, optimization.InvalidConfigf("kernel", "unknown kernel %q", name)
}

// params holds the length scale and signal variance shared by the
// stationary kernels below.
type params struct {
	LengthScale    float64
	SignalVariance float64
}

func newParams(component string, lengthScale, signalVariance float64) (params, error) {
	if !(lengthScale > 0) || !(signalVariance > 0) {
		return params{}, optimization.InvalidConfigf(component,
			"length scale and signal variance must be positive, got %v and %v", lengthScale, signalVariance)
	}
	return params{LengthScale: lengthScale, SignalVariance: signalVariance}, nil
}

func (p *params) Hyperparameters() []float64 {
	return []float64{p.LengthScale, p.SignalVariance}
}

func (p *params) SetHyperparameters(values []float64) error {
	if len(values) != 2 {
		return fmt.Errorf("expected 2 hyperparameters, got %d", len(values))
	}
	if !(values[0] > 0) || !(values[1] > 0) {
		return fmt.Errorf("hyperparameters must be positive, got %v", values)
	}
	p.LengthScale, p.SignalVariance = values[0], values[1]
	return nil
}

// RBFKernel is the squared exponential kernel.
type RBFKernel struct {
	params
}

// NewRBFKernel creates an RBF kernel.
func NewRBFKernel(lengthScale, signalVariance float64) (*RBFKernel, error) {
	p, err := newParams("rbf kernel", lengthScale, signalVariance)
	if err != nil {
		return nil, err
	}
	return &RBFKernel{params: p}, nil
}

// Eval computes sigma^2 * exp(-0.5 * ||x1 - x2||^2 / l^2).
func (k *RBFKernel) Eval(x1, x2 []float64) float64 {
	r := floats.Distance(x1, x2, 2) / k.LengthScale
	return k.SignalVariance * math.Exp(-0.5*r*r)
}

// Matern52Kernel is the Matérn kernel with nu = 5/2.
type Matern52Kernel struct {
	params
}

// NewMatern52Kernel creates a Matérn 5/2 kernel.
func NewMatern52Kernel(lengthScale, signalVariance float64) (*Matern52Kernel, error) {
	p, err := newParams("matern52 kernel", lengthScale, signalVariance)
	if err != nil {
		return nil, err
	}
	return &Matern52Kernel{params: p}, nil
}

// Eval computes sigma^2 * (1 + sqrt(5)r/l + 5r^2/(3l^2)) * exp(-sqrt(5)r/l).
func (k *Matern52Kernel) Eval(x1, x2 []float64) float64 {
	r := floats.Distance(x1, x2, 2)
	if r == 0 {
		return k.SignalVariance
	}
	s := math.Sqrt(5) * r / k.LengthScale
	return k.SignalVariance * (1 + s + s*s/3) * math.Exp(-s)
}
