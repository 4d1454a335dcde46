// Package functions is the catalog of benchmark objectives the search
// algorithms are demonstrated on. Definitions follow the GEATbx function
// index and Molga & Smutnicki, "Test functions for optimization needs".
package functions

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// ErrUnknownFunction is returned by Lookup for names not in the catalog.
var ErrUnknownFunction = errors.New("unknown function")

// Omega portfolio parameters: expected and current returns per strategy,
// and the profitability threshold.
var (
	ExpectedReturns = []float64{7.1, 0.8, 3.1, -0.2, 1.1}
	CurrentReturns  = []float64{9.67, 0.32, 2.69, -0.53, -0.83}
	OmegaThreshold  = 0.0
)

var catalog = []optimization.Problem{
	{Name: "sphere", Func: Sphere, Bounds: optimization.Bounds{Low: -5.12, High: 5.12}},
	{Name: "ellipsoid", Func: Ellipsoid, Bounds: optimization.Bounds{Low: -5.12, High: 5.12}},
	{Name: "rosenbrock", Func: Rosenbrock, Bounds: optimization.Bounds{Low: -2.048, High: 2.048}},
	{Name: "rastrigin", Func: Rastrigin, Bounds: optimization.Bounds{Low: -5.12, High: 5.12}},
	{Name: "schwefel", Func: Schwefel, Bounds: optimization.Bounds{Low: -500, High: 500}},
	{Name: "griewank", Func: Griewank, Bounds: optimization.Bounds{Low: -600, High: 600}},
	{Name: "ackley", Func: Ackley, Bounds: optimization.Bounds{Low: -32.768, High: 32.768}},
	{Name: "michalewicz", Func: Michalewicz, Bounds: optimization.Bounds{Low: 0, High: math.Pi}},
	{Name: "sixhump", Func: SixHumpCamelBack, Bounds: optimization.Bounds{Low: -2, High: 2}},
	{Name: "omega", Func: Omega, Bounds: optimization.Bounds{Low: 4, High: 25}},
}

// Catalog returns every benchmark in display order.
func Catalog() []optimization.Problem {
	return append([]optimization.Problem(nil), catalog...)
}

// Names returns the catalog names in display order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the catalog entry with the given name, ignoring case.
func Lookup(name string) (optimization.Problem, error) {
	for _, p := range catalog {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return optimization.Problem{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
}

// Select resolves names in order. An empty list selects the whole catalog.
func Select(names []string) ([]optimization.Problem, error) {
	if len(names) == 0 {
		return Catalog(), nil
	}
	out := make([]optimization.Problem, 0, len(names))
	for _, n := range names {
		p, err := Lookup(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Sphere is De Jong's first function, sum(x_i^2).
func Sphere(x []float64) float64 {
	return floats.Dot(x, x)
}

// Ellipsoid is the axis parallel hyper-ellipsoid, sum(i * x_i^2).
func Ellipsoid(x []float64) float64 {
	var sum float64
	for i, v := range x {
		sum += float64(i+1) * v * v
	}
	return sum
}

// Rosenbrock is the banana valley. A single dimension reduces to (1-x)^2.
func Rosenbrock(x []float64) float64 {
	if len(x) == 1 {
		return (1 - x[0]) * (1 - x[0])
	}
	var sum float64
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Schwefel has its minimum of about -418.9829 per dimension at 420.9687,
// far from the next best local minimum.
func Schwefel(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum -= v * math.Sin(math.Sqrt(math.Abs(v)))
	}
	return sum
}

func Griewank(x []float64) float64 {
	prod := 1.0
	for i, v := range x {
		prod *= math.Cos(v / math.Sqrt(float64(i+1)))
	}
	return floats.Dot(x, x)/4000 - prod + 1
}

func Ackley(x []float64) float64 {
	const a, b, c = 20, 0.2, 2 * math.Pi
	n := float64(len(x))
	var cosSum float64
	for _, v := range x {
		cosSum += math.Cos(c * v)
	}
	return -a*math.Exp(-b*math.Sqrt(floats.Dot(x, x)/n)) - math.Exp(cosSum/n) + a + math.E
}

// Michalewicz with steepness m = 10.
func Michalewicz(x []float64) float64 {
	const m = 10
	var sum float64
	for i, v := range x {
		sum -= math.Sin(v) * math.Pow(math.Sin(float64(i+1)*v*v/math.Pi), 2*m)
	}
	return sum
}

// SixHumpCamelBack uses the first two coordinates; a missing second
// coordinate is taken as zero.
func SixHumpCamelBack(x []float64) float64 {
	var x1, x2 float64
	if len(x) > 0 {
		x1 = x[0]
	}
	if len(x) > 1 {
		x2 = x[1]
	}
	x1s := x1 * x1
	x2s := x2 * x2
	return (4-2.1*x1s+x1s*x1s/3)*x1s + x1*x2 + (-4+4*x2s)*x2s
}

// Omega is the omega ratio of a portfolio allocating weights to the
// strategies in ExpectedReturns. Extra dimensions are ignored.
func Omega(weights []float64) float64 {
	n := len(weights)
	if n > len(ExpectedReturns) {
		n = len(ExpectedReturns)
	}
	expected := floats.Dot(weights[:n], ExpectedReturns[:n])
	current := floats.Dot(weights[:n], CurrentReturns[:n])
	return (expected - OmegaThreshold) / (math.Abs(OmegaThreshold-current) + 1e-7)
}
