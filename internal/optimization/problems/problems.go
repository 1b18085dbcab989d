// Package problems provides standard unconstrained test problems with exact
// gradients, mostly from Moré, Garbow and Hillstrom (1981), "Testing
// unconstrained optimization software", ACM TOMS 7(1).
package problems

import (
	"sort"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

const component = "problems"

// Problem is a smooth test function together with its standard start point.
type Problem interface {
	// Name returns the registry name of the problem
	Name() string

	// Dim returns the number of parameters
	Dim() int

	// Value evaluates the objective at x
	Value(x []float64) float64

	// Gradient writes the exact gradient at x into grad
	Gradient(x, grad []float64)

	// Start returns a fresh copy of the standard initial point
	Start() []float64

	// MinValue returns the global minimum value when it is known
	MinValue() (float64, bool)
}

type entry struct {
	defaultDim int
	create     func(n int) (Problem, error)
}

var registry = map[string]entry{
	"quadratic":        {defaultDim: 10, create: wrap(NewQuadratic)},
	"rosenbrock":       {defaultDim: 2, create: wrap(NewRosenbrock)},
	"chebyquad":        {defaultDim: 10, create: wrap(NewChebyquad)},
	"trigonometric":    {defaultDim: 7, create: wrap(NewTrigonometric)},
	"linear-full-rank": {defaultDim: 5, create: wrap(NewLinearFullRank)},
	"linear-rank-one":  {defaultDim: 5, create: wrap(NewLinearRankOne)},
}

// wrap adapts a typed constructor so that failures yield a nil Problem.
func wrap[P Problem](create func(int) (P, error)) func(int) (Problem, error) {
	return func(n int) (Problem, error) {
		p, err := create(n)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Names returns the registered problem names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultDim returns the dimension used when Lookup is called with n ≤ 0.
func DefaultDim(name string) (int, bool) {
	e, ok := registry[name]
	return e.defaultDim, ok
}

// Lookup creates the problem called name in n dimensions. n ≤ 0 selects the
// default dimension of the problem.
func Lookup(name string, n int) (Problem, error) {
	e, ok := registry[name]
	if !ok {
		return nil, optimization.InvalidArgument(component, "Lookup", "unknown problem %q, want one of %v", name, Names())
	}
	if n <= 0 {
		n = e.defaultDim
	}
	return e.create(n)
}

// NewObjective wraps p into a counting objective. With exactGradient false
// the gradient of p is ignored and approximated by forward differences.
func NewObjective(p Problem, exactGradient bool) (*optimization.Function, error) {
	if p == nil {
		return nil, optimization.InvalidArgument(component, "NewObjective", "problem must not be nil")
	}
	var grad optimization.GradientFunc
	if exactGradient {
		grad = p.Gradient
	}
	return optimization.NewFunction(p.Value, grad)
}

func checkDim(name string, n, min int) error {
	if n < min {
		return invalidDim("%s needs at least %d parameters, got %d", name, min, n)
	}
	return nil
}

func invalidDim(format string, args ...interface{}) error {
	return optimization.InvalidArgument(component, "New", format, args...)
}

func constant(n int, v float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = v
	}
	return x
}
