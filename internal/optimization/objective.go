package optimization

import (
	"math"
)

// finiteDifferenceStep is the forward-difference perturbation, sqrt(machine epsilon).
var finiteDifferenceStep = math.Sqrt(math.Nextafter(1, 2) - 1)

// ValueFunc evaluates the objective at x.
type ValueFunc func(x []float64) float64

// GradientFunc writes the exact gradient at x into grad.
type GradientFunc func(x, grad []float64)

// Evaluations holds evaluation counters of an objective.
type Evaluations struct {
	Func int
	Grad int
}

// Total returns the combined number of value and gradient evaluations.
func (e Evaluations) Total() int {
	return e.Func + e.Grad
}

// Objective is a differentiable scalar function of n parameters that counts
// how often it has been evaluated.
type Objective interface {
	// Value returns f(x).
	Value(x []float64) float64

	// Gradient writes ∇f(x) into grad, which must have len(x) entries.
	Gradient(x, grad []float64)

	// ResetEvaluations zeroes the evaluation counters.
	ResetEvaluations()

	// Evaluations returns the counters accumulated since the last reset.
	Evaluations() Evaluations
}

// Function adapts a value function and an optional gradient function into an
// Objective. Without a gradient function the gradient is approximated by
// forward differences.
//
// Function is not safe for concurrent use.
type Function struct {
	value    ValueFunc
	gradient GradientFunc

	numFunc int
	numGrad int

	// scratch point for finite differences
	probe []float64
}

// NewFunction creates a counting objective. gradient may be nil.
func NewFunction(value ValueFunc, gradient GradientFunc) (*Function, error) {
	if value == nil {
		return nil, InvalidArgument("objective", "NewFunction", "value function must not be nil")
	}
	return &Function{
		value:    value,
		gradient: gradient,
	}, nil
}

// ExactGradient reports whether an analytic gradient was supplied.
func (f *Function) ExactGradient() bool {
	return f.gradient != nil
}

// Value evaluates the objective and increments the value counter.
func (f *Function) Value(x []float64) float64 {
	f.numFunc++
	return f.value(x)
}

// Gradient evaluates the gradient and increments the gradient counter. The
// forward-difference approximation additionally performs len(x)+1 counted
// value evaluations.
func (f *Function) Gradient(x, grad []float64) {
	if len(grad) != len(x) {
		panic("optimization: gradient length mismatch")
	}
	f.numGrad++
	if f.gradient != nil {
		f.gradient(x, grad)
		return
	}
	f.approxGradient(x, grad)
}

// Evaluate returns f(x) and writes ∇f(x) into grad.
func (f *Function) Evaluate(x, grad []float64) float64 {
	v := f.Value(x)
	f.Gradient(x, grad)
	return v
}

func (f *Function) approxGradient(x, grad []float64) {
	if cap(f.probe) < len(x) {
		f.probe = make([]float64, len(x))
	}
	probe := f.probe[:len(x)]
	copy(probe, x)

	fx := f.Value(x)
	inv := 1 / finiteDifferenceStep
	for i := range probe {
		probe[i] += finiteDifferenceStep
		grad[i] = (f.Value(probe) - fx) * inv
		probe[i] = x[i]
	}
}

// ResetEvaluations zeroes both counters.
func (f *Function) ResetEvaluations() {
	f.numFunc = 0
	f.numGrad = 0
}

// Evaluations returns the current counters.
func (f *Function) Evaluations() Evaluations {
	return Evaluations{Func: f.numFunc, Grad: f.numGrad}
}
