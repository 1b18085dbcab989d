// Package linesearch implements one-dimensional step length searches along a
// descent direction.
//
// Two searches are provided:
//   - Wolfe: bracketing followed by bisection zoom, accepting steps that
//     satisfy the strong Wolfe conditions (Nocedal & Wright, Alg. 3.5/3.6)
//   - Backtracking: geometric step contraction until the Armijo sufficient
//     decrease condition holds (Nocedal & Wright, Alg. 3.1)
//
// Failure to find a step is reported with an error wrapping ErrFailed.
// Invalid input is reported with an error wrapping
// optimization.ErrInvalidArgument.
package linesearch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

// machineEpsilon is the float64 unit round-off, DBL_EPSILON.
const machineEpsilon = 0x1p-52

const (
	// DefaultArmijoCoeff is the sufficient decrease coefficient of both searches.
	DefaultArmijoCoeff = 1e-4
	// DefaultWolfeCoeff is the curvature coefficient of the Wolfe search.
	DefaultWolfeCoeff = 0.9
	// DefaultContractionCoeff is the step reduction factor of the backtracking search.
	DefaultContractionCoeff = 0.5
	// DefaultMaxIterations bounds the number of trial steps of a single search.
	DefaultMaxIterations = 1000
)

var (
	// ErrFailed is wrapped by every algorithmic failure of a line search.
	ErrFailed = errors.New("line search failed")

	ErrMaxIterations     = fmt.Errorf("%w: iteration limit reached", ErrFailed)
	ErrIntervalCollapsed = fmt.Errorf("%w: step interval below machine precision", ErrFailed)
	ErrStepOverflow      = fmt.Errorf("%w: step length overflowed", ErrFailed)
	ErrStepUnderflow     = fmt.Errorf("%w: step length below machine precision", ErrFailed)
)

// Searcher finds a step length along a descent direction.
type Searcher interface {
	// Search looks for an acceptable step along dir starting from start,
	// trying step first. On success it returns the accepted step and dst
	// holds the point, value and gradient there. start.Gradient·dir must be
	// negative and step positive.
	Search(obj optimization.Objective, start optimization.Location, dir []float64, step float64, dst *optimization.Location) (float64, error)
}

// armijoLine is the sufficient decrease line f₀ + α·c₁·(g₀·d).
type armijoLine struct {
	intercept float64
	slope     float64
}

func (l armijoLine) holds(step, f float64) bool {
	return f <= l.intercept+step*l.slope
}

// validate checks the shared preconditions and returns g₀·d.
func validate(component string, obj optimization.Objective, start optimization.Location, dir []float64, step float64, dst *optimization.Location) (float64, error) {
	const op = "Search"

	if obj == nil {
		return 0, optimization.InvalidArgument(component, op, "objective must not be nil")
	}
	if dst == nil {
		return 0, optimization.InvalidArgument(component, op, "destination location must not be nil")
	}
	if !(step > 0) {
		return 0, optimization.InvalidArgument(component, op, "initial step length must be greater than zero, got %v", step)
	}

	n := len(start.X)
	if n == 0 || len(start.Gradient) != n || len(dir) != n || len(dst.X) != n || len(dst.Gradient) != n {
		return 0, optimization.InvalidArgument(component, op,
			"dimension mismatch: x=%d gradient=%d direction=%d dst.x=%d dst.gradient=%d",
			n, len(start.Gradient), len(dir), len(dst.X), len(dst.Gradient))
	}

	gd := floats.Dot(start.Gradient, dir)
	if !(gd < 0) {
		return 0, optimization.InvalidArgument(component, op, "direction is not a descent direction (g·d = %v)", gd)
	}
	return gd, nil
}

// trialPoint sets x = x₀ + step·dir.
func trialPoint(x, x0, dir []float64, step float64) {
	floats.AddScaledTo(x, x0, step, dir)
}

func failure(component string, reason error, format string, args ...interface{}) error {
	return optimization.WrapErrorf(reason, format, args...).
		WithComponent(component).
		WithOperation("Search")
}
