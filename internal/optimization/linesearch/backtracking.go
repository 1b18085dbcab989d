package linesearch

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

const backtrackingComponent = "backtracking"

// Backtracking is an Armijo backtracking line search. Every rejected trial
// step is multiplied by the contraction coefficient, so an accepted step is
// always initial·contraction^k.
//
// Only the value is evaluated at trial points; the gradient is evaluated
// once at the accepted point.
type Backtracking struct {
	armijoCoeff      float64
	contractionCoeff float64
	maxIterations    int

	iterations int

	logger *zap.Logger
}

// NewBacktracking creates a backtracking line search. Both coefficients must
// be in (0, 1) and maxIterations at least 1.
func NewBacktracking(armijoCoeff, contractionCoeff float64, maxIterations int) (*Backtracking, error) {
	b := &Backtracking{logger: zap.NewNop()}
	if err := b.SetCoefficients(armijoCoeff, contractionCoeff); err != nil {
		return nil, err
	}
	if err := b.SetMaxIterations(maxIterations); err != nil {
		return nil, err
	}
	return b, nil
}

// DefaultBacktracking returns a backtracking search with Armijo coefficient
// 1e-4, contraction 0.5 and a limit of 1000 trials.
func DefaultBacktracking() *Backtracking {
	return &Backtracking{
		armijoCoeff:      DefaultArmijoCoeff,
		contractionCoeff: DefaultContractionCoeff,
		maxIterations:    DefaultMaxIterations,
		logger:           zap.NewNop(),
	}
}

// SetCoefficients sets the Armijo and contraction coefficients.
func (b *Backtracking) SetCoefficients(armijoCoeff, contractionCoeff float64) error {
	if !(armijoCoeff > 0 && armijoCoeff < 1) {
		return optimization.InvalidArgument(backtrackingComponent, "SetCoefficients", "armijo coefficient must be in (0, 1), got %v", armijoCoeff)
	}
	if !(contractionCoeff > 0 && contractionCoeff < 1) {
		return optimization.InvalidArgument(backtrackingComponent, "SetCoefficients", "contraction coefficient must be in (0, 1), got %v", contractionCoeff)
	}
	b.armijoCoeff = armijoCoeff
	b.contractionCoeff = contractionCoeff
	return nil
}

// SetMaxIterations sets the maximum number of trial steps per search.
func (b *Backtracking) SetMaxIterations(maxIterations int) error {
	if maxIterations < 1 {
		return optimization.InvalidArgument(backtrackingComponent, "SetMaxIterations", "max iterations must be at least 1, got %d", maxIterations)
	}
	b.maxIterations = maxIterations
	return nil
}

// SetLogger sets the logger used for failure diagnostics.
func (b *Backtracking) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b.logger = logger.Named("backtracking")
}

func (b *Backtracking) ArmijoCoeff() float64      { return b.armijoCoeff }
func (b *Backtracking) ContractionCoeff() float64 { return b.contractionCoeff }
func (b *Backtracking) MaxIterations() int        { return b.maxIterations }

// Iterations returns the number of trial steps taken by the last search.
func (b *Backtracking) Iterations() int { return b.iterations }

// Search implements Searcher.
func (b *Backtracking) Search(obj optimization.Objective, start optimization.Location, dir []float64, step float64, dst *optimization.Location) (float64, error) {
	gd0, err := validate(backtrackingComponent, obj, start, dir, step, dst)
	if err != nil {
		return 0, err
	}

	line := armijoLine{
		intercept: start.F,
		slope:     b.armijoCoeff * gd0,
	}
	b.iterations = 0

	for {
		b.iterations++

		if step < machineEpsilon {
			err = failure(backtrackingComponent, ErrStepUnderflow, "step %v after %d trials", step, b.iterations)
			break
		}

		trialPoint(dst.X, start.X, dir, step)
		dst.F = obj.Value(dst.X)
		if line.holds(step, dst.F) {
			obj.Gradient(dst.X, dst.Gradient)
			return step, nil
		}

		step *= b.contractionCoeff

		if b.iterations >= b.maxIterations {
			err = failure(backtrackingComponent, ErrMaxIterations, "no sufficient decrease after %d trials", b.iterations)
			break
		}
	}

	b.logger.Debug("Line search failed",
		zap.Int("trials", b.iterations),
		zap.Float64("initial_value", start.F),
		zap.Float64("directional_derivative", gd0),
		zap.Error(err),
	)
	return 0, err
}
