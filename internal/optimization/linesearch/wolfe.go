package linesearch

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

const wolfeComponent = "wolfe"

// Wolfe is a strong Wolfe line search. The bracketing phase doubles the
// step until an interval containing an acceptable step is found, the zoom
// phase then bisects that interval.
type Wolfe struct {
	armijoCoeff   float64
	wolfeCoeff    float64
	maxIterations int

	// trial count of the last search
	iterations int

	logger *zap.Logger
}

// NewWolfe creates a strong Wolfe line search. armijoCoeff must be in (0, 1),
// wolfeCoeff in (armijoCoeff, 1) and maxIterations at least 1.
func NewWolfe(armijoCoeff, wolfeCoeff float64, maxIterations int) (*Wolfe, error) {
	w := &Wolfe{logger: zap.NewNop()}
	if err := w.SetCoefficients(armijoCoeff, wolfeCoeff); err != nil {
		return nil, err
	}
	if err := w.SetMaxIterations(maxIterations); err != nil {
		return nil, err
	}
	return w, nil
}

// DefaultWolfe returns a Wolfe search with coefficients 1e-4 and 0.9 and a
// limit of 1000 trials.
func DefaultWolfe() *Wolfe {
	return &Wolfe{
		armijoCoeff:   DefaultArmijoCoeff,
		wolfeCoeff:    DefaultWolfeCoeff,
		maxIterations: DefaultMaxIterations,
		logger:        zap.NewNop(),
	}
}

// SetCoefficients sets the Armijo and curvature coefficients.
func (w *Wolfe) SetCoefficients(armijoCoeff, wolfeCoeff float64) error {
	if !(armijoCoeff > 0 && armijoCoeff < 1) {
		return optimization.InvalidArgument(wolfeComponent, "SetCoefficients", "armijo coefficient must be in (0, 1), got %v", armijoCoeff)
	}
	if !(wolfeCoeff > armijoCoeff && wolfeCoeff < 1) {
		return optimization.InvalidArgument(wolfeComponent, "SetCoefficients", "wolfe coefficient must be in (%v, 1), got %v", armijoCoeff, wolfeCoeff)
	}
	w.armijoCoeff = armijoCoeff
	w.wolfeCoeff = wolfeCoeff
	return nil
}

// SetMaxIterations sets the maximum number of trial steps per search.
func (w *Wolfe) SetMaxIterations(maxIterations int) error {
	if maxIterations < 1 {
		return optimization.InvalidArgument(wolfeComponent, "SetMaxIterations", "max iterations must be at least 1, got %d", maxIterations)
	}
	w.maxIterations = maxIterations
	return nil
}

// SetLogger sets the logger used for failure diagnostics.
func (w *Wolfe) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w.logger = logger.Named("wolfe")
}

func (w *Wolfe) ArmijoCoeff() float64 { return w.armijoCoeff }
func (w *Wolfe) WolfeCoeff() float64  { return w.wolfeCoeff }
func (w *Wolfe) MaxIterations() int   { return w.maxIterations }

// Iterations returns the number of trial steps taken by the last search.
func (w *Wolfe) Iterations() int { return w.iterations }

// Search implements Searcher.
func (w *Wolfe) Search(obj optimization.Objective, start optimization.Location, dir []float64, step float64, dst *optimization.Location) (float64, error) {
	gd0, err := validate(wolfeComponent, obj, start, dir, step, dst)
	if err != nil {
		return 0, err
	}

	s := &wolfeSearch{
		obj:   obj,
		start: start,
		dir:   dir,
		dst:   dst,
		line: armijoLine{
			intercept: start.F,
			slope:     w.armijoCoeff * gd0,
		},
		curvature:     -w.wolfeCoeff * gd0,
		maxIterations: w.maxIterations,
	}

	step, err = s.bracket(step)
	w.iterations = s.iterations
	if err != nil {
		w.logger.Debug("Line search failed",
			zap.Int("trials", s.iterations),
			zap.Float64("initial_value", start.F),
			zap.Float64("directional_derivative", gd0),
			zap.Error(err),
		)
	}
	return step, err
}

// wolfeSearch is the state of one Wolfe search.
type wolfeSearch struct {
	obj   optimization.Objective
	start optimization.Location
	dir   []float64
	dst   *optimization.Location

	line      armijoLine
	curvature float64

	iterations    int
	maxIterations int
}

// evaluate fills dst at x₀ + step·d and returns the directional derivative there.
func (s *wolfeSearch) evaluate(step float64) float64 {
	trialPoint(s.dst.X, s.start.X, s.dir, step)
	s.dst.F = s.obj.Value(s.dst.X)
	s.obj.Gradient(s.dst.X, s.dst.Gradient)
	return floats.Dot(s.dst.Gradient, s.dir)
}

func (s *wolfeSearch) strongWolfe(gd float64) bool {
	return math.Abs(gd) <= s.curvature
}

func (s *wolfeSearch) bracket(step float64) (float64, error) {
	lastStep := 0.0
	lastF := s.line.intercept

	for {
		s.iterations++

		gd := s.evaluate(step)
		f := s.dst.F

		if !s.line.holds(step, f) || f >= lastF {
			return s.zoom(lastStep, step, lastF)
		}
		if s.strongWolfe(gd) {
			return step, nil
		}
		if gd >= 0 {
			return s.zoom(step, lastStep, f)
		}
		if s.iterations > s.maxIterations {
			return 0, failure(wolfeComponent, ErrMaxIterations, "no bracket after %d trials", s.iterations)
		}

		lastStep = step
		lastF = f

		step *= 2
		if math.IsInf(step, 1) {
			return 0, failure(wolfeComponent, ErrStepOverflow, "objective decreases without bound along direction")
		}
	}
}

// zoom bisects the bracket [lo, hi] (in either order). fLo is the value at lo.
func (s *wolfeSearch) zoom(lo, hi, fLo float64) (float64, error) {
	for {
		s.iterations++

		if math.Abs(hi-lo) < machineEpsilon {
			return 0, failure(wolfeComponent, ErrIntervalCollapsed, "bracket [%v, %v] collapsed after %d trials", lo, hi, s.iterations)
		}

		step := 0.5 * (lo + hi)
		gd := s.evaluate(step)
		f := s.dst.F

		if !s.line.holds(step, f) || f >= fLo {
			hi = step
		} else {
			if s.strongWolfe(gd) {
				return step, nil
			}
			if gd*(hi-lo) >= 0 {
				hi = lo
			}
			lo = step
			fLo = f
		}

		if s.iterations > s.maxIterations {
			return 0, failure(wolfeComponent, ErrMaxIterations, "zoom did not converge after %d trials", s.iterations)
		}
	}
}
