// Package descent implements line-search descent methods for unconstrained
// minimization of smooth functions.
//
// An Optimizer combines a direction.Strategy, which proposes a descent
// direction at every iterate, with a linesearch.Searcher, which picks the
// step length along it. The loop stops when the gradient ∞-norm or the
// relative decrease of the objective falls below its tolerance, when the
// line search fails or when the iteration budget is exhausted.
package descent

import (
	"errors"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/direction"
	"github.com/copyleftdev/gradopt/internal/optimization/linesearch"
)

const component = "descent"

// Config holds the settings of an Optimizer.
type Config struct {
	// GradientTolerance stops the solve once ‖∇f‖∞ is at most this value.
	GradientTolerance float64
	// RelativeTolerance stops the solve once |f − f_prev| ≤ RelativeTolerance·|f|.
	RelativeTolerance float64
	// MaxIterations bounds the number of line searches.
	MaxIterations int
	// LineSearch picks the step length. Nil selects linesearch.DefaultWolfe.
	LineSearch linesearch.Searcher
	// Logger receives per-iteration debug output. Nil disables logging.
	Logger *zap.Logger
	// Callback, when set, is called with the start point and after every
	// accepted step.
	Callback func(Iterate)
}

// Iterate is the state of a solve after an iteration. Iteration 0 is the
// start point.
type Iterate struct {
	Iteration    int
	F            float64
	GradientNorm float64
	Step         float64
	Evaluations  optimization.Evaluations
}

// DefaultConfig returns the default optimizer configuration.
func DefaultConfig() Config {
	return Config{
		GradientTolerance: 1e-9,
		RelativeTolerance: 1e-9,
		MaxIterations:     100000,
	}
}

// Optimizer is a line-search descent method. It implements
// optimization.Optimizer.
//
// Every call to Solve starts from scratch: evaluation counters, the iteration
// count and the strategy state are reset. An Optimizer must not be used by
// several goroutines at once.
type Optimizer struct {
	strategy   direction.Strategy
	lineSearch linesearch.Searcher

	gradientTolerance float64
	relativeTolerance float64
	maxIterations     int

	logger   *zap.Logger
	callback func(Iterate)
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// NewSteepestDescent creates a steepest descent optimizer.
func NewSteepestDescent(cfg Config) (*Optimizer, error) {
	return New(direction.NewSteepestDescent(), cfg)
}

// NewBFGS creates a BFGS quasi-Newton optimizer.
func NewBFGS(cfg Config) (*Optimizer, error) {
	return New(direction.NewBFGS(), cfg)
}

// New creates an optimizer searching along the directions of strategy.
func New(strategy direction.Strategy, cfg Config) (*Optimizer, error) {
	if strategy == nil {
		return nil, optimization.InvalidArgument(component, "New", "direction strategy must not be nil")
	}

	o := &Optimizer{strategy: strategy}
	if err := o.SetGradientTolerance(cfg.GradientTolerance); err != nil {
		return nil, err
	}
	if err := o.SetRelativeTolerance(cfg.RelativeTolerance); err != nil {
		return nil, err
	}
	if err := o.SetMaxIterations(cfg.MaxIterations); err != nil {
		return nil, err
	}

	lineSearch := cfg.LineSearch
	if lineSearch == nil {
		lineSearch = linesearch.DefaultWolfe()
	}
	if err := o.SetLineSearch(lineSearch); err != nil {
		return nil, err
	}
	o.SetLogger(cfg.Logger)
	o.SetCallback(cfg.Callback)
	return o, nil
}

// SetGradientTolerance sets the gradient ∞-norm stopping threshold.
func (o *Optimizer) SetGradientTolerance(tol float64) error {
	if err := checkTolerance("SetGradientTolerance", "gradient", tol); err != nil {
		return err
	}
	o.gradientTolerance = tol
	return nil
}

// SetRelativeTolerance sets the relative objective decrease stopping threshold.
func (o *Optimizer) SetRelativeTolerance(tol float64) error {
	if err := checkTolerance("SetRelativeTolerance", "relative", tol); err != nil {
		return err
	}
	o.relativeTolerance = tol
	return nil
}

// SetMaxIterations sets the iteration budget.
func (o *Optimizer) SetMaxIterations(maxIterations int) error {
	if maxIterations < 1 {
		return optimization.InvalidArgument(component, "SetMaxIterations", "max iterations must be at least 1, got %d", maxIterations)
	}
	o.maxIterations = maxIterations
	return nil
}

// SetLineSearch replaces the line search.
func (o *Optimizer) SetLineSearch(ls linesearch.Searcher) error {
	if ls == nil {
		return optimization.InvalidArgument(component, "SetLineSearch", "line search must not be nil")
	}
	o.lineSearch = ls
	return nil
}

// SetLogger sets the logger. Nil disables logging.
func (o *Optimizer) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o.logger = logger.Named(component).With(zap.String("method", o.strategy.Name()))
}

// SetCallback sets the per-iteration callback. Nil removes it.
func (o *Optimizer) SetCallback(callback func(Iterate)) {
	o.callback = callback
}

func (o *Optimizer) GradientTolerance() float64      { return o.gradientTolerance }
func (o *Optimizer) RelativeTolerance() float64      { return o.relativeTolerance }
func (o *Optimizer) MaxIterations() int              { return o.maxIterations }
func (o *Optimizer) LineSearch() linesearch.Searcher { return o.lineSearch }
func (o *Optimizer) Strategy() direction.Strategy    { return o.strategy }

// Solve minimizes obj starting from x0. x0 is not modified.
//
// Only invalid input is reported as an error. Convergence, a failed line
// search and an exhausted iteration budget are all reported through the
// Status of the returned Result, which always carries the best point found.
func (o *Optimizer) Solve(obj optimization.Objective, x0 []float64) (*optimization.Result, error) {
	if obj == nil {
		return nil, optimization.InvalidArgument(component, "Solve", "objective must not be nil")
	}
	n := len(x0)
	if n == 0 {
		return nil, optimization.InvalidArgument(component, "Solve", "initial point must not be empty")
	}

	obj.ResetEvaluations()

	cur := optimization.NewLocation(n)
	copy(cur.X, x0)
	cur.F = obj.Value(cur.X)
	obj.Gradient(cur.X, cur.Gradient)

	gradNorm := floats.Norm(cur.Gradient, math.Inf(1))
	o.notify(obj, 0, cur.F, gradNorm, 0)
	if gradNorm <= o.gradientTolerance {
		return o.finish(obj, cur, optimization.ConvergedGradient, 0), nil
	}

	dir := make([]float64, n)
	o.strategy.Init(cur.Gradient, dir)

	last := optimization.NewLocation(n)
	iteration := 0
	for {
		iteration++
		last.CopyFrom(cur)

		step, err := o.lineSearch.Search(obj, last, dir, 1, &cur)
		if err != nil {
			if !errors.Is(err, linesearch.ErrFailed) {
				return nil, err
			}
			cur.CopyFrom(last)
			o.logger.Debug("Line search failed",
				zap.Int("iteration", iteration),
				zap.Error(err),
			)
			return o.finish(obj, cur, optimization.LineSearchFailed, iteration), nil
		}

		gradNorm = floats.Norm(cur.Gradient, math.Inf(1))
		o.notify(obj, iteration, cur.F, gradNorm, step)
		o.logger.Debug("Iteration",
			zap.Int("iteration", iteration),
			zap.Float64("f", cur.F),
			zap.Float64("grad_norm", gradNorm),
			zap.Float64("step", step),
		)

		switch {
		case gradNorm <= o.gradientTolerance:
			return o.finish(obj, cur, optimization.ConvergedGradient, iteration), nil
		case math.Abs(cur.F-last.F) <= o.relativeTolerance*math.Abs(cur.F):
			return o.finish(obj, cur, optimization.ConvergedRelative, iteration), nil
		case iteration >= o.maxIterations:
			return o.finish(obj, cur, optimization.MaxIterationsReached, iteration), nil
		}

		o.strategy.Update(cur.X, cur.Gradient, last.X, last.Gradient, iteration, dir)
	}
}

func (o *Optimizer) notify(obj optimization.Objective, iteration int, f, gradNorm, step float64) {
	if o.callback == nil {
		return
	}
	o.callback(Iterate{
		Iteration:    iteration,
		F:            f,
		GradientNorm: gradNorm,
		Step:         step,
		Evaluations:  obj.Evaluations(),
	})
}

func (o *Optimizer) finish(obj optimization.Objective, loc optimization.Location, status optimization.Status, iterations int) *optimization.Result {
	evals := obj.Evaluations()
	result := &optimization.Result{
		Status:          status,
		X:               loc.X,
		F:               loc.F,
		GradientNorm:    floats.Norm(loc.Gradient, math.Inf(1)),
		Iterations:      iterations,
		FuncEvaluations: evals.Func,
		GradEvaluations: evals.Grad,
	}

	o.logger.Info("Solve finished",
		zap.Stringer("status", status),
		zap.Int("iterations", iterations),
		zap.Int("func_evals", evals.Func),
		zap.Int("grad_evals", evals.Grad),
		zap.Float64("f", loc.F),
		zap.Float64("grad_norm", result.GradientNorm),
	)
	return result
}

func checkTolerance(op, name string, tol float64) error {
	if !(tol >= 0) {
		return optimization.InvalidArgument(component, op, "%s tolerance must be non-negative, got %v", name, tol)
	}
	return nil
}
