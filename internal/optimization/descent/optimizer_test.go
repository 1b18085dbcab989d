package descent

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/direction"
	"github.com/copyleftdev/gradopt/internal/optimization/linesearch"
	"github.com/copyleftdev/gradopt/internal/optimization/optimtest"
	"github.com/copyleftdev/gradopt/internal/optimization/problems"
)

// spySearcher counts searches and optionally fails them.
type spySearcher struct {
	linesearch.Searcher
	calls int
	err   error
}

func (s *spySearcher) Search(obj optimization.Objective, start optimization.Location, dir []float64, step float64, dst *optimization.Location) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.Searcher.Search(obj, start, dir, step, dst)
}

// exactSearcher minimizes a quadratic exactly along the search direction.
type exactSearcher struct {
	q optimtest.Quadratic
}

func (s exactSearcher) Search(obj optimization.Objective, start optimization.Location, dir []float64, _ float64, dst *optimization.Location) (float64, error) {
	step := s.q.ExactStep(start.X, dir)
	floats.AddScaledTo(dst.X, start.X, step, dir)
	dst.F = obj.Value(dst.X)
	obj.Gradient(dst.X, dst.Gradient)
	return step, nil
}

func combinations() []Spec {
	var specs []Spec
	for _, method := range Methods() {
		for _, ls := range LineSearches() {
			spec := DefaultSpec()
			spec.Method = method
			spec.LineSearch = ls
			specs = append(specs, spec)
		}
	}
	return specs
}

func TestSolveWeightedQuadratic(t *testing.T) {
	const n = 10
	q := optimtest.WeightedQuadratic(n)

	for _, spec := range combinations() {
		t.Run(spec.Method+"/"+spec.LineSearch, func(t *testing.T) {
			o, err := Build(spec, nil)
			require.NoError(t, err)

			fn := q.Function(t, true)
			x0 := optimtest.Constant(n, 10)

			result, err := o.Solve(fn, x0)
			require.NoError(t, err)

			assert.Equal(t, optimization.ConvergedGradient, result.Status)
			assert.LessOrEqual(t, result.GradientNorm, 1e-9)
			optimtest.AssertFloat64SlicesEqual(t, result.X, q.Center, 1e-9)
			assert.Greater(t, result.Iterations, 0)

			evals := fn.Evaluations()
			assert.Equal(t, evals.Func, result.FuncEvaluations)
			assert.Equal(t, evals.Grad, result.GradEvaluations)

			// the start point is left untouched
			assert.Equal(t, optimtest.Constant(n, 10), x0)
		})
	}
}

func TestSolveWithApproximateGradient(t *testing.T) {
	const n = 5
	q := optimtest.WeightedQuadratic(n)

	for _, spec := range combinations() {
		t.Run(spec.Method+"/"+spec.LineSearch, func(t *testing.T) {
			spec.GradientTolerance = 1e-5
			o, err := Build(spec, nil)
			require.NoError(t, err)

			result, err := o.Solve(q.Function(t, false), optimtest.Constant(n, 10))
			require.NoError(t, err)

			assert.True(t, result.Status.Converged(), "status %v", result.Status)
			optimtest.AssertFloat64SlicesEqual(t, result.X, q.Center, 1e-4)
			// every approximate gradient costs n+1 value evaluations
			assert.GreaterOrEqual(t, result.FuncEvaluations, (n+1)*result.GradEvaluations)
		})
	}
}

func TestSolveAtMinimizer(t *testing.T) {
	q := optimtest.WeightedQuadratic(4)
	spy := &spySearcher{Searcher: linesearch.DefaultWolfe()}

	for _, strategy := range []direction.Strategy{direction.NewSteepestDescent(), direction.NewBFGS()} {
		cfg := DefaultConfig()
		cfg.LineSearch = spy
		o, err := New(strategy, cfg)
		require.NoError(t, err)

		result, err := o.Solve(q.Function(t, true), q.Center)
		require.NoError(t, err)

		assert.Equal(t, optimization.ConvergedGradient, result.Status)
		assert.Equal(t, 0, result.Iterations)
		assert.Equal(t, 0.0, result.F)
		assert.Equal(t, 1, result.FuncEvaluations)
		assert.Equal(t, 1, result.GradEvaluations)
	}
	assert.Equal(t, 0, spy.calls, "no line search at a stationary start point")
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "zero max iterations", modify: func(c *Config) { c.MaxIterations = 0 }},
		{name: "negative max iterations", modify: func(c *Config) { c.MaxIterations = -10 }},
		{name: "negative gradient tolerance", modify: func(c *Config) { c.GradientTolerance = -1e-9 }},
		{name: "NaN gradient tolerance", modify: func(c *Config) { c.GradientTolerance = math.NaN() }},
		{name: "negative relative tolerance", modify: func(c *Config) { c.RelativeTolerance = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			for _, build := range []func(Config) (*Optimizer, error){NewSteepestDescent, NewBFGS} {
				o, err := build(cfg)
				require.Error(t, err)
				assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
				assert.Nil(t, o)
			}
		})
	}

	_, err := New(nil, DefaultConfig())
	assert.True(t, optimization.IsInvalidArgument(err))
}

func TestNewDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GradientTolerance = 0
	cfg.RelativeTolerance = 0

	o, err := NewBFGS(cfg)
	require.NoError(t, err)

	assert.Equal(t, 0.0, o.GradientTolerance())
	assert.Equal(t, 0.0, o.RelativeTolerance())
	assert.Equal(t, 100000, o.MaxIterations())
	assert.IsType(t, &linesearch.Wolfe{}, o.LineSearch())
	assert.Equal(t, "bfgs", o.Strategy().Name())
}

func TestSetters(t *testing.T) {
	o, err := NewSteepestDescent(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, o.SetGradientTolerance(1e-3))
	require.NoError(t, o.SetRelativeTolerance(1e-4))
	require.NoError(t, o.SetMaxIterations(7))
	require.NoError(t, o.SetLineSearch(linesearch.DefaultBacktracking()))

	assert.Equal(t, 1e-3, o.GradientTolerance())
	assert.Equal(t, 1e-4, o.RelativeTolerance())
	assert.Equal(t, 7, o.MaxIterations())
	assert.IsType(t, &linesearch.Backtracking{}, o.LineSearch())

	// rejected values leave the optimizer unchanged
	assert.True(t, optimization.IsInvalidArgument(o.SetGradientTolerance(-1)))
	assert.True(t, optimization.IsInvalidArgument(o.SetRelativeTolerance(math.NaN())))
	assert.True(t, optimization.IsInvalidArgument(o.SetMaxIterations(0)))
	assert.True(t, optimization.IsInvalidArgument(o.SetLineSearch(nil)))

	assert.Equal(t, 1e-3, o.GradientTolerance())
	assert.Equal(t, 1e-4, o.RelativeTolerance())
	assert.Equal(t, 7, o.MaxIterations())
	assert.IsType(t, &linesearch.Backtracking{}, o.LineSearch())
}

func TestSolveContractViolations(t *testing.T) {
	o, err := NewBFGS(DefaultConfig())
	require.NoError(t, err)

	result, err := o.Solve(nil, []float64{1})
	assert.True(t, optimization.IsInvalidArgument(err))
	assert.Nil(t, result)

	result, err = o.Solve(optimtest.WeightedQuadratic(2).Function(t, true), nil)
	assert.True(t, optimization.IsInvalidArgument(err))
	assert.Nil(t, result)
}

func TestSolveLineSearchFailure(t *testing.T) {
	// f(x) = −x decreases without bound, so no step satisfies the curvature condition
	fn, err := optimization.NewFunction(
		func(x []float64) float64 { return -x[0] },
		func(_, g []float64) { g[0] = -1 },
	)
	require.NoError(t, err)

	o, err := NewSteepestDescent(DefaultConfig())
	require.NoError(t, err)

	result, err := o.Solve(fn, []float64{3})
	require.NoError(t, err)

	assert.Equal(t, optimization.LineSearchFailed, result.Status)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, []float64{3}, result.X)
	assert.Equal(t, -3.0, result.F)
	assert.Equal(t, 1.0, result.GradientNorm)
}

func TestSolveKeepsLastPointOnLineSearchFailure(t *testing.T) {
	q := optimtest.WeightedQuadratic(3)
	spy := &spySearcher{err: linesearch.ErrIntervalCollapsed}

	cfg := DefaultConfig()
	cfg.LineSearch = spy
	o, err := NewBFGS(cfg)
	require.NoError(t, err)

	x0 := []float64{1, 2, 3}
	result, err := o.Solve(q.Function(t, true), x0)
	require.NoError(t, err)

	assert.Equal(t, optimization.LineSearchFailed, result.Status)
	assert.Equal(t, x0, result.X)
	assert.Equal(t, q.Value(x0), result.F)
	assert.Equal(t, 1, spy.calls)
}

func TestSolveReturnsSearchContractErrors(t *testing.T) {
	spy := &spySearcher{err: optimization.InvalidArgument("spy", "Search", "bad direction")}

	cfg := DefaultConfig()
	cfg.LineSearch = spy
	o, err := NewSteepestDescent(cfg)
	require.NoError(t, err)

	result, err := o.Solve(optimtest.WeightedQuadratic(2).Function(t, true), []float64{5, 5})
	require.Error(t, err)
	assert.True(t, optimization.IsInvalidArgument(err))
	assert.Nil(t, result)
}

func TestSolveMaxIterations(t *testing.T) {
	p, err := problems.Lookup("rosenbrock", 2)
	require.NoError(t, err)
	fn, err := problems.NewObjective(p, true)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	o, err := NewBFGS(cfg)
	require.NoError(t, err)

	result, err := o.Solve(fn, p.Start())
	require.NoError(t, err)
	assert.Equal(t, optimization.MaxIterationsReached, result.Status)
	assert.Equal(t, 3, result.Iterations)
	assert.Less(t, result.F, p.Value(p.Start()))
}

func TestSolveRelativeTolerance(t *testing.T) {
	q := optimtest.WeightedQuadratic(4)

	cfg := DefaultConfig()
	cfg.GradientTolerance = 0
	// any decrease below a thousandfold of the new value counts as stalled
	cfg.RelativeTolerance = 1e3
	o, err := NewSteepestDescent(cfg)
	require.NoError(t, err)

	result, err := o.Solve(q.Function(t, true), optimtest.Constant(4, 10))
	require.NoError(t, err)
	assert.Equal(t, optimization.ConvergedRelative, result.Status)
	assert.Equal(t, 1, result.Iterations)
	assert.True(t, result.Status.Converged())
}

func TestSolveIsRepeatable(t *testing.T) {
	p, err := problems.Lookup("rosenbrock", 2)
	require.NoError(t, err)
	fn, err := problems.NewObjective(p, true)
	require.NoError(t, err)

	o, err := NewBFGS(DefaultConfig())
	require.NoError(t, err)

	first, err := o.Solve(fn, p.Start())
	require.NoError(t, err)

	// a solve of a different dimension in between must not leak state
	_, err = o.Solve(optimtest.WeightedQuadratic(5).Function(t, true), optimtest.Constant(5, 1))
	require.NoError(t, err)

	second, err := o.Solve(fn, p.Start())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fresh, err := NewBFGS(DefaultConfig())
	require.NoError(t, err)
	third, err := fresh.Solve(fn, p.Start())
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestBFGSExactLineSearchTerminatesInNSteps(t *testing.T) {
	const n = 5
	q := optimtest.WeightedQuadratic(n)

	cfg := DefaultConfig()
	cfg.GradientTolerance = 1e-8
	cfg.RelativeTolerance = 0
	cfg.LineSearch = exactSearcher{q: q}

	bfgs, err := NewBFGS(cfg)
	require.NoError(t, err)
	result, err := bfgs.Solve(q.Function(t, true), optimtest.Constant(n, 10))
	require.NoError(t, err)

	assert.Equal(t, optimization.ConvergedGradient, result.Status)
	assert.LessOrEqual(t, result.Iterations, n)
	optimtest.AssertFloat64SlicesEqual(t, result.X, q.Center, 1e-8)

	// steepest descent zig-zags with the same exact steps
	steepest, err := NewSteepestDescent(cfg)
	require.NoError(t, err)
	result, err = steepest.Solve(q.Function(t, true), optimtest.Constant(n, 10))
	require.NoError(t, err)
	assert.Equal(t, optimization.ConvergedGradient, result.Status)
	assert.Greater(t, result.Iterations, n)
}

func TestBFGSResetsOnNegativeCurvature(t *testing.T) {
	// cos is concave on [0, π/2]: the first step from 0.1 lands at 1.1 with
	// sᵀy < 0, so the inverse Hessian must be reset.
	obj, err := optimization.NewFunction(
		func(x []float64) float64 { return math.Cos(x[0]) },
		func(x, grad []float64) { grad[0] = -math.Sin(x[0]) },
	)
	require.NoError(t, err)

	bfgs := direction.NewBFGS()
	opt, err := New(bfgs, Config{
		GradientTolerance: 1e-6,
		MaxIterations:     200,
		LineSearch:        linesearch.DefaultBacktracking(),
	})
	require.NoError(t, err)

	var steps []float64
	opt.SetCallback(func(it Iterate) {
		if it.Iteration > 0 {
			steps = append(steps, it.Step)
		}
	})

	res, err := opt.Solve(obj, []float64{0.1})
	require.NoError(t, err)

	assert.Positive(t, bfgs.Resets())
	assert.True(t, res.Status.Converged(), "status %v", res.Status)
	assert.InDelta(t, -1, res.F, 1e-9)
	assert.InDelta(t, 0, math.Sin(res.X[0]), 1e-6)
	require.NotEmpty(t, steps)
	assert.Equal(t, 1.0, steps[0])
}

func TestBFGSAgreesWithGonum(t *testing.T) {
	for _, n := range []int{2, 4} {
		p, err := problems.Lookup("rosenbrock", n)
		require.NoError(t, err)

		ref, err := optimize.Minimize(optimize.Problem{
			Func: p.Value,
			Grad: func(grad, x []float64) { p.Gradient(x, grad) },
		}, p.Start(), nil, &optimize.BFGS{})
		require.NoError(t, err)

		fn, err := problems.NewObjective(p, true)
		require.NoError(t, err)
		cfg := DefaultConfig()
		cfg.GradientTolerance = 1e-6
		o, err := NewBFGS(cfg)
		require.NoError(t, err)

		result, err := o.Solve(fn, p.Start())
		require.NoError(t, err)

		assert.True(t, result.Status.Converged(), "status %v", result.Status)
		optimtest.AssertFloat64SlicesEqual(t, result.X, ref.X, 1e-4)
		optimtest.AssertFloat64SlicesEqual(t, result.X, optimtest.Constant(n, 1), 1e-4)
	}
}

func TestSolveLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := DefaultConfig()
	cfg.Logger = zap.New(core)
	o, err := NewBFGS(cfg)
	require.NoError(t, err)

	result, err := o.Solve(optimtest.WeightedQuadratic(3).Function(t, true), optimtest.Constant(3, 4))
	require.NoError(t, err)

	iterations := logs.FilterMessage("Iteration")
	assert.Equal(t, result.Iterations, iterations.Len())
	for _, entry := range iterations.All() {
		assert.Equal(t, "descent", entry.LoggerName)
		assert.Equal(t, "bfgs", entry.ContextMap()["method"])
	}

	finished := logs.FilterMessage("Solve finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, zapcore.InfoLevel, finished[0].Level)
	assert.Equal(t, "ConvergedGradient", finished[0].ContextMap()["status"])
	assert.Equal(t, int64(result.Iterations), finished[0].ContextMap()["iterations"])
}

func TestSolveCallback(t *testing.T) {
	var iterates []Iterate
	cfg := DefaultConfig()
	cfg.Callback = func(it Iterate) { iterates = append(iterates, it) }
	o, err := NewSteepestDescent(cfg)
	require.NoError(t, err)

	fn := optimtest.WeightedQuadratic(3).Function(t, true)
	result, err := o.Solve(fn, optimtest.Constant(3, 4))
	require.NoError(t, err)

	require.Len(t, iterates, result.Iterations+1)
	assert.Equal(t, 0, iterates[0].Iteration)
	assert.Zero(t, iterates[0].Step)
	assert.Equal(t, optimization.Evaluations{Func: 1, Grad: 1}, iterates[0].Evaluations)

	for i, it := range iterates[1:] {
		assert.Equal(t, i+1, it.Iteration)
		assert.Positive(t, it.Step)
		assert.Less(t, it.F, iterates[i].F, "iteration %d", it.Iteration)
	}

	final := iterates[len(iterates)-1]
	assert.Equal(t, result.F, final.F)
	assert.Equal(t, result.GradientNorm, final.GradientNorm)
	assert.Equal(t, fn.Evaluations(), final.Evaluations)

	// removing the callback stops the notifications
	o.SetCallback(nil)
	iterates = nil
	_, err = o.Solve(fn, optimtest.Constant(3, 4))
	require.NoError(t, err)
	assert.Empty(t, iterates)
}

// BenchmarkSolve measures complete solves of the standard problems
func BenchmarkSolve(b *testing.B) {
	for _, name := range []string{"quadratic", "rosenbrock", "chebyquad", "trigonometric"} {
		for _, method := range Methods() {
			b.Run(name+"/"+method, func(b *testing.B) {
				p, err := problems.Lookup(name, 0)
				require.NoError(b, err)
				fn, err := problems.NewObjective(p, true)
				require.NoError(b, err)

				spec := DefaultSpec()
				spec.Method = method
				o, err := Build(spec, nil)
				require.NoError(b, err)

				x0 := p.Start()
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := o.Solve(fn, x0); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
