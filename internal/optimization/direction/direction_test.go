package direction

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/optimtest"
)

func TestSteepestDescent(t *testing.T) {
	s := NewSteepestDescent()
	assert.Equal(t, "steepest", s.Name())

	grad := []float64{1, -2, 0.5}
	dir := make([]float64, 3)

	s.Init(grad, dir)
	assert.Equal(t, []float64{-1, 2, -0.5}, dir)

	grad = []float64{0, 4, -3}
	s.Update(nil, grad, nil, nil, 1, dir)
	assert.Equal(t, []float64{0, -4, 3}, dir)
}

func TestBFGSInit(t *testing.T) {
	b := NewBFGS()
	assert.Equal(t, "bfgs", b.Name())

	grad := []float64{3, -4}
	dir := make([]float64, 2)
	b.Init(grad, dir)

	want := mat.NewDiagDense(2, []float64{0.2, 0.2})
	optimtest.AssertMatEqual(t, b.InverseHessian(), want, 1e-15)
	optimtest.AssertFloat64SlicesEqual(t, dir, []float64{-0.6, 0.8}, 1e-15)
	assert.Equal(t, 0, b.Resets())
}

func TestBFGSUpdateMatchesProductForm(t *testing.T) {
	lastX := []float64{0, 0, 0}
	lastGrad := []float64{3, -4, 0}
	x := []float64{1, 0.5, -0.25}
	grad := []float64{4, -2, -1}

	b := NewBFGS()
	dir := make([]float64, 3)
	b.Init(lastGrad, dir)
	b.Update(x, grad, lastX, lastGrad, 1, dir)
	require.Equal(t, 0, b.Resets())

	s := mat.NewVecDense(3, nil)
	s.SubVec(mat.NewVecDense(3, x), mat.NewVecDense(3, lastX))
	y := mat.NewVecDense(3, nil)
	y.SubVec(mat.NewVecDense(3, grad), mat.NewVecDense(3, lastGrad))
	rho := 1 / mat.Dot(y, s)

	// A = I − ρ y sᵀ
	a := mat.NewDense(3, 3, nil)
	a.Outer(-rho, y, s)
	for i := 0; i < 3; i++ {
		a.Set(i, i, a.At(i, i)+1)
	}
	h0 := mat.NewDiagDense(3, []float64{0.2, 0.2, 0.2})

	var tmp, want, ss mat.Dense
	tmp.Mul(h0, a)
	want.Mul(a.T(), &tmp)
	ss.Outer(rho, s, s)
	want.Add(&want, &ss)

	optimtest.AssertMatEqual(t, b.InverseHessian(), &want, 1e-12)

	var wantDir mat.VecDense
	wantDir.MulVec(&want, mat.NewVecDense(3, grad))
	wantDir.ScaleVec(-1, &wantDir)
	optimtest.AssertFloat64SlicesEqual(t, dir, wantDir.RawVector().Data, 1e-12)

	// secant condition H·y = s
	var hy mat.VecDense
	hy.MulVec(b.InverseHessian(), y)
	optimtest.AssertFloat64SlicesEqual(t, hy.RawVector().Data, s.RawVector().Data, 1e-12)
}

func TestBFGSStaysPositiveDefinite(t *testing.T) {
	const n = 6
	rng := rand.New(rand.NewSource(42))
	q := optimtest.WeightedQuadratic(n)

	b := NewBFGS()
	lastX := optimtest.RandomVector(rng, n, -5, 5)
	lastGrad := make([]float64, n)
	q.Gradient(lastX, lastGrad)
	dir := make([]float64, n)
	b.Init(lastGrad, dir)

	for k := 1; k <= 20; k++ {
		x := optimtest.RandomVector(rng, n, -5, 5)
		grad := make([]float64, n)
		q.Gradient(x, grad)

		b.Update(x, grad, lastX, lastGrad, k, dir)

		var chol mat.Cholesky
		require.True(t, chol.Factorize(b.InverseHessian()), "update %d lost positive definiteness", k)
		assert.Less(t, floats.Dot(grad, dir), 0.0, "update %d is not a descent direction", k)

		lastX, lastGrad = x, grad
	}
	// a strictly convex quadratic always has positive curvature
	assert.Equal(t, 0, b.Resets())
}

func TestBFGSDegenerateCurvatureResets(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		grad     []float64
		lastX    []float64
		lastGrad []float64
	}{
		{
			name:     "negative curvature",
			lastX:    []float64{0, 0},
			x:        []float64{1, 0},
			lastGrad: []float64{1, 1},
			grad:     []float64{0, 1},
		},
		{
			name:     "zero step",
			lastX:    []float64{1, 1},
			x:        []float64{1, 1},
			lastGrad: []float64{0.5, 1},
			grad:     []float64{0, 1},
		},
		{
			name:     "nearly orthogonal",
			lastX:    []float64{0, 0},
			x:        []float64{1, 0},
			lastGrad: []float64{0, 0},
			grad:     []float64{1e-14, 1},
		},
		{
			name:     "infinite curvature",
			lastX:    []float64{0, 0},
			x:        []float64{1, 1},
			lastGrad: []float64{math.Inf(-1), 0},
			grad:     []float64{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBFGS()
			dir := make([]float64, 2)
			b.Init([]float64{2, 0}, dir)
			b.Update(tt.x, tt.grad, tt.lastX, tt.lastGrad, 1, dir)

			assert.Equal(t, 1, b.Resets())
			scale := 1 / floats.Norm(tt.grad, 2)
			optimtest.AssertMatEqual(t, b.InverseHessian(), mat.NewDiagDense(2, []float64{scale, scale}), 1e-15)
			assert.Less(t, floats.Dot(tt.grad, dir), 0.0)

			// Init starts a fresh count
			b.Init(tt.grad, dir)
			assert.Equal(t, 0, b.Resets())
		})
	}
}

func TestBFGSCurvatureTolerance(t *testing.T) {
	b := NewBFGS()
	assert.Equal(t, DefaultCurvatureTolerance, b.CurvatureTolerance())

	require.NoError(t, b.SetCurvatureTolerance(0))
	assert.Equal(t, 0.0, b.CurvatureTolerance())

	for _, tol := range []float64{-1, math.NaN(), math.Inf(1)} {
		err := b.SetCurvatureTolerance(tol)
		require.Error(t, err)
		assert.True(t, optimization.IsInvalidArgument(err))
	}
	assert.Equal(t, 0.0, b.CurvatureTolerance())
}

func TestBFGSDimensionChange(t *testing.T) {
	pool := NewMatrixPool()
	b := NewBFGSWithPool(pool)

	b.Init([]float64{1, 1}, make([]float64, 2))
	assert.Equal(t, 2, b.InverseHessian().SymmetricDim())

	b.Init([]float64{1, 1, 1}, make([]float64, 3))
	assert.Equal(t, 3, b.InverseHessian().SymmetricDim())
	// the 2-dimensional buffers went back to the pool
	assert.Equal(t, 4, pool.Len())

	// Update without a matching Init behaves like Init
	dir := make([]float64, 4)
	b.Update(make([]float64, 4), []float64{0, 0, 0, 2}, make([]float64, 4), make([]float64, 4), 1, dir)
	assert.Equal(t, []float64{0, 0, 0, -1}, dir)
}

func TestMatrixPool(t *testing.T) {
	p := NewMatrixPool()

	m := p.GetSymDense(3)
	m.SetSym(0, 1, 7)
	p.PutSymDense(m)

	again := p.GetSymDense(3)
	assert.Same(t, m, again)
	assert.Equal(t, 0.0, again.At(0, 1), "pooled matrices are zeroed")

	p.PutSymDense(again)
	other := p.GetSymDense(4)
	assert.NotSame(t, m, other)
	assert.Equal(t, 4, other.SymmetricDim())
	assert.Equal(t, 1, p.Len())

	v := p.GetVecDense(5)
	v.SetVec(2, 1)
	p.PutVecDense(v)
	p.PutVecDense(nil)
	w := p.GetVecDense(5)
	assert.Same(t, v, w)
	assert.Equal(t, 0.0, w.AtVec(2))
}

// BenchmarkBFGSUpdate measures one inverse Hessian update per dimension
func BenchmarkBFGSUpdate(b *testing.B) {
	tests := []struct {
		name string
		n    int
	}{
		{"Small", 10},
		{"Medium", 100},
		{"Large", 500},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			rng := rand.New(rand.NewSource(1))
			q := optimtest.WeightedQuadratic(tt.n)

			lastX := optimtest.RandomVector(rng, tt.n, -1, 1)
			x := optimtest.RandomVector(rng, tt.n, -1, 1)
			lastGrad := make([]float64, tt.n)
			grad := make([]float64, tt.n)
			q.Gradient(lastX, lastGrad)
			q.Gradient(x, grad)

			bfgs := NewBFGS()
			dir := make([]float64, tt.n)
			bfgs.Init(lastGrad, dir)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				bfgs.Update(x, grad, lastX, lastGrad, i+1, dir)
			}
		})
	}
}
