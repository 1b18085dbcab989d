package direction

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

// DefaultCurvatureTolerance is the relative curvature yᵀs/(‖y‖‖s‖) below
// which a BFGS update is skipped.
const DefaultCurvatureTolerance = 1e-12

// BFGS is the Broyden–Fletcher–Goldfarb–Shanno quasi-Newton strategy. It
// maintains an approximation H of the inverse Hessian and searches along
// −H·∇f.
//
// The first approximation is I/‖∇f(x₀)‖₂. After a step s = x − lastX with
// gradient change y = ∇f(x) − ∇f(lastX) the approximation is updated as
//
//	H ← (I − ρ s yᵀ) H (I − ρ y sᵀ) + ρ s sᵀ,   ρ = 1/(yᵀs)
//
// When yᵀs is not sufficiently positive the update would lose positive
// definiteness; H is then reset to I/‖∇f(x)‖₂ instead.
//
// BFGS is not safe for concurrent use.
type BFGS struct {
	curvatureTolerance float64

	pool *MatrixPool
	dim  int

	invHess *mat.SymDense
	s, y    *mat.VecDense
	hy      *mat.VecDense

	resets int
}

// NewBFGS returns a BFGS strategy allocating from a private pool.
func NewBFGS() *BFGS {
	return NewBFGSWithPool(NewMatrixPool())
}

// NewBFGSWithPool returns a BFGS strategy allocating its buffers from pool.
func NewBFGSWithPool(pool *MatrixPool) *BFGS {
	if pool == nil {
		pool = NewMatrixPool()
	}
	return &BFGS{
		curvatureTolerance: DefaultCurvatureTolerance,
		pool:               pool,
	}
}

func (*BFGS) Name() string { return "bfgs" }

// SetCurvatureTolerance sets the relative curvature threshold of the reset guard.
func (b *BFGS) SetCurvatureTolerance(tol float64) error {
	if !(tol >= 0) || math.IsInf(tol, 1) {
		return optimization.InvalidArgument("bfgs", "SetCurvatureTolerance", "curvature tolerance must be finite and non-negative, got %v", tol)
	}
	b.curvatureTolerance = tol
	return nil
}

// CurvatureTolerance returns the relative curvature threshold.
func (b *BFGS) CurvatureTolerance() float64 { return b.curvatureTolerance }

// Resets returns how many updates since the last Init were replaced by a
// reset of the inverse Hessian.
func (b *BFGS) Resets() int { return b.resets }

// InverseHessian returns the current inverse Hessian approximation. The
// matrix is owned by b and changes on the next Init or Update.
func (b *BFGS) InverseHessian() mat.Symmetric { return b.invHess }

// Init implements Strategy.
func (b *BFGS) Init(grad, dir []float64) {
	b.reserve(len(grad))
	b.resets = 0
	b.resetInverseHessian(grad)
	b.direction(grad, dir)
}

// Update implements Strategy.
func (b *BFGS) Update(x, grad, lastX, lastGrad []float64, _ int, dir []float64) {
	if b.invHess == nil || b.dim != len(grad) {
		b.Init(grad, dir)
		return
	}

	s := b.s.RawVector().Data
	y := b.y.RawVector().Data
	floats.SubTo(s, x, lastX)
	floats.SubTo(y, grad, lastGrad)

	sy := floats.Dot(s, y)
	if !(sy > b.curvatureTolerance*floats.Norm(s, 2)*floats.Norm(y, 2)) || math.IsInf(sy, 1) {
		b.resets++
		b.resetInverseHessian(grad)
		b.direction(grad, dir)
		return
	}

	rho := 1 / sy
	b.hy.MulVec(b.invHess, b.y)
	yhy := mat.Dot(b.y, b.hy)

	// Expanded form of the product update: H − ρ(Hy sᵀ + s yᵀH) + (ρ + ρ²yᵀHy) s sᵀ.
	b.invHess.RankTwo(b.invHess, -rho, b.hy, b.s)
	b.invHess.SymRankOne(b.invHess, rho+rho*rho*yhy, b.s)

	b.direction(grad, dir)
}

// Release returns the buffers of b to its pool. b can be reused afterwards.
func (b *BFGS) Release() {
	b.pool.PutSymDense(b.invHess)
	b.pool.PutVecDense(b.s)
	b.pool.PutVecDense(b.y)
	b.pool.PutVecDense(b.hy)
	b.invHess, b.s, b.y, b.hy = nil, nil, nil, nil
	b.dim = 0
}

// reserve makes sure the buffers fit dimension n.
func (b *BFGS) reserve(n int) {
	if b.invHess != nil && b.dim == n {
		return
	}
	b.Release()
	b.dim = n
	b.invHess = b.pool.GetSymDense(n)
	b.s = b.pool.GetVecDense(n)
	b.y = b.pool.GetVecDense(n)
	b.hy = b.pool.GetVecDense(n)
}

func (b *BFGS) resetInverseHessian(grad []float64) {
	scale := 1.0
	if norm := floats.Norm(grad, 2); norm > 0 && !math.IsInf(norm, 1) {
		scale = 1 / norm
	}
	b.invHess.Zero()
	for i := 0; i < b.dim; i++ {
		b.invHess.SetSym(i, i, scale)
	}
}

// direction sets dir = −H·grad.
func (b *BFGS) direction(grad, dir []float64) {
	d := mat.NewVecDense(b.dim, dir)
	d.MulVec(b.invHess, mat.NewVecDense(b.dim, grad))
	d.ScaleVec(-1, d)
}
