package problems

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// leastSquares is f(x) = ‖r(x)‖² for a residual map r: ℝⁿ → ℝᵐ with
// gradient 2·J(x)ᵀr(x).
//
// The residual and Jacobian buffers are shared between calls, so a
// leastSquares problem is not safe for concurrent use.
type leastSquares struct {
	name string
	n, m int

	residual func(x, r []float64)
	// jacobian fills jac at x; nil for problems with a constant Jacobian
	// stored in jac at construction.
	jacobian func(x []float64, jac *mat.Dense)

	r   []float64
	jac *mat.Dense
}

func newLeastSquares(name string, n, m int) *leastSquares {
	return &leastSquares{
		name: name,
		n:    n,
		m:    m,
		r:    make([]float64, m),
		jac:  mat.NewDense(m, n, nil),
	}
}

func (ls *leastSquares) Name() string { return ls.name }
func (ls *leastSquares) Dim() int     { return ls.n }

// Residuals returns the number of residuals m.
func (ls *leastSquares) Residuals() int { return ls.m }

// Value implements Problem.
func (ls *leastSquares) Value(x []float64) float64 {
	ls.residual(x, ls.r)
	return floats.Dot(ls.r, ls.r)
}

// Gradient implements Problem.
func (ls *leastSquares) Gradient(x, grad []float64) {
	ls.residual(x, ls.r)
	if ls.jacobian != nil {
		ls.jacobian(x, ls.jac)
	}
	g := mat.NewVecDense(ls.n, grad)
	g.MulVec(ls.jac.T(), mat.NewVecDense(ls.m, ls.r))
	g.ScaleVec(2, g)
}

// Chebyquad is problem (35) of Moré, Garbow and Hillstrom with m = n: the
// residuals compare the mean of the shifted Chebyshev polynomials
// T*ᵢ(x) = Tᵢ(2x − 1) over the parameters with their integral over [0, 1].
type Chebyquad struct {
	*leastSquares
}

// NewChebyquad creates the Chebyquad function in n dimensions.
func NewChebyquad(n int) (*Chebyquad, error) {
	if err := checkDim("chebyquad", n, 1); err != nil {
		return nil, err
	}
	c := &Chebyquad{leastSquares: newLeastSquares("chebyquad", n, n)}
	c.residual = c.residuals
	c.jacobian = c.derivatives
	return c, nil
}

func (c *Chebyquad) residuals(x, r []float64) {
	for i := range r {
		r[i] = 0
	}
	for _, xj := range x {
		y := 2*xj - 1
		tPrev, t := 1.0, y
		r[0] += t
		for i := 1; i < c.m; i++ {
			tPrev, t = t, 2*y*t-tPrev
			r[i] += t
		}
	}

	n := float64(c.n)
	for i := range r {
		r[i] /= n
		// ∫₀¹ T*ᵢ = −1/(i²−1) for even i, 0 for odd i
		if k := i + 1; k%2 == 0 {
			r[i] += 1 / float64(k*k-1)
		}
	}
}

func (c *Chebyquad) derivatives(x []float64, jac *mat.Dense) {
	n := float64(c.n)
	for j, xj := range x {
		y := 2*xj - 1
		tPrev, t := 1.0, y
		dPrev, d := 0.0, 1.0
		jac.Set(0, j, 2*d/n)
		for i := 1; i < c.m; i++ {
			tPrev, t, dPrev, d = t, 2*y*t-tPrev, d, 2*t+2*y*d-dPrev
			jac.Set(i, j, 2*d/n)
		}
	}
}

// Start returns xⱼ = (j+1)/(n+1).
func (c *Chebyquad) Start() []float64 {
	x := make([]float64, c.n)
	for j := range x {
		x[j] = float64(j+1) / float64(c.n+1)
	}
	return x
}

// MinValue reports the zero minimum for the dimensions where it is attained.
func (c *Chebyquad) MinValue() (float64, bool) {
	if c.n <= 7 || c.n == 9 {
		return 0, true
	}
	return 0, false
}

// Trigonometric is problem (26) of Moré, Garbow and Hillstrom with m = n:
//
//	rᵢ(x) = n − Σⱼ cos xⱼ + i(1 − cos xᵢ) − sin xᵢ,   i = 1..n
type Trigonometric struct {
	*leastSquares
}

// NewTrigonometric creates the trigonometric function in n dimensions.
func NewTrigonometric(n int) (*Trigonometric, error) {
	if err := checkDim("trigonometric", n, 1); err != nil {
		return nil, err
	}
	t := &Trigonometric{leastSquares: newLeastSquares("trigonometric", n, n)}
	t.residual = t.residuals
	t.jacobian = t.derivatives
	return t, nil
}

func (t *Trigonometric) residuals(x, r []float64) {
	sumCos := 0.0
	for _, xj := range x {
		sumCos += math.Cos(xj)
	}
	for i := range r {
		k := float64(i + 1)
		r[i] = float64(t.n) - sumCos + k*(1-math.Cos(x[i])) - math.Sin(x[i])
	}
}

func (t *Trigonometric) derivatives(x []float64, jac *mat.Dense) {
	for i := 0; i < t.m; i++ {
		k := float64(i + 1)
		for j, xj := range x {
			v := math.Sin(xj)
			if i == j {
				v += k*math.Sin(xj) - math.Cos(xj)
			}
			jac.Set(i, j, v)
		}
	}
}

// Start returns xⱼ = 1/n.
func (t *Trigonometric) Start() []float64 {
	return constant(t.n, 1/float64(t.n))
}

func (t *Trigonometric) MinValue() (float64, bool) { return 0, true }

// LinearFullRank is problem (32) of Moré, Garbow and Hillstrom with m = 2n
// residuals. Its minimum m − n is attained at xⱼ = −1.
type LinearFullRank struct {
	*leastSquares
}

// NewLinearFullRank creates the full rank linear function in n dimensions.
func NewLinearFullRank(n int) (*LinearFullRank, error) {
	if err := checkDim("linear-full-rank", n, 1); err != nil {
		return nil, err
	}
	l := &LinearFullRank{leastSquares: newLeastSquares("linear-full-rank", n, 2*n)}
	l.residual = l.residuals

	c := 2 / float64(l.m)
	for i := 0; i < l.m; i++ {
		for j := 0; j < n; j++ {
			v := -c
			if i == j {
				v++
			}
			l.jac.Set(i, j, v)
		}
	}
	return l, nil
}

func (l *LinearFullRank) residuals(x, r []float64) {
	shift := 2/float64(l.m)*floats.Sum(x) + 1
	for i := range r {
		r[i] = -shift
		if i < l.n {
			r[i] += x[i]
		}
	}
}

// Start returns xⱼ = 1.
func (l *LinearFullRank) Start() []float64 {
	return constant(l.n, 1)
}

func (l *LinearFullRank) MinValue() (float64, bool) { return float64(l.m - l.n), true }

// LinearRankOne is problem (33) of Moré, Garbow and Hillstrom with m = 2n
// residuals rᵢ(x) = i·Σⱼ j·xⱼ − 1. Its minimum is m(m−1)/(2(2m+1)).
type LinearRankOne struct {
	*leastSquares
}

// NewLinearRankOne creates the rank one linear function in n dimensions.
func NewLinearRankOne(n int) (*LinearRankOne, error) {
	if err := checkDim("linear-rank-one", n, 1); err != nil {
		return nil, err
	}
	l := &LinearRankOne{leastSquares: newLeastSquares("linear-rank-one", n, 2*n)}
	l.residual = l.residuals

	for i := 0; i < l.m; i++ {
		for j := 0; j < n; j++ {
			l.jac.Set(i, j, float64((i+1)*(j+1)))
		}
	}
	return l, nil
}

func (l *LinearRankOne) residuals(x, r []float64) {
	s := 0.0
	for j, xj := range x {
		s += float64(j+1) * xj
	}
	for i := range r {
		r[i] = float64(i+1)*s - 1
	}
}

// Start returns xⱼ = 1.
func (l *LinearRankOne) Start() []float64 {
	return constant(l.n, 1)
}

func (l *LinearRankOne) MinValue() (float64, bool) {
	m := float64(l.m)
	return m * (m - 1) / (2 * (2*m + 1)), true
}
