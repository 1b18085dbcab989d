package problems

// Quadratic is f(x) = Σ (i+1)(xᵢ − i)², minimized at xᵢ = i.
type Quadratic struct {
	n int
}

// NewQuadratic creates an n-dimensional weighted quadratic.
func NewQuadratic(n int) (*Quadratic, error) {
	if err := checkDim("quadratic", n, 1); err != nil {
		return nil, err
	}
	return &Quadratic{n: n}, nil
}

func (q *Quadratic) Name() string { return "quadratic" }
func (q *Quadratic) Dim() int     { return q.n }

// Value implements Problem.
func (q *Quadratic) Value(x []float64) float64 {
	sum := 0.0
	for i := 0; i < q.n; i++ {
		d := x[i] - float64(i)
		sum += float64(i+1) * d * d
	}
	return sum
}

// Gradient implements Problem.
func (q *Quadratic) Gradient(x, grad []float64) {
	for i := 0; i < q.n; i++ {
		grad[i] = 2 * float64(i+1) * (x[i] - float64(i))
	}
}

// Start returns xᵢ = n.
func (q *Quadratic) Start() []float64 {
	return constant(q.n, float64(q.n))
}

// Minimizer returns the unique minimizer xᵢ = i.
func (q *Quadratic) Minimizer() []float64 {
	x := make([]float64, q.n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func (q *Quadratic) MinValue() (float64, bool) { return 0, true }
