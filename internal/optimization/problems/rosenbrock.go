package problems

// Rosenbrock is the extended Rosenbrock function
//
//	f(x) = Σ 100(x₂ᵢ₊₁ − x₂ᵢ²)² + (1 − x₂ᵢ)²
//
// over consecutive pairs. The minimum 0 is attained at xᵢ = 1.
type Rosenbrock struct {
	n int
}

// NewRosenbrock creates the extended Rosenbrock function. n must be even.
func NewRosenbrock(n int) (*Rosenbrock, error) {
	if err := checkDim("rosenbrock", n, 2); err != nil {
		return nil, err
	}
	if n%2 != 0 {
		return nil, invalidDim("rosenbrock needs an even number of parameters, got %d", n)
	}
	return &Rosenbrock{n: n}, nil
}

func (r *Rosenbrock) Name() string { return "rosenbrock" }
func (r *Rosenbrock) Dim() int     { return r.n }

// Value implements Problem.
func (r *Rosenbrock) Value(x []float64) float64 {
	sum := 0.0
	for i := 0; i < r.n; i += 2 {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// Gradient implements Problem.
func (r *Rosenbrock) Gradient(x, grad []float64) {
	for i := 0; i < r.n; i += 2 {
		a := x[i+1] - x[i]*x[i]
		grad[i] = -400*a*x[i] - 2*(1-x[i])
		grad[i+1] = 200 * a
	}
}

// Start returns the standard point (−1.2, 1) repeated.
func (r *Rosenbrock) Start() []float64 {
	return r.pairs(-1.2, 1)
}

// StartFar returns the harder start point (−5, 10) repeated.
func (r *Rosenbrock) StartFar() []float64 {
	return r.pairs(-5, 10)
}

func (r *Rosenbrock) pairs(a, b float64) []float64 {
	x := make([]float64, r.n)
	for i := 0; i < r.n; i += 2 {
		x[i] = a
		x[i+1] = b
	}
	return x
}

func (r *Rosenbrock) MinValue() (float64, bool) { return 0, true }
