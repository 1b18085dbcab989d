package optimization

// Optimizer defines the interface for local minimization algorithms
type Optimizer interface {
	// Solve minimizes obj starting from x0. Contract violations are returned
	// as errors; every other outcome, including failure to converge, is
	// reported through Result.Status.
	Solve(obj Objective, x0 []float64) (*Result, error)
}

// Location is a point together with the objective value and gradient there.
type Location struct {
	X        []float64
	F        float64
	Gradient []float64
}

// NewLocation allocates a location for n parameters.
func NewLocation(n int) Location {
	return Location{
		X:        make([]float64, n),
		Gradient: make([]float64, n),
	}
}

// CopyFrom overwrites l with src. Both must have the same dimension.
func (l *Location) CopyFrom(src Location) {
	copy(l.X, src.X)
	copy(l.Gradient, src.Gradient)
	l.F = src.F
}
