// Package optimtest provides fixtures and assertions shared by the
// optimization package tests.
package optimtest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

// Quadratic is the separable convex quadratic f(x) = Σ wᵢ(xᵢ − cᵢ)².
type Quadratic struct {
	Weights []float64
	Center  []float64
}

// WeightedQuadratic returns f(x) = Σ (i+1)(xᵢ − i)² in n dimensions.
func WeightedQuadratic(n int) Quadratic {
	q := Quadratic{
		Weights: make([]float64, n),
		Center:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		q.Weights[i] = float64(i + 1)
		q.Center[i] = float64(i)
	}
	return q
}

// Value evaluates the quadratic.
func (q Quadratic) Value(x []float64) float64 {
	sum := 0.0
	for i, w := range q.Weights {
		d := x[i] - q.Center[i]
		sum += w * d * d
	}
	return sum
}

// Gradient writes the analytic gradient into grad.
func (q Quadratic) Gradient(x, grad []float64) {
	for i, w := range q.Weights {
		grad[i] = 2 * w * (x[i] - q.Center[i])
	}
}

// Function wraps the quadratic into a counting objective.
func (q Quadratic) Function(t testing.TB, exactGradient bool) *optimization.Function {
	t.Helper()
	var grad optimization.GradientFunc
	if exactGradient {
		grad = q.Gradient
	}
	fn, err := optimization.NewFunction(q.Value, grad)
	require.NoError(t, err)
	return fn
}

// ExactStep returns the step α minimizing f(x + αd).
func (q Quadratic) ExactStep(x, d []float64) float64 {
	var num, den float64
	for i, w := range q.Weights {
		g := 2 * w * (x[i] - q.Center[i])
		num += g * d[i]
		den += 2 * w * d[i] * d[i]
	}
	return -num / den
}

// Location evaluates q at x into a freshly allocated location.
func (q Quadratic) Location(x []float64) optimization.Location {
	loc := optimization.NewLocation(len(x))
	copy(loc.X, x)
	loc.F = q.Value(x)
	q.Gradient(x, loc.Gradient)
	return loc
}

// Constant returns a vector of n copies of v.
func Constant(n int, v float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = v
	}
	return x
}

// Negated returns −v.
func Negated(v []float64) []float64 {
	out := make([]float64, len(v))
	floats.ScaleTo(out, -1, v)
	return out
}

// RandomVector generates a vector with values in [min, max].
func RandomVector(rng *rand.Rand, size int, min, max float64) []float64 {
	data := make([]float64, size)
	for i := range data {
		data[i] = min + rng.Float64()*(max-min)
	}
	return data
}

// AssertFloat64SlicesEqual checks if two float64 slices are approximately equal.
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()

	require.Len(t, got, len(want), "length mismatch")
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertMatEqual checks if two matrices are approximately equal.
func AssertMatEqual(t testing.TB, got, want mat.Matrix, tol float64) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()
	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}

	for i := 0; i < rg; i++ {
		for j := 0; j < cg; j++ {
			g := got.At(i, j)
			w := want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}
