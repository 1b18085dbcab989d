// Package direction provides search direction strategies for descent
// methods.
package direction

// Strategy computes the search direction of each descent iteration.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Init writes the first direction for gradient grad into dir and resets
	// any state left from a previous solve.
	Init(grad, dir []float64)

	// Update writes the next direction into dir after a step from lastX to x.
	// iteration is the number of completed iterations.
	Update(x, grad, lastX, lastGrad []float64, iteration int, dir []float64)
}
