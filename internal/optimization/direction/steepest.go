package direction

import "gonum.org/v1/gonum/floats"

// SteepestDescent searches along the negative gradient.
type SteepestDescent struct{}

// NewSteepestDescent returns a steepest descent strategy.
func NewSteepestDescent() *SteepestDescent {
	return &SteepestDescent{}
}

func (*SteepestDescent) Name() string { return "steepest" }

// Init implements Strategy.
func (*SteepestDescent) Init(grad, dir []float64) {
	floats.ScaleTo(dir, -1, grad)
}

// Update implements Strategy.
func (*SteepestDescent) Update(_, grad, _, _ []float64, _ int, dir []float64) {
	floats.ScaleTo(dir, -1, grad)
}
