package descent

import (
	"strings"

	"go.uber.org/zap"

	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/direction"
	"github.com/copyleftdev/gradopt/internal/optimization/linesearch"
)

// Direction strategies understood by Build.
const (
	MethodBFGS     = "bfgs"
	MethodSteepest = "steepest"
)

// Line searches understood by Build.
const (
	LineSearchWolfe        = "wolfe"
	LineSearchBacktracking = "backtracking"
)

// Methods returns the names of the supported direction strategies.
func Methods() []string {
	return []string{MethodBFGS, MethodSteepest}
}

// LineSearches returns the names of the supported line searches.
func LineSearches() []string {
	return []string{LineSearchWolfe, LineSearchBacktracking}
}

// Spec is a serializable description of an optimizer.
type Spec struct {
	Method     string `json:"method"`
	LineSearch string `json:"line_search"`

	GradientTolerance float64 `json:"gradient_tolerance"`
	RelativeTolerance float64 `json:"relative_tolerance"`
	MaxIterations     int     `json:"max_iterations"`

	LineSearchMaxIterations int     `json:"line_search_max_iterations"`
	ArmijoCoeff             float64 `json:"armijo_coeff"`
	WolfeCoeff              float64 `json:"wolfe_coeff"`
	ContractionCoeff        float64 `json:"contraction_coeff"`
}

// DefaultSpec describes BFGS with a Wolfe line search and default settings.
func DefaultSpec() Spec {
	cfg := DefaultConfig()
	return Spec{
		Method:                  MethodBFGS,
		LineSearch:              LineSearchWolfe,
		GradientTolerance:       cfg.GradientTolerance,
		RelativeTolerance:       cfg.RelativeTolerance,
		MaxIterations:           cfg.MaxIterations,
		LineSearchMaxIterations: linesearch.DefaultMaxIterations,
		ArmijoCoeff:             linesearch.DefaultArmijoCoeff,
		WolfeCoeff:              linesearch.DefaultWolfeCoeff,
		ContractionCoeff:        linesearch.DefaultContractionCoeff,
	}
}

// Build creates a fresh optimizer from spec. Names are matched case
// insensitively. The line search logs through logger as well.
func Build(spec Spec, logger *zap.Logger) (*Optimizer, error) {
	strategy, err := NewStrategy(spec.Method)
	if err != nil {
		return nil, err
	}
	ls, err := NewLineSearch(spec, logger)
	if err != nil {
		return nil, err
	}

	return New(strategy, Config{
		GradientTolerance: spec.GradientTolerance,
		RelativeTolerance: spec.RelativeTolerance,
		MaxIterations:     spec.MaxIterations,
		LineSearch:        ls,
		Logger:            logger,
	})
}

// Validate reports whether spec describes a valid optimizer.
func (s Spec) Validate() error {
	_, err := Build(s, nil)
	return err
}

// NewStrategy returns the direction strategy called name.
func NewStrategy(name string) (direction.Strategy, error) {
	switch strings.ToLower(name) {
	case MethodBFGS:
		return direction.NewBFGS(), nil
	case MethodSteepest, "steepest-descent":
		return direction.NewSteepestDescent(), nil
	default:
		return nil, optimization.InvalidArgument(component, "NewStrategy", "unknown method %q, want one of %v", name, Methods())
	}
}

// NewLineSearch returns the line search described by spec.
func NewLineSearch(spec Spec, logger *zap.Logger) (linesearch.Searcher, error) {
	switch strings.ToLower(spec.LineSearch) {
	case LineSearchWolfe:
		w, err := linesearch.NewWolfe(spec.ArmijoCoeff, spec.WolfeCoeff, spec.LineSearchMaxIterations)
		if err != nil {
			return nil, err
		}
		w.SetLogger(logger)
		return w, nil
	case LineSearchBacktracking:
		b, err := linesearch.NewBacktracking(spec.ArmijoCoeff, spec.ContractionCoeff, spec.LineSearchMaxIterations)
		if err != nil {
			return nil, err
		}
		b.SetLogger(logger)
		return b, nil
	default:
		return nil, optimization.InvalidArgument(component, "NewLineSearch", "unknown line search %q, want one of %v", spec.LineSearch, LineSearches())
	}
}
