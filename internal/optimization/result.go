package optimization

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Status is the terminal state of a solve.
// The zero value, NotTerminated, is never reported by a finished solve.
type Status int

const (
	NotTerminated Status = iota
	// ConvergedGradient means the gradient ∞-norm fell below the gradient tolerance.
	ConvergedGradient
	// ConvergedRelative means the relative change of the objective fell below the relative tolerance.
	ConvergedRelative
	// LineSearchFailed means no acceptable step was found along the current direction.
	LineSearchFailed
	// MaxIterationsReached means the iteration budget was exhausted.
	MaxIterationsReached
)

var statusNames = map[Status]string{
	NotTerminated:        "NotTerminated",
	ConvergedGradient:    "ConvergedGradient",
	ConvergedRelative:    "ConvergedRelative",
	LineSearchFailed:     "LineSearchFailed",
	MaxIterationsReached: "MaxIterationsReached",
}

var statusDescriptions = map[Status]string{
	NotTerminated:        "Not terminated",
	ConvergedGradient:    "Reached gradient tolerance",
	ConvergedRelative:    "Reached relative tolerance",
	LineSearchFailed:     "Line search failed",
	MaxIterationsReached: "Reached maximum number of allowed iterations",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Description returns a human readable explanation of the status.
func (s Status) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return "Unknown exit flag"
}

// Converged reports whether s is one of the convergence statuses.
func (s Status) Converged() bool {
	return s == ConvergedGradient || s == ConvergedRelative
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, NewErrorf("unknown status %d", int(s)).WithComponent("result")
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return NewErrorf("unknown status %q", string(text)).WithComponent("result")
}

// Result is the outcome of a solve.
type Result struct {
	Status          Status    `json:"status"`
	X               []float64 `json:"x"`
	F               float64   `json:"f"`
	GradientNorm    float64   `json:"gradient_norm"`
	Iterations      int       `json:"iterations"`
	FuncEvaluations int       `json:"func_evaluations"`
	GradEvaluations int       `json:"grad_evaluations"`
}

// number is a float64 whose JSON form spells out non-finite values as the
// strings "NaN", "+Inf" and "-Inf".
type number float64

func (v number) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

func (v *number) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '"' {
		return json.Unmarshal(data, (*float64)(v))
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "NaN":
		*v = number(math.NaN())
	case "+Inf", "Inf":
		*v = number(math.Inf(1))
	case "-Inf":
		*v = number(math.Inf(-1))
	default:
		return NewErrorf("invalid number %q", s).WithComponent("result")
	}
	return nil
}

type resultJSON struct {
	Status          Status   `json:"status"`
	X               []number `json:"x"`
	F               number   `json:"f"`
	GradientNorm    number   `json:"gradient_norm"`
	Iterations      int      `json:"iterations"`
	FuncEvaluations int      `json:"func_evaluations"`
	GradEvaluations int      `json:"grad_evaluations"`
}

// MarshalJSON implements json.Marshaler. A solve that diverged may hold
// infinite or NaN values, which are written as strings.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Status:          r.Status,
		F:               number(r.F),
		GradientNorm:    number(r.GradientNorm),
		Iterations:      r.Iterations,
		FuncEvaluations: r.FuncEvaluations,
		GradEvaluations: r.GradEvaluations,
	}
	if r.X != nil {
		out.X = make([]number, len(r.X))
		for i, v := range r.X {
			out.X[i] = number(v)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Status:          in.Status,
		F:               float64(in.F),
		GradientNorm:    float64(in.GradientNorm),
		Iterations:      in.Iterations,
		FuncEvaluations: in.FuncEvaluations,
		GradEvaluations: in.GradEvaluations,
	}
	if in.X != nil {
		r.X = make([]float64, len(in.X))
		for i, v := range in.X {
			r.X[i] = float64(v)
		}
	}
	return nil
}

// TotalEvaluations returns the combined number of value and gradient evaluations.
func (r *Result) TotalEvaluations() int {
	return r.FuncEvaluations + r.GradEvaluations
}

// String renders the result as a framed report.
func (r *Result) String() string {
	var b strings.Builder
	b.WriteString("---------------------------------------- Result ----------------------------------------\n")
	fmt.Fprintf(&b, "               Exit flag                     : %s\n", r.Status.Description())
	fmt.Fprintf(&b, "               Gradient norm                 : %g\n", r.GradientNorm)
	fmt.Fprintf(&b, "               Number of iterations          : %d\n", r.Iterations)
	fmt.Fprintf(&b, "               Number of function evaluations: %d\n", r.FuncEvaluations)
	fmt.Fprintf(&b, "               Number of gradient evaluations: %d\n", r.GradEvaluations)
	fmt.Fprintf(&b, "               Function value                : %g\n", r.F)
	b.WriteString("               Optimal parameters            : ")
	for i, v := range r.X {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteString("\n")
	b.WriteString("----------------------------------------------------------------------------------------\n")
	return b.String()
}
