package optimization_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/gradopt/internal/optimization"
)

func TestStatusStrings(t *testing.T) {
	tests := []struct {
		status      optimization.Status
		name        string
		description string
		converged   bool
	}{
		{optimization.ConvergedGradient, "ConvergedGradient", "Reached gradient tolerance", true},
		{optimization.ConvergedRelative, "ConvergedRelative", "Reached relative tolerance", true},
		{optimization.LineSearchFailed, "LineSearchFailed", "Line search failed", false},
		{optimization.MaxIterationsReached, "MaxIterationsReached", "Reached maximum number of allowed iterations", false},
		{optimization.NotTerminated, "NotTerminated", "Not terminated", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.status.String())
			assert.Equal(t, tt.description, tt.status.Description())
			assert.Equal(t, tt.converged, tt.status.Converged())
		})
	}

	assert.Equal(t, "Status(42)", optimization.Status(42).String())
	assert.Equal(t, "Unknown exit flag", optimization.Status(42).Description())
}

func TestResultJSON(t *testing.T) {
	res := &optimization.Result{
		Status:          optimization.LineSearchFailed,
		X:               []float64{1, 2},
		F:               0.5,
		GradientNorm:    1e-3,
		Iterations:      7,
		FuncEvaluations: 20,
		GradEvaluations: 8,
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"LineSearchFailed"`)

	var decoded optimization.Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *res, decoded)

	err = json.Unmarshal([]byte(`{"status":"Bogus"}`), &decoded)
	assert.Error(t, err)

	_, err = json.Marshal(&optimization.Result{Status: optimization.Status(99)})
	assert.Error(t, err)
}

func TestResultJSONNonFinite(t *testing.T) {
	res := &optimization.Result{
		Status:       optimization.LineSearchFailed,
		X:            []float64{1e100, math.Inf(-1)},
		F:            math.Inf(1),
		GradientNorm: math.NaN(),
		Iterations:   1,
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"f":"+Inf"`)
	assert.Contains(t, string(data), `"gradient_norm":"NaN"`)
	assert.Contains(t, string(data), `"x":[1e+100,"-Inf"]`)

	var decoded optimization.Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, math.IsInf(decoded.F, 1))
	assert.True(t, math.IsNaN(decoded.GradientNorm))
	assert.Equal(t, 1e100, decoded.X[0])
	assert.True(t, math.IsInf(decoded.X[1], -1))

	assert.Error(t, json.Unmarshal([]byte(`{"f":"huge"}`), &decoded))
}

func TestResultString(t *testing.T) {
	res := &optimization.Result{
		Status:          optimization.ConvergedGradient,
		X:               []float64{0, 1, 2},
		F:               1e-20,
		GradientNorm:    4e-10,
		Iterations:      12,
		FuncEvaluations: 30,
		GradEvaluations: 13,
	}
	assert.Equal(t, 43, res.TotalEvaluations())

	out := res.String()
	assert.Contains(t, out, "Reached gradient tolerance")
	assert.Contains(t, out, "Number of iterations          : 12")
	assert.Contains(t, out, "Number of function evaluations: 30")
	assert.Contains(t, out, "Number of gradient evaluations: 13")
	assert.Contains(t, out, "Optimal parameters            : 0, 1, 2\n")
	assert.True(t, strings.HasPrefix(out, "----"))
}

func TestErrorFormatting(t *testing.T) {
	err := optimization.InvalidArgument("descent", "SetMaxIterations", "max iterations must be at least 1, got %d", 0)
	assert.Equal(t, "descent: SetMaxIterations: max iterations must be at least 1, got 0: invalid argument", err.Error())
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))

	wrapped := fmt.Errorf("building solver: %w", err)
	got, ok := optimization.IsOptimizationError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "descent", got.Component)
	assert.True(t, optimization.IsInvalidArgument(wrapped))

	_, ok = optimization.IsOptimizationError(errors.New("plain"))
	assert.False(t, ok)
	_, ok = optimization.IsOptimizationError(nil)
	assert.False(t, ok)

	assert.Nil(t, optimization.WrapErrorf(nil, "ignored"))
	assert.Equal(t, "just a message", optimization.NewErrorf("just a message").Error())
	assert.Equal(t, "op: msg", optimization.NewErrorf("msg").WithOperation("op").Error())

	var nilErr *optimization.Error
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}
