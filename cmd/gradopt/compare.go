package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/descent"
	"github.com/copyleftdev/gradopt/internal/optimization/problems"
)

// comparison is one solver configuration run by compare.
type comparison struct {
	Method        string               `json:"method"`
	LineSearch    string               `json:"line_search"`
	ExactGradient bool                 `json:"exact_gradient"`
	Result        *optimization.Result `json:"result"`

	// per-iteration history, only recorded for plotting
	History []descent.Iterate `json:"-"`
}

func (c comparison) title() string {
	gradient := "exact gradient"
	if !c.ExactGradient {
		gradient = "approximate gradient"
	}
	return fmt.Sprintf("%s / %s / %s", c.Method, c.LineSearch, gradient)
}

func newCompareCmd(a *app) *cobra.Command {
	o := &solveOptions{}
	var plotPath string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run every strategy, line search and gradient combination",
		Long: `Minimizes a test problem with each direction strategy, each line search,
and both exact and forward difference gradients, and prints every result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problems.Lookup(o.problem, o.dim)
			if err != nil {
				return err
			}
			runs, err := compare(a, p, o.spec(a, cmd.Flags()), plotPath != "")
			if err != nil {
				return err
			}
			if plotPath != "" {
				title := fmt.Sprintf("%s (n = %d)", p.Name(), p.Dim())
				if err := plotConvergence(plotPath, title, runs); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if o.json {
				return json.NewEncoder(out).Encode(runs)
			}
			fmt.Fprintf(out, "%s in %d dimensions\n", p.Name(), p.Dim())
			for _, run := range runs {
				fmt.Fprintf(out, "\n%s\n", run.title())
				fmt.Fprint(out, run.Result.String())
			}
			return nil
		},
	}

	o.addSolverFlags(cmd.Flags())
	cmd.Flags().StringVar(&plotPath, "plot", "", "Write a gradient norm convergence plot to this file (.png, .svg or .pdf)")
	cmd.MarkFlagRequired("problem")

	return cmd
}

// compare solves p once per combination, keeping the tolerances of base.
// With record set every run keeps its iteration history.
func compare(a *app, p problems.Problem, base descent.Spec, record bool) ([]comparison, error) {
	var runs []comparison
	for _, method := range descent.Methods() {
		for _, lineSearch := range descent.LineSearches() {
			for _, exact := range []bool{true, false} {
				spec := base
				spec.Method = method
				spec.LineSearch = lineSearch

				var history []descent.Iterate
				var callback func(descent.Iterate)
				if record {
					callback = func(it descent.Iterate) { history = append(history, it) }
				}

				result, err := solve(a, p, spec, exact, callback)
				if err != nil {
					return nil, err
				}
				runs = append(runs, comparison{
					Method:        method,
					LineSearch:    lineSearch,
					ExactGradient: exact,
					Result:        result,
					History:       history,
				})
			}
		}
	}
	return runs, nil
}
