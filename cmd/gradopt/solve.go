package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/copyleftdev/gradopt/internal/optimization"
	"github.com/copyleftdev/gradopt/internal/optimization/descent"
	"github.com/copyleftdev/gradopt/internal/optimization/problems"
)

type solveOptions struct {
	problem        string
	dim            int
	method         string
	lineSearch     string
	approxGradient bool
	gradTol        float64
	relTol         float64
	maxIter        int
	json           bool
}

// addSolverFlags registers the flags shared by solve and compare.
func (o *solveOptions) addSolverFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.problem, "problem", "", "Test problem, see 'gradopt problems' (required)")
	flags.IntVar(&o.dim, "dim", 0, "Number of parameters, 0 selects the problem default")
	flags.Float64Var(&o.gradTol, "grad-tol", 0, "Gradient ∞-norm tolerance (default from OPT_GRADIENT_TOLERANCE)")
	flags.Float64Var(&o.relTol, "rel-tol", 0, "Relative function change tolerance (default from OPT_RELATIVE_TOLERANCE)")
	flags.IntVar(&o.maxIter, "max-iter", 0, "Maximum number of iterations (default from OPT_MAX_ITERATIONS)")
	flags.BoolVar(&o.json, "json", false, "Print results as JSON")
}

// spec applies the flags that were set on top of the configured defaults.
func (o *solveOptions) spec(a *app, flags *pflag.FlagSet) descent.Spec {
	spec := a.cfg.Solver()
	if flags.Changed("method") {
		spec.Method = o.method
	}
	if flags.Changed("line-search") {
		spec.LineSearch = o.lineSearch
	}
	if flags.Changed("grad-tol") {
		spec.GradientTolerance = o.gradTol
	}
	if flags.Changed("rel-tol") {
		spec.RelativeTolerance = o.relTol
	}
	if flags.Changed("max-iter") {
		spec.MaxIterations = o.maxIter
	}
	return spec
}

func newSolveCmd(a *app) *cobra.Command {
	o := &solveOptions{}

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Minimize a test problem",
		Long:  `Minimizes a test problem from its standard start point and prints the result.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problems.Lookup(o.problem, o.dim)
			if err != nil {
				return err
			}
			result, err := solve(a, p, o.spec(a, cmd.Flags()), !o.approxGradient, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.json {
				return json.NewEncoder(out).Encode(result)
			}
			fmt.Fprintf(out, "%s in %d dimensions\n", p.Name(), p.Dim())
			fmt.Fprint(out, result.String())
			return nil
		},
	}

	o.addSolverFlags(cmd.Flags())
	cmd.Flags().StringVar(&o.method, "method", descent.MethodBFGS, "Direction strategy (bfgs, steepest)")
	cmd.Flags().StringVar(&o.lineSearch, "line-search", descent.LineSearchWolfe, "Line search (wolfe, backtracking)")
	cmd.Flags().BoolVar(&o.approxGradient, "approx-gradient", false, "Use forward difference gradients instead of the exact gradient")
	cmd.MarkFlagRequired("problem")

	return cmd
}

// solve minimizes p from its standard start point. callback may be nil.
func solve(a *app, p problems.Problem, spec descent.Spec, exactGradient bool, callback func(descent.Iterate)) (*optimization.Result, error) {
	obj, err := problems.NewObjective(p, exactGradient)
	if err != nil {
		return nil, err
	}
	opt, err := descent.Build(spec, a.zapLogger(p.Name()))
	if err != nil {
		return nil, err
	}
	opt.SetCallback(callback)
	return opt.Solve(obj, p.Start())
}
