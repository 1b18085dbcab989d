package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/gradopt/internal/config"
	"github.com/copyleftdev/gradopt/internal/logging"
)

var version = "1.0.0"

// app is the state shared by all subcommands.
type app struct {
	logLevel string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "gradopt",
		Short: "Unconstrained minimization with BFGS and steepest descent",
		Long: `gradopt minimizes smooth test functions with BFGS or steepest descent,
using a strong Wolfe or an Armijo backtracking line search.

Solver defaults are read from the OPT_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(logging.ParseLevel(a.logLevel), cmd.ErrOrStderr()).
				WithFormat(logging.TextFormat)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newSolveCmd(a),
		newCompareCmd(a),
		newProblemsCmd(),
		newVersionCmd(),
	)
	return root
}

// zapLogger returns the solver logger, tagged with the problem name.
func (a *app) zapLogger(problem string) *zap.Logger {
	return logging.NewZapLogger(a.logger.WithField("problem", problem))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gradopt version %s\n", version)
		},
	}
}
