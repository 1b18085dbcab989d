package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/gradopt/internal/optimization/problems"
)

func newProblemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List the available test problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range problems.Names() {
				n, _ := problems.DefaultDim(name)
				p, err := problems.Lookup(name, n)
				if err != nil {
					return err
				}
				minimum := "unknown"
				if v, ok := p.MinValue(); ok {
					minimum = fmt.Sprintf("%g", v)
				}
				fmt.Fprintf(out, "%-18s default dimension %-3d minimum %s\n", name, n, minimum)
			}
			return nil
		},
	}
}
