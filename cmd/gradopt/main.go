// Command gradopt runs the gradient based optimizers on the built-in test
// problems.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
