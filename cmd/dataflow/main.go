// Command dataflow is the example embedder for the execution kernel
// (spec.md §1: out of scope as a product surface, "included here only
// to exercise the facade end to end" per SPEC_FULL.md §6). It loads a
// directory of workflow definitions, submits one message through the
// compiled engine, and prints the result.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "dataflow",
		Short: "Run declarative message-processing workflows",
	}
	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
