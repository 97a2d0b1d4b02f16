// Command tabstore runs listener scenarios, compiles CUE schemas and moves
// store content between JSON and the persistence backends.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/tabstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "tabstore: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
