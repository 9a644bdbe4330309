// Command cascade is the command-line interface to the computed-field
// engine.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/cascade/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands report their own errors; only cobra's usage errors are
	// still unprinted here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
