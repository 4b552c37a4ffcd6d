// Command sqlitell runs SQL and scenario files through the sqlitell API.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/sqlitell/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || !exitErr.Reported() {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
