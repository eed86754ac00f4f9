// Command rollcall runs the roster bot and its operator tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rollcall/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
