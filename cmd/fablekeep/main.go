// Command fablekeep is the tabletop companion CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fablekeep/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
