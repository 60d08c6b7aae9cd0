// Command dashstore runs placement scenarios and manages saved dashboards.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dashstore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
