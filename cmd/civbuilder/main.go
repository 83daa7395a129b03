// Command civbuilder operates a CivBuilder encrypted-state ledger.
package main

import (
	"fmt"
	"os"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
