// Command vox classifies voice transcripts and tracks conversation context.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vox/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
