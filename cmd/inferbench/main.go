package main

import (
	"os"

	"github.com/shivanshkc/inferbench/internal/cli"
)

func main() {
	// Cobra prints the error itself; only the exit code is ours to set.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
