// Command fortrandep writes Makefile dependency rules for Fortran sources.
package main

import (
	"fmt"
	"os"
)

const versionString = "1.0.0"

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
