// Package main is the entry point for the tzspd TZSP collector.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/tzspd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
