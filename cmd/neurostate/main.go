// Package main is the entry point for the neurostate CLI.
//
// Usage:
//
//	neurostate [flags] <command> [args]
//
// Commands:
//
//	fit        - Learn normalisation stats and the PCA projection from training buffers
//	assemble   - Join a feature fit with fitted model parameters into an artifact
//	decode     - Stream buffers through a decoding session
//	inspect    - Describe an artifact
//	simulate   - Sample from an artifact and decode the samples
//	subscribe  - Print beliefs published by a running decoder
package main

import (
	"fmt"
	"os"

	"github.com/LucaChot/neurostate/cmd/neurostate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
