// Package main provides the entry point for the indexer CLI.
package main

import (
	"os"

	"github.com/researchgraph/hybridsearch/cmd/indexer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
