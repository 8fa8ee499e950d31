// Command ragline is the entry point for the ragline RAG pipeline.
// It provides a CLI interface (via Cobra) for ingestion and queries, plus an
// HTTP server exposing the same pipelines as a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/ragline/ragline/cmd/ragline/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
