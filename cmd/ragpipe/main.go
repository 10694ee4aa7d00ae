// Command ragpipe is the operator-facing CLI for the ingestion
// pipeline: ingest, search, update, bulk, audit, backup/restore, and
// watch.
package main

import (
	"os"

	"github.com/haystack-mcp/ragpipe/cmd/ragpipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
