// Package cmd provides ragpipe's CLI commands: a NewRootCmd
// constructor, one file per subcommand, shared state wired once in
// PersistentPreRunE rather than re-built per command.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/config"
	"github.com/haystack-mcp/ragpipe/internal/logging"
	"github.com/haystack-mcp/ragpipe/internal/wiring"
)

// app is wired once in the root command's PersistentPreRunE and read
// by every subcommand, rather than threading a context value through
// cobra.
var app *wiring.App

// NewRootCmd builds the ragpipe root command and attaches every
// subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragpipe",
		Short: "Content-addressed ingestion pipeline for a RAG vector store",
		Long: `ragpipe ingests, deduplicates, updates, and audits documents
against a Qdrant-backed vector store, following the same
fingerprint/metadata/dedupe pipeline the MCP server (ragpipe-mcp)
exposes over stdio.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			a, err := wiring.New(cfg)
			if err != nil {
				return fmt.Errorf("wire pipeline: %w", err)
			}
			app = a
			return nil
		},
	}

	root.AddCommand(newIngestCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newBulkCmd())
	root.AddCommand(newAuditCmd())
	root.AddCommand(newBackupCmd())
	root.AddCommand(newRestoreCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command, logging any error through
// internal/logging before returning it to main for the exit code.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		logging.WithKind(err).Error("ragpipe command failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
