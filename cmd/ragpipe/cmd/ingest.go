package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/ingest"
	"github.com/haystack-mcp/ragpipe/internal/metadata"
)

type ingestOptions struct {
	docID       string
	contentType string
	category    string
	source      string
	repo        string
	tags        []string
	version     string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a single file, deduplicating against existing records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.docID, "doc-id", "", "Override the derived doc_id")
	cmd.Flags().StringVar(&opts.contentType, "type", "doc", "Content type: doc or code")
	cmd.Flags().StringVar(&opts.category, "category", "", "Document category")
	cmd.Flags().StringVar(&opts.source, "source", "", "Document source")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "Repository identifier")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Tags to attach (repeatable)")
	cmd.Flags().StringVar(&opts.version, "version", "", "Version label")

	return cmd
}

func runIngest(cmd *cobra.Command, path string, opts ingestOptions) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	ct := ingest.ContentDoc
	if opts.contentType == "code" {
		ct = ingest.ContentCode
	}

	res, err := app.Ingest.Store(cmd.Context(), ingest.Input{
		DocID: opts.docID, Content: string(raw), ContentType: ct,
		Category: metadata.Category(opts.category), Source: metadata.Source(opts.source),
		FilePath: path, Repo: opts.repo, Tags: opts.tags, Version: opts.version,
	})
	if err != nil {
		return err
	}

	fmt.Printf("status=%s action=%s level=%s point_id=%s doc_id=%s version=%s\n",
		res.Status, res.Action, res.Level, res.PointID, res.DocID, res.Version)
	if res.Reason != "" {
		fmt.Println("reason:", res.Reason)
	}
	return nil
}
