package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/bulk"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

func newBulkCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bulk",
		Short: "Run scroll-and-mutate operations across an entire collection",
	}
	root.AddCommand(newBulkDeleteCmd())
	root.AddCommand(newBulkSetMetaCmd())
	root.AddCommand(newBulkExportCmd())
	root.AddCommand(newBulkImportCmd())
	root.AddCommand(newBulkImportRecordsCmd())
	return root
}

func bulkFor(code bool) (*bulk.Service, embedder.Embedder) {
	if code {
		return app.CodeBulk, app.CodeEmbedder
	}
	return app.DocBulk, app.DocEmbedder
}

func categoryFilter(category string) (filterdsl.Node, error) {
	f := filterdsl.EqNode("meta.category", category)
	if err := filterdsl.Validate(f); err != nil {
		return filterdsl.Node{}, err
	}
	return f, nil
}

func newBulkDeleteCmd() *cobra.Command {
	var code bool
	var category string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete every point matching --category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if category == "" {
				return fmt.Errorf("--category is required")
			}
			filter, err := categoryFilter(category)
			if err != nil {
				return err
			}
			b, _ := bulkFor(code)
			n, err := b.DeleteByFilter(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d points\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringVar(&category, "category", "", "Category to match (required)")
	return cmd
}

func newBulkSetMetaCmd() *cobra.Command {
	var code bool
	var category string
	var sets []string

	cmd := &cobra.Command{
		Use:   "set-metadata",
		Short: "Patch metadata on every point matching --category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if category == "" {
				return fmt.Errorf("--category is required")
			}
			patch, err := parseKV(sets)
			if err != nil {
				return err
			}
			filter, err := categoryFilter(category)
			if err != nil {
				return err
			}
			b, _ := bulkFor(code)
			updated, errs, err := b.UpdateMetadataByFilter(cmd.Context(), filter, patch)
			if err != nil {
				return err
			}
			fmt.Printf("updated %d points, %d errors\n", updated, len(errs))
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, "  ", e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringVar(&category, "category", "", "Category to match (required)")
	cmd.Flags().StringSliceVar(&sets, "set", nil, "key=value metadata to set (repeatable, required)")
	return cmd
}

func newBulkExportCmd() *cobra.Command {
	var code bool
	var category string
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export points (optionally filtered by --category) to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *filterdsl.Node
			if category != "" {
				f, err := categoryFilter(category)
				if err != nil {
					return err
				}
				filter = &f
			}
			b, _ := bulkFor(code)
			points, err := b.Export(cmd.Context(), filter)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(points, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("exported %d points to %s\n", len(points), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringVar(&category, "category", "", "Restrict export to this category")
	cmd.Flags().StringVar(&out, "out", "export.json", "Output file path")
	return cmd
}

func newBulkImportCmd() *cobra.Command {
	var code bool
	var in string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import points from a JSON file produced by bulk export",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			var points []vectorstore.Point
			if err := json.Unmarshal(raw, &points); err != nil {
				return fmt.Errorf("parse %s: %w", in, err)
			}
			b, embed := bulkFor(code)
			items := make([]bulk.ImportItem, len(points))
			for i, p := range points {
				items[i] = bulk.ImportItem{Point: p}
			}
			if err := b.Import(cmd.Context(), items, embed, concurrency); err != nil {
				return err
			}
			fmt.Printf("imported %d points\n", len(items))
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringVar(&in, "in", "export.json", "Input file path")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Re-embedding concurrency")
	return cmd
}

// importRecord is the on-disk shape newBulkImportRecordsCmd reads: a
// logical document (not a verbatim point), looked up by doc_id so the
// duplicate policy can apply.
type importRecord struct {
	DocID    string         `json:"doc_id"`
	Category string         `json:"category"`
	Content  string         `json:"content"`
	Meta     map[string]any `json:"meta"`
}

func newBulkImportRecordsCmd() *cobra.Command {
	var code bool
	var in string
	var policy string

	cmd := &cobra.Command{
		Use:   "import-records",
		Short: "Import documents by doc_id, applying a duplicate policy (skip, update, error)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			var records []importRecord
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("parse %s: %w", in, err)
			}
			b, embed := bulkFor(code)
			items := make([]bulk.ImportRecord, len(records))
			for i, r := range records {
				items[i] = bulk.ImportRecord{DocID: r.DocID, Category: r.Category, Content: r.Content, Meta: r.Meta}
			}
			report, err := b.ImportRecords(cmd.Context(), items, bulk.DuplicatePolicy(policy), embed)
			if err != nil {
				return err
			}
			fmt.Printf("imported %d, skipped %d, updated %d, errors %d\n",
				report.Imported, report.Skipped, report.Updated, len(report.Errors))
			for _, e := range report.Errors {
				fmt.Fprintln(os.Stderr, "  ", e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringVar(&in, "in", "records.json", "Input file path (JSON array of {doc_id, category, content, meta})")
	cmd.Flags().StringVar(&policy, "policy", "skip", "Duplicate policy when doc_id already exists: skip, update, or error")
	return cmd
}
