package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/backup"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
)

func newBackupCmd() *cobra.Command {
	var category string
	var includeCode bool
	var includeEmbeddings bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot collections to a timestamped, checksummed directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := backup.Request{
				DocCollection:     app.Config.DocCollection,
				DocBulk:           app.DocBulk,
				IncludeEmbeddings: includeEmbeddings,
			}
			if category != "" {
				f := filterdsl.EqNode("meta.category", category)
				req.Filter = &f
			}
			if includeCode {
				req.CodeCollection = app.Config.CodeCollection
				req.CodeBulk = app.CodeBulk
			}
			dir, err := app.Backup.Backup(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Println("backup written to", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Restrict the backup to this category")
	cmd.Flags().BoolVar(&includeCode, "include-code", false, "Also back up the code collection")
	cmd.Flags().BoolVar(&includeEmbeddings, "include-embeddings", false, "Store vectors alongside payloads")
	return cmd
}
