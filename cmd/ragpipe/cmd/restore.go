package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/backup"
)

func newRestoreCmd() *cobra.Command {
	var includeCode bool

	cmd := &cobra.Command{
		Use:   "restore <backup-dir>",
		Short: "Restore a backup directory after verifying every file's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := backup.RestoreRequest{
				Dir:     args[0],
				DocBulk: app.DocBulk,
				Embed: func(content string) ([]float32, error) {
					vecs, err := app.DocEmbedder.EmbedBatch(context.Background(), []string{content})
					if err != nil {
						return nil, err
					}
					return vecs[0], nil
				},
			}
			if includeCode {
				req.CodeBulk = app.CodeBulk
				req.CodeEmbed = func(content string) ([]float32, error) {
					vecs, err := app.CodeEmbedder.EmbedBatch(context.Background(), []string{content})
					if err != nil {
						return nil, err
					}
					return vecs[0], nil
				}
			}
			if err := app.Backup.Restore(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Println("restore complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeCode, "include-code", false, "Also restore the code collection")
	return cmd
}
