package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/audit"
)

func newAuditCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "audit",
		Short: "Verify document quality and integrity against the vector store",
	}
	root.AddCommand(newAuditVerifyCmd())
	root.AddCommand(newAuditDirectoryCmd())
	return root
}

func auditFor(code bool) *audit.Service {
	if code {
		return app.CodeAudit
	}
	return app.DocAudit
}

func newAuditVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Run the quality rubric against a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readFile(args[0])
			if err != nil {
				return err
			}
			report := audit.VerifyDocument(content, map[string]any{
				"doc_id": args[0], "category": "cli-verify", "content_hash": "",
			})
			fmt.Printf("status=%s score=%.2f issues=%v\n", report.Status, report.Score, report.Issues)
			return nil
		},
	}
	return cmd
}

func newAuditDirectoryCmd() *cobra.Command {
	var code bool
	var category string

	cmd := &cobra.Command{
		Use:   "directory <path>",
		Short: "Audit every file under a directory against the stored records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := auditFor(code)
			report, err := a.AuditDirectory(cmd.Context(), args[0], category)
			if err != nil {
				return err
			}
			fmt.Printf("files=%d missing=%d mismatched=%d integrity_score=%.3f\n",
				report.TotalFiles, report.Missing, report.Mismatched, report.IntegrityScore)
			for _, f := range report.Files {
				fmt.Printf("  %s: %s\n", f.Path, f.Class)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringVar(&category, "category", "", "Restrict to this category")
	return cmd
}
