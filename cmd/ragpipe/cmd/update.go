package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/update"
)

func newUpdateCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "update",
		Short: "Rewrite, patch, deprecate, or inspect the history of stored points",
	}
	root.AddCommand(newUpdateContentCmd())
	root.AddCommand(newUpdateMetadataCmd())
	root.AddCommand(newDeprecateCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

func updaterFor(code bool) (*update.Service, embedder.Embedder) {
	if code {
		return app.CodeUpdate, app.CodeEmbedder
	}
	return app.DocUpdate, app.DocEmbedder
}

func parseKV(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func newUpdateContentCmd() *cobra.Command {
	var code bool
	var sets []string

	cmd := &cobra.Command{
		Use:   "content <point-id> <file>",
		Short: "Rewrite a point's content, recomputing its hash and embedding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readFile(args[1])
			if err != nil {
				return err
			}
			patch, err := parseKV(sets)
			if err != nil {
				return err
			}
			u, embed := updaterFor(code)
			p, err := u.UpdateContent(cmd.Context(), args[0], raw, embed, patch)
			if err != nil {
				return err
			}
			fmt.Println("updated point", p.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringSliceVar(&sets, "set", nil, "Additional key=value metadata to set (repeatable)")
	return cmd
}

func newUpdateMetadataCmd() *cobra.Command {
	var code bool
	var sets []string

	cmd := &cobra.Command{
		Use:   "metadata <point-id>",
		Short: "Patch a point's metadata in place, preserving its vector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseKV(sets)
			if err != nil {
				return err
			}
			u, _ := updaterFor(code)
			p, err := u.UpdateMetadata(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Println("patched point", p.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringSliceVar(&sets, "set", nil, "key=value metadata to set (repeatable, required)")
	return cmd
}

func newDeprecateCmd() *cobra.Command {
	var code bool
	cmd := &cobra.Command{
		Use:   "deprecate <point-id>",
		Short: "Mark a point deprecated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, _ := updaterFor(code)
			p, err := u.Deprecate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println("deprecated point", p.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var code bool
	var category string
	var includeDeprecated bool

	cmd := &cobra.Command{
		Use:   "history <doc-id>",
		Short: "List every stored version of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, _ := updaterFor(code)
			history, err := u.GetVersionHistory(cmd.Context(), args[0], category, includeDeprecated)
			if err != nil {
				return err
			}
			for _, p := range history {
				v, _ := p.Value("meta.version")
				st, _ := p.Value("meta.status")
				fmt.Printf("%s version=%v status=%v\n", p.ID, v, st)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&code, "code", false, "Target the code collection instead of documentation")
	cmd.Flags().StringVar(&category, "category", "", "Restrict to this category")
	cmd.Flags().BoolVar(&includeDeprecated, "include-deprecated", false, "Include deprecated versions")
	return cmd
}
