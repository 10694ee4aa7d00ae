package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
)

type searchOptions struct {
	category string
	topK     int
	code     bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Embed a query and return the top matching documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "Restrict results to this category")
	cmd.Flags().IntVarP(&opts.topK, "limit", "n", 10, "Number of results to return")
	cmd.Flags().BoolVar(&opts.code, "code", false, "Search the code collection instead of documentation")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	q := app.DocQuery
	if opts.code {
		q = app.CodeQuery
	}

	var filter *filterdsl.Node
	if opts.category != "" {
		f := filterdsl.EqNode("meta.category", opts.category)
		filter = &f
	}

	results, err := q.SearchWithFilters(cmd.Context(), query, filter, opts.topK)
	if err != nil {
		return err
	}

	for i, r := range results {
		docID, _ := r.Point.Value("meta.doc_id")
		fmt.Printf("%d. %v (score=%.4f, point_id=%s)\n", i+1, docID, r.Score, r.Point.ID)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}
