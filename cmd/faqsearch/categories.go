package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCategoriesCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the FAQ categories and how many entries each has",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCategories(cmd.Context(), root, jsonOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	return cmd
}

type categoryCount struct {
	Category string `json:"category"`
	Entries  int    `json:"entries"`
}

func runCategories(ctx context.Context, root *rootOptions, jsonOutput bool, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	idx, _, err := root.loadIndex(ctx, root.logger(errOut), false)
	if err != nil {
		return err
	}

	counts := make([]categoryCount, 0, len(idx.Categories()))
	for _, c := range idx.Categories() {
		counts = append(counts, categoryCount{Category: c, Entries: len(idx.ByCategory(c))})
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}
	for _, c := range counts {
		_, _ = fmt.Fprintf(out, "%-30s %d\n", c.Category, c.Entries)
	}
	_, _ = fmt.Fprintf(out, "%d entries in %d categories\n", idx.Len(), len(counts))
	return nil
}
