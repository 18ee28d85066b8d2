package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/receipt-assistant/internal/infrastructure/catalog"
)

func newSearchCommand(deps Deps) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [product name]",
		Short: "Show the nearest catalog entries for a product name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Embedder == nil {
				return errors.New("embedder not configured")
			}
			embedder := deps.Embedder()
			idx, err := catalog.Load(cmd.Context(), deps.CatalogDir, embedder.ModelName())
			if err != nil {
				return err
			}

			query := strings.TrimSpace(args[0])
			vector, err := embedder.EmbedQuery(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			neighbors, err := idx.Search(vector, limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(neighbors) == 0 {
				cmd.Println("No results found.")
				return nil
			}

			for i, n := range neighbors {
				entry, _ := idx.Entry(n.Row)
				verdict := "reject"
				if n.Distance < deps.Threshold {
					verdict = "accept"
				}
				cmd.Printf("[%d] %s (id %s, price %.2f) distance %.4f %s\n",
					i+1, entry.ProductName, entry.ProductID, entry.Price, n.Distance, verdict)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of neighbors")
	return cmd
}
