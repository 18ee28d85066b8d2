package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/receipt-assistant/internal/infrastructure/catalog"
)

func newInspectCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the manifest of the catalog in CATALOG_DIR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manifest, err := catalog.ReadManifest(cmd.Context(), deps.CatalogDir)
			if err != nil {
				return err
			}
			cmd.Printf("dir:          %s\n", deps.CatalogDir)
			cmd.Printf("rows:         %d\n", manifest.Rows)
			cmd.Printf("dims:         %d\n", manifest.Dims)
			cmd.Printf("embed model:  %s\n", manifest.EmbedModel)
			cmd.Printf("built at:     %s\n", manifest.BuiltAt.Format(time.RFC3339))
			cmd.Printf("vectors hash: %s\n", manifest.VectorsSHA256)
			return nil
		},
	}
}
