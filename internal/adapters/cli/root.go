// Package cli holds the catalogctl command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// ProductImporter replaces the products table of a catalog store.
type ProductImporter interface {
	ReplaceAll(ctx context.Context, entries []domain.CatalogEntry) error
}

// RebuildRequester asks a worker to rebuild the catalog.
type RebuildRequester interface {
	RequestCatalogRebuild(ctx context.Context, reason string) error
}

// Deps opens the collaborators each command needs. Commands only open what
// they use; each returned func releases it.
type Deps struct {
	CatalogDir string
	Threshold  float64

	Builder          func(ctx context.Context) (ports.CatalogBuilder, func(), error)
	Embedder         func() ports.Embedder
	Importer         func(ctx context.Context) (ProductImporter, func(), error)
	RebuildRequester func() (RebuildRequester, func(), error)
}

func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Build and inspect the product catalog index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newBuildCommand(deps),
		newSearchCommand(deps),
		newInspectCommand(deps),
		newImportCommand(deps),
		newRequestRebuildCommand(deps),
	)
	return root
}
