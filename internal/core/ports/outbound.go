package ports

import (
	"context"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

// OCREngine reads text fragments off a receipt image in reading order.
type OCREngine interface {
	Extract(ctx context.Context, image []byte) ([]string, error)
}

// TextGenerator is the text-generation oracle: prompt in, free-text completion out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder maps product names into the embedding space shared by the catalog
// build and runtime resolution.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// CatalogIndex is a read-only nearest-neighbor index joined with its metadata rows.
type CatalogIndex interface {
	Search(query []float32, k int) ([]domain.Neighbor, error)
	Entry(row int) (domain.CatalogEntry, bool)
	Names() []string
	Len() int
	Dims() int
	Model() string
}

// CatalogProvider hands out the current catalog index, or nil when none is loaded.
type CatalogProvider interface {
	Current() CatalogIndex
}

// CatalogSource reads catalog entries from a spreadsheet, file or database.
type CatalogSource interface {
	Load(ctx context.Context) ([]domain.CatalogEntry, error)
}

// CatalogIndexer embeds entries and persists the index/metadata artifact pair.
type CatalogIndexer interface {
	Index(ctx context.Context, entries []domain.CatalogEntry) (domain.BuildReport, error)
}

// CatalogEvents announces finished catalog rebuilds.
type CatalogEvents interface {
	PublishCatalogRebuilt(ctx context.Context, report domain.BuildReport) error
}

// ReceiptEvents announces validated orders to downstream consumers.
type ReceiptEvents interface {
	PublishReceiptValidated(ctx context.Context, event domain.ReceiptValidatedEvent) error
}
