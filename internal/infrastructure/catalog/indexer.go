package catalog

import (
	"context"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// Indexer builds an index from catalog entries and persists it to dir.
type Indexer struct {
	embedder ports.Embedder
	dir      string
}

var _ ports.CatalogIndexer = (*Indexer)(nil)

func NewIndexer(embedder ports.Embedder, dir string) *Indexer {
	return &Indexer{embedder: embedder, dir: dir}
}

func (x *Indexer) Index(ctx context.Context, entries []domain.CatalogEntry) (domain.BuildReport, error) {
	idx, report, err := Build(ctx, entries, x.embedder)
	if err != nil {
		return report, err
	}
	if err := Save(ctx, x.dir, idx); err != nil {
		return report, err
	}
	report.Dir = x.dir
	return report, nil
}
