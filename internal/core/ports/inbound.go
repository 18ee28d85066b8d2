package ports

import (
	"context"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

// ReceiptProcessor is the inbound contract for turning a receipt into a validated order.
type ReceiptProcessor interface {
	Process(ctx context.Context, userID string, image []byte) (*domain.Resolution, error)
	ProcessText(ctx context.Context, userID string, fragments []string) (*domain.Resolution, error)
}

// CatalogBuilder rebuilds the catalog artifacts from the configured source.
type CatalogBuilder interface {
	Rebuild(ctx context.Context) (domain.BuildReport, error)
}

// CatalogReloader swaps in catalog artifacts already present on disk.
type CatalogReloader interface {
	Reload(ctx context.Context) error
	Status() domain.CatalogStatus
}
