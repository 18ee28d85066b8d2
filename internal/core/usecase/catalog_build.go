package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

type BuildCatalogUseCase struct {
	source  ports.CatalogSource
	indexer ports.CatalogIndexer
	events  ports.CatalogEvents
}

func NewBuildCatalogUseCase(
	source ports.CatalogSource,
	indexer ports.CatalogIndexer,
	events ports.CatalogEvents,
) *BuildCatalogUseCase {
	return &BuildCatalogUseCase{
		source:  source,
		indexer: indexer,
		events:  events,
	}
}

func (uc *BuildCatalogUseCase) Rebuild(ctx context.Context) (domain.BuildReport, error) {
	entries, err := uc.source.Load(ctx)
	if err != nil {
		return domain.BuildReport{}, fmt.Errorf("load catalog source: %w", err)
	}

	report, err := uc.indexer.Index(ctx, entries)
	if err != nil {
		return domain.BuildReport{}, fmt.Errorf("index catalog: %w", err)
	}
	slog.Info("catalog_built",
		"rows", report.Rows,
		"skipped", report.Skipped,
		"dims", report.Dims,
		"embed_model", report.EmbedModel,
		"duration_ms", float64(report.Duration.Microseconds())/1000.0,
	)

	if uc.events != nil {
		if err := uc.events.PublishCatalogRebuilt(ctx, report); err != nil {
			return report, fmt.Errorf("publish catalog rebuilt: %w", err)
		}
	}
	return report, nil
}
