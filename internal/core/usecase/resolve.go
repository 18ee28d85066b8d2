package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// DefaultMatchThreshold is the L2 distance a nearest neighbor must stay strictly
// below to be accepted. Calibrated for the embedding model in use.
const DefaultMatchThreshold = 1.0

type ResolveUseCase struct {
	embedder  ports.Embedder
	catalog   ports.CatalogProvider
	threshold float64
	now       func() time.Time
}

func NewResolveUseCase(
	embedder ports.Embedder,
	catalog ports.CatalogProvider,
	threshold float64,
) *ResolveUseCase {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &ResolveUseCase{
		embedder:  embedder,
		catalog:   catalog,
		threshold: threshold,
		now:       time.Now,
	}
}

func (uc *ResolveUseCase) Threshold() float64 {
	return uc.threshold
}

// Resolve reconciles a candidate order against the current catalog. Items whose
// nearest neighbor is not strictly closer than the threshold are dropped. With
// no catalog loaded, items pass through unchanged.
func (uc *ResolveUseCase) Resolve(
	ctx context.Context,
	userID string,
	candidate domain.CandidateOrder,
) (domain.Resolution, error) {
	timestamp := uc.resolveTimestamp(candidate.Timestamp)

	var index ports.CatalogIndex
	if uc.catalog != nil {
		index = uc.catalog.Current()
	}
	if index == nil {
		return uc.passThrough(userID, timestamp, candidate), nil
	}

	out := domain.Resolution{
		Order: domain.ValidatedOrder{
			UserID:    userID,
			Timestamp: timestamp,
			Items:     []domain.ResolvedItem{},
		},
	}
	if len(candidate.Items) == 0 {
		return out, nil
	}

	vectors, err := uc.embedItems(ctx, candidate.Items)
	if err != nil {
		return domain.Resolution{}, err
	}

	var total float64
	for i, item := range candidate.Items {
		neighbors, err := index.Search(vectors[i], 1)
		if err != nil {
			if domain.IsKind(err, domain.ErrShape) {
				slog.Error("index_shape_mismatch",
					"query_dims", len(vectors[i]),
					"index_dims", index.Dims(),
					"index_model", index.Model(),
					"embed_model", uc.embedder.ModelName(),
					"error", err,
				)
			}
			return domain.Resolution{}, fmt.Errorf("search catalog: %w", err)
		}

		resolved, decision, ok := uc.match(index, item, neighbors)
		if decision != nil {
			out.Matches = append(out.Matches, *decision)
		}
		if !ok {
			out.Rejected++
			slog.Debug("item_rejected", "product_name", item.ProductName, "threshold", uc.threshold)
			continue
		}
		out.Resolved++
		total += resolved.TotalPrice
		out.Order.Items = append(out.Order.Items, resolved)
	}
	out.Order.TotalPrice = roundCents(total)
	return out, nil
}

func (uc *ResolveUseCase) embedItems(ctx context.Context, items []domain.CandidateItem) ([][]float32, error) {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.ProductName)
	}
	vectors, err := uc.embedder.Embed(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("embed item names: %w", err)
	}
	if len(vectors) != len(names) {
		return nil, domain.WrapError(
			domain.ErrShape,
			"embed item names",
			fmt.Errorf("vectors/names mismatch: %d/%d", len(vectors), len(names)),
		)
	}
	return vectors, nil
}

func (uc *ResolveUseCase) match(
	index ports.CatalogIndex,
	item domain.CandidateItem,
	neighbors []domain.Neighbor,
) (domain.ResolvedItem, *domain.MatchDecision, bool) {
	if len(neighbors) == 0 {
		return domain.ResolvedItem{}, nil, false
	}
	nearest := neighbors[0]
	decision := &domain.MatchDecision{
		CandidateName: item.ProductName,
		Row:           nearest.Row,
		Distance:      nearest.Distance,
		Accepted:      nearest.Distance < uc.threshold,
	}
	if !decision.Accepted {
		return domain.ResolvedItem{}, decision, false
	}

	entry, ok := index.Entry(nearest.Row)
	if !ok {
		slog.Error("catalog_row_missing", "row", nearest.Row, "rows", index.Len())
		decision.Accepted = false
		return domain.ResolvedItem{}, decision, false
	}
	return domain.ResolvedItem{
		ProductID:    entry.ProductID,
		ProductName:  entry.ProductName,
		Quantity:     item.Quantity,
		PricePerUnit: entry.Price,
		TotalPrice:   roundCents(entry.Price * float64(item.Quantity)),
	}, decision, true
}

func (uc *ResolveUseCase) passThrough(userID, timestamp string, candidate domain.CandidateOrder) domain.Resolution {
	items := make([]domain.ResolvedItem, 0, len(candidate.Items))
	for _, item := range candidate.Items {
		items = append(items, domain.ResolvedItem{
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit,
			TotalPrice:   item.TotalPrice,
		})
	}
	return domain.Resolution{
		Order: domain.ValidatedOrder{
			UserID:     userID,
			Timestamp:  timestamp,
			Items:      items,
			TotalPrice: candidate.TotalPrice,
		},
		Degraded: true,
	}
}

func (uc *ResolveUseCase) resolveTimestamp(ts *string) string {
	if domain.IsValidTimestamp(ts) {
		return *ts
	}
	return uc.now().Format(domain.LocalTimestampLayout)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
