package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

type ReceiptUseCase struct {
	ocr        ports.OCREngine
	normalizer *NormalizeUseCase
	resolver   *ResolveUseCase
	catalog    ports.CatalogProvider
	events     ports.ReceiptEvents
}

func NewReceiptUseCase(
	ocr ports.OCREngine,
	normalizer *NormalizeUseCase,
	resolver *ResolveUseCase,
	catalog ports.CatalogProvider,
	events ports.ReceiptEvents,
) *ReceiptUseCase {
	return &ReceiptUseCase{
		ocr:        ocr,
		normalizer: normalizer,
		resolver:   resolver,
		catalog:    catalog,
		events:     events,
	}
}

func (uc *ReceiptUseCase) Process(ctx context.Context, userID string, image []byte) (*domain.Resolution, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process receipt", errors.New("user_id is required"))
	}
	if len(image) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process receipt", errors.New("image is empty"))
	}
	if uc.ocr == nil {
		return nil, fmt.Errorf("process receipt: no OCR engine configured")
	}

	fragments, err := uc.ocr.Extract(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("extract receipt text: %w", err)
	}
	slog.Debug("receipt_text_extracted", "fragments", len(fragments))
	return uc.ProcessText(ctx, userID, fragments)
}

func (uc *ReceiptUseCase) ProcessText(ctx context.Context, userID string, fragments []string) (*domain.Resolution, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process receipt", errors.New("user_id is required"))
	}
	fragments = compactFragments(fragments)
	if len(fragments) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process receipt", errors.New("no text found on receipt"))
	}

	candidate, err := uc.normalizer.Normalize(ctx, fragments, uc.catalogNames())
	if err != nil {
		return nil, err
	}

	resolution, err := uc.resolver.Resolve(ctx, userID, candidate)
	if err != nil {
		return nil, fmt.Errorf("resolve candidate order: %w", err)
	}

	uc.publish(ctx, resolution)
	slog.Info("receipt_processed",
		"user_id", userID,
		"items", len(resolution.Order.Items),
		"rejected", resolution.Rejected,
		"degraded", resolution.Degraded,
		"total_price", resolution.Order.TotalPrice,
	)
	return &resolution, nil
}

func (uc *ReceiptUseCase) catalogNames() []string {
	if uc.catalog == nil {
		return nil
	}
	index := uc.catalog.Current()
	if index == nil {
		return nil
	}
	return index.Names()
}

func (uc *ReceiptUseCase) publish(ctx context.Context, resolution domain.Resolution) {
	if uc.events == nil {
		return
	}
	event := domain.ReceiptValidatedEvent{
		ReceiptID: uuid.NewString(),
		Order:     resolution.Order,
		Degraded:  resolution.Degraded,
	}
	if err := uc.events.PublishReceiptValidated(ctx, event); err != nil {
		slog.Warn("receipt_event_publish_failed", "receipt_id", event.ReceiptID, "error", err)
	}
}

func compactFragments(fragments []string) []string {
	out := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if trimmed := strings.TrimSpace(fragment); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
