package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

func newFruitResolver() *ResolveUseCase {
	return NewResolveUseCase(fruitEmbedder(), providerFake{index: fruitCatalog()}, DefaultMatchThreshold)
}

func tsPtr(s string) *string { return &s }

func TestResolveRewritesMatchedItems(t *testing.T) {
	uc := newFruitResolver()

	res, err := uc.Resolve(context.Background(), "user-1", domain.CandidateOrder{
		Timestamp: tsPtr("2024-11-23T12:41:30"),
		Items: []domain.CandidateItem{
			{ProductName: "Appel", Quantity: 2},
			{ProductName: "Orange", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := domain.ValidatedOrder{
		UserID:    "user-1",
		Timestamp: "2024-11-23T12:41:30",
		Items: []domain.ResolvedItem{
			{ProductID: "1", ProductName: "Apple", Quantity: 2, PricePerUnit: 5, TotalPrice: 10},
			{ProductID: "2", ProductName: "Orange", Quantity: 3, PricePerUnit: 3, TotalPrice: 9},
		},
		TotalPrice: 19,
	}
	if !reflect.DeepEqual(res.Order, want) {
		t.Fatalf("unexpected order:\n got %+v\nwant %+v", res.Order, want)
	}
	if res.Resolved != 2 || res.Rejected != 0 || res.Degraded {
		t.Fatalf("unexpected stats: %+v", res)
	}
}

func TestResolveDropsUnmatchedItems(t *testing.T) {
	uc := newFruitResolver()

	res, err := uc.Resolve(context.Background(), "user-1", domain.CandidateOrder{
		Timestamp: tsPtr("2024-11-23T12:41:30"),
		Items: []domain.CandidateItem{
			{ProductName: "Apple", Quantity: 2},
			{ProductName: "Unknown", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Order.Items) != 1 || res.Order.Items[0].ProductName != "Apple" {
		t.Fatalf("expected only the Apple line, got %+v", res.Order.Items)
	}
	if res.Order.TotalPrice != 2*5 {
		t.Fatalf("expected total 10, got %v", res.Order.TotalPrice)
	}
	if res.Rejected != 1 {
		t.Fatalf("expected one rejected item, got %d", res.Rejected)
	}
}

func TestResolveThresholdIsStrict(t *testing.T) {
	uc := newFruitResolver()

	res, err := uc.Resolve(context.Background(), "user-1", domain.CandidateOrder{
		Timestamp: tsPtr("2024-11-23"),
		Items: []domain.CandidateItem{
			{ProductName: "Edge", Quantity: 1},
			{ProductName: "Almost", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("expected two match decisions, got %+v", res.Matches)
	}
	if res.Matches[0].Distance != 1.0 || res.Matches[0].Accepted {
		t.Fatalf("distance exactly at threshold must be rejected: %+v", res.Matches[0])
	}
	if !res.Matches[1].Accepted {
		t.Fatalf("distance below threshold must be accepted: %+v", res.Matches[1])
	}
	if len(res.Order.Items) != 1 || res.Order.Items[0].ProductID != "1" {
		t.Fatalf("expected only the near match to survive, got %+v", res.Order.Items)
	}
}

func TestResolveCustomThreshold(t *testing.T) {
	uc := NewResolveUseCase(fruitEmbedder(), providerFake{index: fruitCatalog()}, 0.2)
	if uc.Threshold() != 0.2 {
		t.Fatalf("expected threshold 0.2, got %v", uc.Threshold())
	}

	res, err := uc.Resolve(context.Background(), "u", domain.CandidateOrder{
		Items: []domain.CandidateItem{{ProductName: "Appel", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Order.Items) != 0 {
		t.Fatalf("expected Appel (distance 0.3) rejected at threshold 0.2, got %+v", res.Order.Items)
	}
}

func TestResolveSubstitutesMissingTimestamp(t *testing.T) {
	uc := newFruitResolver()
	before := time.Now()

	res, err := uc.Resolve(context.Background(), "u", domain.CandidateOrder{Timestamp: nil})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	ts := res.Order.Timestamp
	if !domain.IsValidTimestamp(&ts) {
		t.Fatalf("expected valid ISO-8601 timestamp, got %q", ts)
	}
	parsed, err := time.ParseInLocation(domain.LocalTimestampLayout, ts, time.Local)
	if err != nil {
		t.Fatalf("parse substituted timestamp: %v", err)
	}
	if diff := parsed.Sub(before); diff < -time.Second || diff > 5*time.Second {
		t.Fatalf("substituted timestamp %s too far from now", ts)
	}
}

func TestResolveReplacesInvalidTimestamp(t *testing.T) {
	uc := newFruitResolver()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	uc.now = func() time.Time { return fixed }

	res, err := uc.Resolve(context.Background(), "u", domain.CandidateOrder{Timestamp: tsPtr("2024-13-40")})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Order.Timestamp != "2025-01-02T03:04:05.000000" {
		t.Fatalf("unexpected substituted timestamp %q", res.Order.Timestamp)
	}
}

func TestResolveReplacesPaddedTimestamp(t *testing.T) {
	uc := newFruitResolver()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	uc.now = func() time.Time { return fixed }

	res, err := uc.Resolve(context.Background(), "u", domain.CandidateOrder{Timestamp: tsPtr(" 2024-11-23 ")})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Order.Timestamp != "2025-01-02T03:04:05.000000" {
		t.Fatalf("padded timestamp must be replaced, got %q", res.Order.Timestamp)
	}
}

func TestResolvePassesThroughWithoutCatalog(t *testing.T) {
	embedder := fruitEmbedder()
	uc := NewResolveUseCase(embedder, providerFake{}, DefaultMatchThreshold)

	candidate := domain.CandidateOrder{
		Timestamp: tsPtr("2024-11-23T12:41:30"),
		Items:     []domain.CandidateItem{{ProductName: "Apple", Quantity: 2}},
	}
	res, err := uc.Resolve(context.Background(), "u", candidate)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Degraded {
		t.Fatalf("expected degraded resolution")
	}
	want := []domain.ResolvedItem{{ProductName: "Apple", Quantity: 2}}
	if !reflect.DeepEqual(res.Order.Items, want) {
		t.Fatalf("expected unchanged items, got %+v", res.Order.Items)
	}
	if res.Order.TotalPrice != 0 {
		t.Fatalf("expected no price filled in, got %v", res.Order.TotalPrice)
	}
	if embedder.calls != 0 {
		t.Fatalf("pass-through must not call the embedder")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	uc := newFruitResolver()
	candidate := domain.CandidateOrder{
		Timestamp: tsPtr("2024-11-23T12:41:30"),
		Items: []domain.CandidateItem{
			{ProductName: "Appel", Quantity: 2},
			{ProductName: "Unknown", Quantity: 1},
			{ProductName: "Orange", Quantity: 1},
		},
	}

	first, err := uc.Resolve(context.Background(), "u", candidate)
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	second, err := uc.Resolve(context.Background(), "u", candidate)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical resolutions:\n%+v\n%+v", first, second)
	}
}

func TestResolveFailsOnShapeMismatch(t *testing.T) {
	embedder := &embedderFake{vectors: map[string][]float32{"Apple": {0, 0, 0}}}
	uc := NewResolveUseCase(embedder, providerFake{index: fruitCatalog()}, DefaultMatchThreshold)

	_, err := uc.Resolve(context.Background(), "u", domain.CandidateOrder{
		Items: []domain.CandidateItem{{ProductName: "Apple", Quantity: 1}},
	})
	if !domain.IsKind(err, domain.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestResolveFailsOnEmbedError(t *testing.T) {
	embedErr := errors.New("embedder down")
	uc := NewResolveUseCase(&embedderFake{err: embedErr}, providerFake{index: fruitCatalog()}, DefaultMatchThreshold)

	_, err := uc.Resolve(context.Background(), "u", domain.CandidateOrder{
		Items: []domain.CandidateItem{{ProductName: "Apple", Quantity: 1}},
	})
	if !errors.Is(err, embedErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
}

func TestResolveRoundsTotalsToCents(t *testing.T) {
	index := &catalogIndexFake{
		entries: []domain.CatalogEntry{{ProductID: "9", ProductName: "Gum", Price: 0.1}},
		vectors: [][]float32{{0, 0}},
	}
	embedder := &embedderFake{vectors: map[string][]float32{"Gum": {0, 0}}}
	uc := NewResolveUseCase(embedder, providerFake{index: index}, DefaultMatchThreshold)

	res, err := uc.Resolve(context.Background(), "u", domain.CandidateOrder{
		Items: []domain.CandidateItem{{ProductName: "Gum", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Order.TotalPrice != 0.3 || res.Order.Items[0].TotalPrice != 0.3 {
		t.Fatalf("expected 0.3, got %+v", res.Order)
	}
}
