package catalog

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

type embedderFake struct {
	model   string
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, errors.New("no vector for " + text)
		}
		out[i] = vec
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *embedderFake) ModelName() string { return f.model }

func fruitEmbedder() *embedderFake {
	return &embedderFake{
		model: "test-embed",
		vectors: map[string][]float32{
			"Apple":  {0, 0},
			"Orange": {10, 0},
			"Banana": {0, 10},
			"Appel":  {0.3, 0},
			"Bad":    {1, 2, 3},
		},
	}
}

func fruitEntries() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{ProductID: "1", ProductName: "Apple", Price: 5},
		{ProductID: "2", ProductName: "Orange", Price: 3},
		{ProductID: "3", ProductName: "Banana", Price: 1.25},
	}
}

func mustBuild(t *testing.T) *Index {
	t.Helper()
	idx, _, err := Build(context.Background(), fruitEntries(), fruitEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func TestBuildKeepsRowAlignment(t *testing.T) {
	idx, report, err := Build(context.Background(), fruitEntries(), fruitEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if report.Rows != 3 || report.Dims != 2 || report.EmbedModel != "test-embed" {
		t.Fatalf("unexpected report: %+v", report)
	}
	for row, want := range fruitEntries() {
		got, ok := idx.Entry(row)
		if !ok || got != want {
			t.Fatalf("row %d: got %+v, want %+v", row, got, want)
		}
	}
	if _, ok := idx.Entry(3); ok {
		t.Fatalf("expected row 3 to be out of range")
	}
}

func TestBuildSkipsEmptyNames(t *testing.T) {
	entries := []domain.CatalogEntry{
		{ProductID: "0", ProductName: "   "},
		{ProductID: "1", ProductName: " Apple ", Price: 5},
		{ProductID: "2", ProductName: "", Price: 9},
		{ProductID: "3", ProductName: "Orange", Price: 3},
	}
	idx, report, err := Build(context.Background(), entries, fruitEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if report.Rows != 2 || report.Skipped != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	names := idx.Names()
	if len(names) != 2 || names[0] != "Apple" || names[1] != "Orange" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestBuildEmbedsInOneBatch(t *testing.T) {
	embedder := fruitEmbedder()
	if _, _, err := Build(context.Background(), fruitEntries(), embedder); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected one embed call, got %d", embedder.calls)
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	entries := append(fruitEntries(), domain.CatalogEntry{ProductID: "9", ProductName: "Bad"})
	_, _, err := Build(context.Background(), entries, fruitEmbedder())
	if !domain.IsKind(err, domain.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestBuildEmptyCatalog(t *testing.T) {
	idx, report, err := Build(context.Background(), nil, fruitEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if report.Rows != 0 || idx.Len() != 0 {
		t.Fatalf("expected empty index, got %+v", report)
	}
	neighbors, err := idx.Search([]float32{0, 0}, 1)
	if err != nil || len(neighbors) != 0 {
		t.Fatalf("expected no neighbors, got %v, %v", neighbors, err)
	}
}

func TestSearchReturnsNearestFirst(t *testing.T) {
	idx := mustBuild(t)

	neighbors, err := idx.Search([]float32{0, 0}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].Row != 0 || neighbors[0].Distance > 1e-6 {
		t.Fatalf("expected Apple at distance 0, got %+v", neighbors)
	}

	neighbors, err = idx.Search([]float32{9, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("expected 3 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].Row != 1 || math.Abs(neighbors[0].Distance-1) > 1e-6 {
		t.Fatalf("expected Orange at distance 1 first, got %+v", neighbors[0])
	}
	for i := 1; i < len(neighbors); i++ {
		if neighbors[i].Distance < neighbors[i-1].Distance {
			t.Fatalf("neighbors not ascending: %+v", neighbors)
		}
	}
}

func TestSearchEdgeCases(t *testing.T) {
	idx := mustBuild(t)

	neighbors, err := idx.Search([]float32{0, 0}, 0)
	if err != nil || len(neighbors) != 0 {
		t.Fatalf("k=0: got %v, %v", neighbors, err)
	}

	_, err = idx.Search([]float32{0, 0, 0}, 1)
	if !domain.IsKind(err, domain.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}
