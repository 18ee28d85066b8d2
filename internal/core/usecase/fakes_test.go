package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

type embedderFake struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no fake vector for %q", text)
		}
		out = append(out, vec)
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

func (f *embedderFake) ModelName() string { return "fake-embed" }

type catalogIndexFake struct {
	entries []domain.CatalogEntry
	vectors [][]float32
}

func (f *catalogIndexFake) Search(query []float32, k int) ([]domain.Neighbor, error) {
	if len(f.vectors) > 0 && len(query) != len(f.vectors[0]) {
		return nil, domain.WrapError(domain.ErrShape, "fake search", errors.New("dims"))
	}
	out := make([]domain.Neighbor, 0, len(f.vectors))
	for row, vec := range f.vectors {
		var sum float64
		for i := range vec {
			d := float64(vec[i]) - float64(query[i])
			sum += d * d
		}
		out = append(out, domain.Neighbor{Row: row, Distance: math.Sqrt(sum)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func (f *catalogIndexFake) Entry(row int) (domain.CatalogEntry, bool) {
	if row < 0 || row >= len(f.entries) {
		return domain.CatalogEntry{}, false
	}
	return f.entries[row], true
}

func (f *catalogIndexFake) Names() []string {
	names := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		names = append(names, e.ProductName)
	}
	return names
}

func (f *catalogIndexFake) Len() int      { return len(f.entries) }
func (f *catalogIndexFake) Dims() int     { return 2 }
func (f *catalogIndexFake) Model() string { return "fake-embed" }

type providerFake struct {
	index ports.CatalogIndex
}

func (p providerFake) Current() ports.CatalogIndex { return p.index }

type generatorFake struct {
	response string
	err      error
	prompt   string
	calls    int
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// fruitCatalog places Apple at the origin and Orange far along the x axis.
func fruitCatalog() *catalogIndexFake {
	return &catalogIndexFake{
		entries: []domain.CatalogEntry{
			{ProductID: "1", ProductName: "Apple", Price: 5},
			{ProductID: "2", ProductName: "Orange", Price: 3},
		},
		vectors: [][]float32{{0, 0}, {10, 0}},
	}
}

func fruitEmbedder() *embedderFake {
	return &embedderFake{vectors: map[string][]float32{
		"Apple":   {0, 0},
		"Appel":   {0.3, 0},
		"Orange":  {10, 0},
		"Unknown": {5, 5},
		"Edge":    {1, 0},
		"Almost":  {0.999, 0},
	}}
}
