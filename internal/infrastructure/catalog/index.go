// Package catalog holds the product catalog index: an HNSW graph over product
// name embeddings paired with the metadata rows it points at.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/coder/hnsw"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// minCandidates is the smallest candidate pool pulled from the graph before
// exact re-ranking.
const minCandidates = 16

// DefaultExactSearchLimit is the largest catalog Search scans row by row.
// Larger catalogs walk the HNSW graph, which is approximate.
const DefaultExactSearchLimit = 50000

// Index is immutable once built. Row i of the graph is entries[i] and vectors[i].
type Index struct {
	graph      *hnsw.Graph[int]
	entries    []domain.CatalogEntry
	vectors    [][]float32
	dims       int
	model      string
	builtAt    time.Time
	exactLimit int
}

var _ ports.CatalogIndex = (*Index)(nil)

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(1))
	return g
}

// WithExactSearchLimit returns a copy of the index that scans every row when
// it holds at most limit rows and walks the graph otherwise. A negative limit
// always walks the graph.
func (i *Index) WithExactSearchLimit(limit int) *Index {
	cp := *i
	cp.exactLimit = limit
	return &cp
}

// Build embeds every entry name in one batch and inserts vector i for entry i.
// Entries with an empty name are skipped.
func Build(ctx context.Context, entries []domain.CatalogEntry, embedder ports.Embedder) (*Index, domain.BuildReport, error) {
	started := time.Now()
	report := domain.BuildReport{EmbedModel: embedder.ModelName()}

	kept := make([]domain.CatalogEntry, 0, len(entries))
	for i, entry := range entries {
		entry.ProductName = strings.TrimSpace(entry.ProductName)
		entry.ProductID = strings.TrimSpace(entry.ProductID)
		if entry.ProductName == "" {
			report.Skipped++
			slog.Warn("catalog_entry_skipped", "position", i, "product_id", entry.ProductID, "reason", "empty product name")
			continue
		}
		kept = append(kept, entry)
	}

	idx := &Index{
		graph:      newGraph(),
		entries:    kept,
		model:      embedder.ModelName(),
		exactLimit: DefaultExactSearchLimit,
	}
	if len(kept) > 0 {
		names := make([]string, len(kept))
		for i, entry := range kept {
			names[i] = entry.ProductName
		}
		vectors, err := embedder.Embed(ctx, names)
		if err != nil {
			return nil, report, fmt.Errorf("embed catalog names: %w", err)
		}
		if len(vectors) != len(kept) {
			return nil, report, domain.WrapError(domain.ErrShape, "embed catalog names",
				fmt.Errorf("got %d vectors for %d names", len(vectors), len(kept)))
		}

		dims := len(vectors[0])
		if dims == 0 {
			return nil, report, domain.WrapError(domain.ErrShape, "embed catalog names", fmt.Errorf("empty vector"))
		}
		nodes := make([]hnsw.Node[int], len(vectors))
		for i, vec := range vectors {
			if len(vec) != dims {
				return nil, report, domain.WrapError(domain.ErrShape, "embed catalog names",
					fmt.Errorf("row %d has %d dims, want %d", i, len(vec), dims))
			}
			nodes[i] = hnsw.MakeNode(i, vec)
		}
		idx.graph.Add(nodes...)
		idx.vectors = vectors
		idx.dims = dims
	}

	idx.builtAt = time.Now().UTC()
	report.Rows = len(kept)
	report.Dims = idx.dims
	report.BuiltAt = idx.builtAt
	report.Duration = time.Since(started)
	return idx, report, nil
}

// Search returns up to k neighbors ascending by Euclidean distance, ties by row.
func (i *Index) Search(query []float32, k int) ([]domain.Neighbor, error) {
	if k <= 0 || len(i.entries) == 0 {
		return []domain.Neighbor{}, nil
	}
	if len(query) != i.dims {
		return nil, domain.WrapError(domain.ErrShape, "catalog search",
			fmt.Errorf("query has %d dims, index has %d", len(query), i.dims))
	}

	var neighbors []domain.Neighbor
	if i.Exact() {
		neighbors = i.scan(query)
	} else {
		neighbors = i.walk(query, max(k, minCandidates))
	}
	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Distance == neighbors[b].Distance {
			return neighbors[a].Row < neighbors[b].Row
		}
		return neighbors[a].Distance < neighbors[b].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Exact reports whether Search scans every row instead of walking the graph.
func (i *Index) Exact() bool {
	return len(i.vectors) <= i.exactLimit
}

func (i *Index) scan(query []float32) []domain.Neighbor {
	neighbors := make([]domain.Neighbor, len(i.vectors))
	for row, vec := range i.vectors {
		neighbors[row] = domain.Neighbor{Row: row, Distance: l2(query, vec)}
	}
	return neighbors
}

// walk pulls a candidate pool from the graph and re-scores it exactly.
func (i *Index) walk(query []float32, pool int) []domain.Neighbor {
	nodes := i.graph.Search(query, pool)
	neighbors := make([]domain.Neighbor, 0, len(nodes))
	for _, node := range nodes {
		if node.Key < 0 || node.Key >= len(i.vectors) {
			continue
		}
		neighbors = append(neighbors, domain.Neighbor{
			Row:      node.Key,
			Distance: l2(query, i.vectors[node.Key]),
		})
	}
	return neighbors
}

func (i *Index) Entry(row int) (domain.CatalogEntry, bool) {
	if row < 0 || row >= len(i.entries) {
		return domain.CatalogEntry{}, false
	}
	return i.entries[row], true
}

func (i *Index) Names() []string {
	names := make([]string, len(i.entries))
	for n, entry := range i.entries {
		names[n] = entry.ProductName
	}
	return names
}

func (i *Index) Len() int           { return len(i.entries) }
func (i *Index) Dims() int          { return i.dims }
func (i *Index) Model() string      { return i.model }
func (i *Index) BuiltAt() time.Time { return i.builtAt }

func l2(a, b []float32) float64 {
	var sum float64
	for n := range a {
		d := float64(a[n]) - float64(b[n])
		sum += d * d
	}
	return math.Sqrt(sum)
}
