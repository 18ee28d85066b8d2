package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// ReloadObserver receives the outcome of every reload.
type ReloadObserver interface {
	ObserveCatalogReload(status string, rows int)
}

// Holder publishes the current index to concurrent readers. Swaps are atomic;
// an in-flight request keeps the index it started with.
type Holder struct {
	dir        string
	model      string
	exactLimit int
	current    atomic.Pointer[Index]
	observer   ReloadObserver
}

var (
	_ ports.CatalogProvider = (*Holder)(nil)
	_ ports.CatalogReloader = (*Holder)(nil)
)

func NewHolder(dir, model string, observer ReloadObserver) *Holder {
	return &Holder{dir: dir, model: model, exactLimit: DefaultExactSearchLimit, observer: observer}
}

// SetExactSearchLimit applies to indexes loaded by later reloads. Call it
// before the first Reload.
func (h *Holder) SetExactSearchLimit(limit int) {
	h.exactLimit = limit
}

// Current returns nil when no index is loaded.
func (h *Holder) Current() ports.CatalogIndex {
	idx := h.current.Load()
	if idx == nil {
		return nil
	}
	return idx
}

func (h *Holder) Swap(idx *Index) {
	h.current.Store(idx)
}

// Reload loads the artifacts from disk and swaps them in. On failure the
// current index stays in place.
func (h *Holder) Reload(ctx context.Context) error {
	idx, err := Load(ctx, h.dir, h.model)
	if err != nil {
		slog.Warn("catalog_unavailable", "dir", h.dir, "error", err.Error(), "kept_previous", h.current.Load() != nil)
		h.observe("failed", 0)
		return err
	}
	idx = idx.WithExactSearchLimit(h.exactLimit)
	h.Swap(idx)
	slog.Info("catalog_loaded", "dir", h.dir, "rows", idx.Len(), "dims", idx.Dims(), "embed_model", idx.Model(), "exact_search", idx.Exact())
	h.observe("ok", idx.Len())
	return nil
}

func (h *Holder) Status() domain.CatalogStatus {
	idx := h.current.Load()
	if idx == nil {
		return domain.CatalogStatus{}
	}
	return domain.CatalogStatus{
		Available:  true,
		Rows:       idx.Len(),
		Dims:       idx.Dims(),
		EmbedModel: idx.Model(),
	}
}

func (h *Holder) observe(status string, rows int) {
	if h.observer != nil {
		h.observer.ObserveCatalogReload(status, rows)
	}
}
