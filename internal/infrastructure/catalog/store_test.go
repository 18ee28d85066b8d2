package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	idx := mustBuild(t)

	if err := Save(context.Background(), dir, idx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(context.Background(), dir, "test-embed")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 3 || loaded.Dims() != 2 || loaded.Model() != "test-embed" {
		t.Fatalf("unexpected loaded index: len=%d dims=%d model=%q", loaded.Len(), loaded.Dims(), loaded.Model())
	}

	neighbors, err := loaded.Search([]float32{0, 0}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].Row != 0 || neighbors[0].Distance > 1e-6 {
		t.Fatalf("expected Apple at row 0, got %+v", neighbors)
	}
	entry, ok := loaded.Entry(neighbors[0].Row)
	if !ok || entry.ProductID != "1" || entry.Price != 5 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestSaveReplacesExistingCatalog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	if err := Save(context.Background(), dir, mustBuild(t)); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	smaller, _, err := Build(context.Background(), fruitEntries()[:1], fruitEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := Save(context.Background(), dir, smaller); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := Load(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("expected replaced catalog with 1 row, got %d", loaded.Len())
	}

	siblings, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(siblings) != 1 {
		t.Fatalf("expected staging dirs to be cleaned up, found %d entries", len(siblings))
	}
}

func TestLoadMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(context.Background(), dir, ""); !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable for empty dir, got %v", err)
	}

	catalogDir := filepath.Join(dir, "catalog")
	if err := Save(context.Background(), catalogDir, mustBuild(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.Remove(filepath.Join(catalogDir, MetadataFile)); err != nil {
		t.Fatalf("remove metadata: %v", err)
	}
	if _, err := Load(context.Background(), catalogDir, ""); !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable without metadata, got %v", err)
	}
}

func TestLoadRejectsTamperedVectors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	if err := Save(context.Background(), dir, mustBuild(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	path := filepath.Join(dir, VectorsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vectors: %v", err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write vectors: %v", err)
	}

	if _, err := Load(context.Background(), dir, ""); !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestLoadRejectsDifferentEmbedModel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	if err := Save(context.Background(), dir, mustBuild(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := Load(context.Background(), dir, "other-model"); !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestReadManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	if err := Save(context.Background(), dir, mustBuild(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	manifest, err := ReadManifest(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if manifest.Rows != 3 || manifest.Dims != 2 || manifest.EmbedModel != "test-embed" || len(manifest.VectorsSHA256) != 64 {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
}
