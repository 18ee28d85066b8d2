package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

const (
	VectorsFile  = "catalog.hnsw"
	MetadataFile = "catalog.db"
)

const schema = `
CREATE TABLE products (
	row_index    INTEGER PRIMARY KEY,
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL,
	price        REAL NOT NULL
);
CREATE TABLE manifest (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	dims           INTEGER NOT NULL,
	rows           INTEGER NOT NULL,
	embed_model    TEXT NOT NULL,
	vectors_sha256 TEXT NOT NULL,
	built_at       TEXT NOT NULL
);`

// Manifest describes a persisted artifact pair.
type Manifest struct {
	Dims          int
	Rows          int
	EmbedModel    string
	VectorsSHA256 string
	BuiltAt       time.Time
}

// Save writes both artifacts into a staging directory next to dir and then
// renames it over dir, so readers never see one file without the other.
func Save(ctx context.Context, dir string, idx *Index) error {
	if idx == nil {
		return errors.New("save catalog: nil index")
	}
	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create catalog parent dir: %w", err)
	}

	staging, err := os.MkdirTemp(parent, ".catalog-staging-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	var graph bytes.Buffer
	if err := idx.graph.Export(&graph); err != nil {
		return fmt.Errorf("export catalog graph: %w", err)
	}
	sum := sha256.Sum256(graph.Bytes())
	if err := os.WriteFile(filepath.Join(staging, VectorsFile), graph.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", VectorsFile, err)
	}

	manifest := Manifest{
		Dims:          idx.dims,
		Rows:          len(idx.entries),
		EmbedModel:    idx.model,
		VectorsSHA256: hex.EncodeToString(sum[:]),
		BuiltAt:       idx.builtAt,
	}
	if err := writeMetadata(ctx, filepath.Join(staging, MetadataFile), idx.entries, manifest); err != nil {
		return err
	}

	return swapDir(staging, dir)
}

func writeMetadata(ctx context.Context, path string, entries []domain.CatalogEntry, manifest Manifest) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open metadata db: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create metadata schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO products (row_index, product_id, product_name, price) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare product insert: %w", err)
	}
	defer stmt.Close()

	for row, entry := range entries {
		if _, err := stmt.ExecContext(ctx, row, entry.ProductID, entry.ProductName, entry.Price); err != nil {
			return fmt.Errorf("insert product row %d: %w", row, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO manifest (id, dims, rows, embed_model, vectors_sha256, built_at) VALUES (1, ?, ?, ?, ?, ?)`,
		manifest.Dims, manifest.Rows, manifest.EmbedModel, manifest.VectorsSHA256, manifest.BuiltAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}
	return tx.Commit()
}

func swapDir(staging, dir string) error {
	previous := ""
	if _, err := os.Stat(dir); err == nil {
		previous = dir + ".previous-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		if err := os.Rename(dir, previous); err != nil {
			return fmt.Errorf("move previous catalog aside: %w", err)
		}
	}
	if err := os.Rename(staging, dir); err != nil {
		if previous != "" {
			_ = os.Rename(previous, dir)
		}
		return fmt.Errorf("publish catalog dir: %w", err)
	}
	if previous != "" {
		_ = os.RemoveAll(previous)
	}
	return nil
}

// Load reads the artifact pair from dir. Missing, unreadable or inconsistent
// artifacts yield ErrIndexUnavailable. A non-empty model must match the model
// the artifacts were built with.
func Load(ctx context.Context, dir, model string) (*Index, error) {
	vectorsPath := filepath.Join(dir, VectorsFile)
	metadataPath := filepath.Join(dir, MetadataFile)

	graphBytes, err := os.ReadFile(vectorsPath)
	if err != nil {
		return nil, unavailable("read vectors", err)
	}
	if _, err := os.Stat(metadataPath); err != nil {
		return nil, unavailable("stat metadata", err)
	}

	manifest, entries, err := readMetadata(ctx, metadataPath)
	if err != nil {
		return nil, unavailable("read metadata", err)
	}

	sum := sha256.Sum256(graphBytes)
	if hex.EncodeToString(sum[:]) != manifest.VectorsSHA256 {
		return nil, unavailable("verify vectors", errors.New("checksum does not match manifest"))
	}
	if len(entries) != manifest.Rows {
		return nil, unavailable("verify metadata", fmt.Errorf("manifest lists %d rows, table has %d", manifest.Rows, len(entries)))
	}
	if model != "" && manifest.EmbedModel != model {
		return nil, unavailable("verify embed model",
			fmt.Errorf("catalog built with %q, running %q", manifest.EmbedModel, model))
	}

	graph := newGraph()
	if len(entries) > 0 {
		if err := graph.Import(bytes.NewReader(graphBytes)); err != nil {
			return nil, unavailable("import vectors", err)
		}
	}
	if graph.Len() != len(entries) {
		return nil, unavailable("verify vectors", fmt.Errorf("graph has %d nodes, metadata has %d rows", graph.Len(), len(entries)))
	}
	vectors := make([][]float32, len(entries))
	for row := range entries {
		vec, ok := graph.Lookup(row)
		if !ok {
			return nil, unavailable("verify vectors", fmt.Errorf("graph has no vector for row %d", row))
		}
		if len(vec) != manifest.Dims {
			return nil, unavailable("verify vectors", fmt.Errorf("row %d has %d dims, manifest says %d", row, len(vec), manifest.Dims))
		}
		vectors[row] = vec
	}

	return &Index{
		graph:      graph,
		entries:    entries,
		vectors:    vectors,
		dims:       manifest.Dims,
		model:      manifest.EmbedModel,
		builtAt:    manifest.BuiltAt,
		exactLimit: DefaultExactSearchLimit,
	}, nil
}

// ReadManifest returns the manifest of a persisted catalog without loading the graph.
func ReadManifest(ctx context.Context, dir string) (Manifest, error) {
	path := filepath.Join(dir, MetadataFile)
	if _, err := os.Stat(path); err != nil {
		return Manifest{}, unavailable("stat metadata", err)
	}
	db, err := openReadOnly(path)
	if err != nil {
		return Manifest{}, unavailable("open metadata", err)
	}
	defer db.Close()

	manifest, err := queryManifest(ctx, db)
	if err != nil {
		return Manifest{}, unavailable("read manifest", err)
	}
	return manifest, nil
}

func openReadOnly(path string) (*sql.DB, error) {
	return sql.Open("sqlite", "file:"+path+"?mode=ro")
}

func readMetadata(ctx context.Context, path string) (Manifest, []domain.CatalogEntry, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return Manifest{}, nil, err
	}
	defer db.Close()

	manifest, err := queryManifest(ctx, db)
	if err != nil {
		return Manifest{}, nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT row_index, product_id, product_name, price FROM products ORDER BY row_index`)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.CatalogEntry, 0, manifest.Rows)
	for rows.Next() {
		var (
			row   int
			entry domain.CatalogEntry
		)
		if err := rows.Scan(&row, &entry.ProductID, &entry.ProductName, &entry.Price); err != nil {
			return Manifest{}, nil, fmt.Errorf("scan product: %w", err)
		}
		if row != len(entries) {
			return Manifest{}, nil, fmt.Errorf("product rows are not dense at row %d", row)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return Manifest{}, nil, fmt.Errorf("iterate products: %w", err)
	}
	return manifest, entries, nil
}

func queryManifest(ctx context.Context, db *sql.DB) (Manifest, error) {
	var (
		manifest Manifest
		builtAt  string
	)
	err := db.QueryRowContext(ctx,
		`SELECT dims, rows, embed_model, vectors_sha256, built_at FROM manifest WHERE id = 1`,
	).Scan(&manifest.Dims, &manifest.Rows, &manifest.EmbedModel, &manifest.VectorsSHA256, &builtAt)
	if err != nil {
		return Manifest{}, fmt.Errorf("query manifest: %w", err)
	}
	manifest.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt)
	if err != nil {
		return Manifest{}, fmt.Errorf("parse built_at: %w", err)
	}
	return manifest, nil
}

func unavailable(operation string, err error) error {
	return domain.WrapError(domain.ErrIndexUnavailable, operation, err)
}
