package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// ProductRepository serves the products table as a catalog source.
type ProductRepository struct {
	db *sql.DB
}

var _ ports.CatalogSource = (*ProductRepository)(nil)

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ProductRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent imports.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS products (
	product_id TEXT PRIMARY KEY,
	product_name TEXT NOT NULL,
	price NUMERIC(12, 2) NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Load returns every product ordered by product_id, so rebuilds are reproducible.
func (r *ProductRepository) Load(ctx context.Context) ([]domain.CatalogEntry, error) {
	const query = `
SELECT product_id, product_name, price::float8
FROM products
ORDER BY product_id
`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.CatalogEntry, 0)
	for rows.Next() {
		var entry domain.CatalogEntry
		if err := rows.Scan(&entry.ProductID, &entry.ProductName, &entry.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return entries, nil
}

// ReplaceAll swaps the table contents for entries in a single transaction.
func (r *ProductRepository) ReplaceAll(ctx context.Context, entries []domain.CatalogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}

	const insert = `
INSERT INTO products (product_id, product_name, price, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (product_id) DO UPDATE SET
	product_name = EXCLUDED.product_name,
	price = EXCLUDED.price,
	updated_at = EXCLUDED.updated_at
`
	now := time.Now().UTC()
	for _, entry := range entries {
		if entry.ProductID == "" {
			return domain.WrapError(domain.ErrInvalidInput, "import products",
				fmt.Errorf("product %q has no product_id", entry.ProductName))
		}
		if _, err := tx.ExecContext(ctx, insert, entry.ProductID, entry.ProductName, entry.Price, now); err != nil {
			return fmt.Errorf("insert product %s: %w", entry.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}
	return nil
}
