package domain

import "time"

// CatalogEntry is one known product. Its position in the catalog is the row
// index shared by the vector index and the metadata table.
type CatalogEntry struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
}

type Neighbor struct {
	Row      int     `json:"row"`
	Distance float64 `json:"distance"`
}

type BuildReport struct {
	Rows       int           `json:"rows"`
	Skipped    int           `json:"skipped"`
	Dims       int           `json:"dims"`
	EmbedModel string        `json:"embed_model"`
	Dir        string        `json:"dir,omitempty"`
	Duration   time.Duration `json:"duration"`
	BuiltAt    time.Time     `json:"built_at"`
}

type CatalogStatus struct {
	Available  bool   `json:"available"`
	Rows       int    `json:"rows"`
	Dims       int    `json:"dims"`
	EmbedModel string `json:"embed_model,omitempty"`
}
