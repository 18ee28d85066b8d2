package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// CSVFile reads a comma-separated catalog with a product_id,product_name,price header.
type CSVFile struct {
	path string
}

var _ ports.CatalogSource = (*CSVFile)(nil)

func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

func (s *CSVFile) Load(_ context.Context) ([]domain.CatalogEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse catalog csv", err)
	}
	return parseRows(records)
}
