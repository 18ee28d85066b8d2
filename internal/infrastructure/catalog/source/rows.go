// Package source reads catalog entries from tabular files.
package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

var columnAliases = map[string][]string{
	"product_id":   {"product_id", "id", "sku"},
	"product_name": {"product_name", "name", "product"},
	"price":        {"price", "unit_price", "price_per_unit"},
}

type columns struct {
	id, name, price int
}

func findColumns(header []string) (columns, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}
	lookup := func(column string) int {
		for _, alias := range columnAliases[column] {
			if pos, ok := positions[alias]; ok {
				return pos
			}
		}
		return -1
	}

	cols := columns{id: lookup("product_id"), name: lookup("product_name"), price: lookup("price")}
	var missing []string
	if cols.id < 0 {
		missing = append(missing, "product_id")
	}
	if cols.name < 0 {
		missing = append(missing, "product_name")
	}
	if cols.price < 0 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return columns{}, domain.WrapError(domain.ErrInvalidInput, "read catalog header",
			fmt.Errorf("missing columns: %s", strings.Join(missing, ", ")))
	}
	return cols, nil
}

// parseRows turns a header row plus data rows into catalog entries. Blank rows
// are skipped; line numbers in errors are 1-based and count the header.
func parseRows(records [][]string) ([]domain.CatalogEntry, error) {
	if len(records) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read catalog", fmt.Errorf("no header row"))
	}
	cols, err := findColumns(records[0])
	if err != nil {
		return nil, err
	}

	entries := make([]domain.CatalogEntry, 0, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		if blank(record) {
			continue
		}
		priceText := strings.TrimSpace(cell(record, cols.price))
		price := 0.0
		if priceText != "" {
			price, err = strconv.ParseFloat(strings.ReplaceAll(priceText, ",", "."), 64)
			if err != nil {
				return nil, domain.WrapError(domain.ErrInvalidInput, "read catalog",
					fmt.Errorf("line %d: bad price %q", line, priceText))
			}
		}
		entries = append(entries, domain.CatalogEntry{
			ProductID:   strings.TrimSpace(cell(record, cols.id)),
			ProductName: strings.TrimSpace(cell(record, cols.name)),
			Price:       price,
		})
	}
	return entries, nil
}

func cell(record []string, pos int) string {
	if pos < 0 || pos >= len(record) {
		return ""
	}
	return record[pos]
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
