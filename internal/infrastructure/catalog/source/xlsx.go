package source

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// Spreadsheet reads catalog rows from one sheet of an .xlsx workbook.
// An empty sheet name means the first sheet.
type Spreadsheet struct {
	path  string
	sheet string
}

var _ ports.CatalogSource = (*Spreadsheet)(nil)

func NewSpreadsheet(path, sheet string) *Spreadsheet {
	return &Spreadsheet{path: path, sheet: sheet}
}

func (s *Spreadsheet) Load(_ context.Context) ([]domain.CatalogEntry, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read catalog workbook", fmt.Errorf("no sheets found"))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read catalog sheet "+sheet, err)
	}
	return parseRows(rows)
}
