package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/receipt-assistant/internal/core/ports"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/catalog/source"
)

func newImportCommand(deps Deps) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "import [file.csv|file.xlsx]",
		Short: "Replace the Postgres products table with a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Importer == nil {
				return errors.New("product store not configured")
			}

			var src ports.CatalogSource
			switch strings.ToLower(filepath.Ext(args[0])) {
			case ".csv":
				src = source.NewCSVFile(args[0])
			case ".xlsx":
				src = source.NewSpreadsheet(args[0], sheet)
			default:
				return fmt.Errorf("unsupported file type %q", filepath.Ext(args[0]))
			}

			entries, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}
			importer, release, err := deps.Importer(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if err := importer.ReplaceAll(cmd.Context(), entries); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			cmd.Printf("Imported %d products\n", len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name (default: first sheet)")
	return cmd
}
