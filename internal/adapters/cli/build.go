package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBuildCommand(deps Deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the catalog index from the configured source",
		Long: `Reads every product from CATALOG_SOURCE, embeds the names and writes the
vector and metadata artifacts into CATALOG_DIR in one step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Builder == nil {
				return errors.New("catalog builder not configured")
			}
			builder, release, err := deps.Builder(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			report, err := builder.Rebuild(cmd.Context())
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal report: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Printf("Indexed %d products (%d skipped), %d dims, model %s, in %s\n",
				report.Rows, report.Skipped, report.Dims, report.EmbedModel, report.Duration.Round(time.Millisecond))
			cmd.Printf("Artifacts written to %s\n", report.Dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the build report as JSON")
	return cmd
}
