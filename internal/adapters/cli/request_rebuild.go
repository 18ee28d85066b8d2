package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newRequestRebuildCommand(deps Deps) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "request-rebuild",
		Short: "Ask a worker to rebuild the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.RebuildRequester == nil {
				return errors.New("events are disabled; set EVENTS_ENABLED=true")
			}
			requester, release, err := deps.RebuildRequester()
			if err != nil {
				return err
			}
			defer release()

			if err := requester.RequestCatalogRebuild(cmd.Context(), reason); err != nil {
				return err
			}
			cmd.Println("Rebuild requested.")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded with the request")
	return cmd
}
