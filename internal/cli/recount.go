package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"contaportal/internal/app"
)

// NewRecountCommand creates the recount command.
func NewRecountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Recompute every client's pending document counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App) error {
				fixed, err := a.Audit.RebuildCounters(cmd.Context())
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]int{"fixed": fixed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d counter(s) corrected\n", fixed)
				return nil
			})
		},
	}
}
