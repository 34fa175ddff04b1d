package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"contaportal/internal/app"
)

// NewClientsCommand creates the clients command.
func NewClientsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clients <accountant-email-or-id>",
		Short: "List an accountant's client records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App) error {
				accountant, err := resolveAccountant(a, args[0])
				if err != nil {
					return err
				}
				clients := a.Sync.ClientsForAccountant(accountant.ID)
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), clients)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "COMPANY\tEMAIL\tSTATUS\tPENDING")
				for _, c := range clients {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.CompanyName, c.Email, c.Status, c.PendingDocumentCount)
				}
				return tw.Flush()
			})
		},
	}
}
