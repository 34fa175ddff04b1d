package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"contaportal/internal/app"
	"contaportal/internal/service"
)

type inviteOptions struct {
	company  string
	taxID    string
	contact  string
	deadline string
}

// NewInviteCommand creates the invite command.
func NewInviteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &inviteOptions{}

	cmd := &cobra.Command{
		Use:   "invite <accountant-email-or-id> <client-email>",
		Short: "Add a client to an accountant's portfolio and send the invitation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := service.InviteClientInput{
				CompanyName:   opts.company,
				TaxID:         opts.taxID,
				ContactPerson: opts.contact,
				Email:         args[1],
			}
			if opts.deadline != "" {
				d, err := time.Parse("2006-01-02", opts.deadline)
				if err != nil {
					return fmt.Errorf("invalid --deadline: %w", err)
				}
				input.NextDeadline = &d
			}

			return withApp(cmd, rootOpts, func(a *app.App) error {
				accountant, err := resolveAccountant(a, args[0])
				if err != nil {
					return err
				}
				rec, err := a.Sync.InviteClient(cmd.Context(), accountant.ID, input)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", rec.ID, rec.CompanyName, rec.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.company, "company", "", "company name (required)")
	cmd.Flags().StringVar(&opts.taxID, "tax-id", "", "company tax id")
	cmd.Flags().StringVar(&opts.contact, "contact", "", "contact person")
	cmd.Flags().StringVar(&opts.deadline, "deadline", "", "next deadline (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}
