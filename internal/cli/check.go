package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"contaportal/internal/app"
)

// ErrInconsistent is returned by check when any rule is violated.
var ErrInconsistent = errors.New("collections are inconsistent")

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report consistency violations in the stored collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App) error {
				violations := a.Audit.Check()
				out := cmd.OutOrStdout()
				if rootOpts.Format == "json" {
					if err := writeJSON(out, violations); err != nil {
						return err
					}
				} else {
					for _, v := range violations {
						fmt.Fprintf(out, "%-22s %s  %s\n", v.Rule, v.Subject, v.Message)
					}
					if len(violations) == 0 {
						fmt.Fprintln(out, "ok")
					}
				}
				if len(violations) > 0 {
					return fmt.Errorf("%w: %d violation(s)", ErrInconsistent, len(violations))
				}
				return nil
			})
		},
	}
}
