package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"contaportal/internal/app"
	"contaportal/internal/export"
	"contaportal/internal/store"
)

type exportOptions struct {
	kind string // "xlsx" | "csv"
	out  string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <accountant-email-or-id>",
		Short: "Export an accountant's clients, documents and obligations",
		Long: `Export the portfolio an accountant sees.

xlsx writes a workbook with Clients, Documents and Obligations sheets; csv
writes the documents only. Use --out - to write to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.kind != "xlsx" && opts.kind != "csv" {
				return fmt.Errorf("invalid --type %q: must be xlsx or csv", opts.kind)
			}
			return withApp(cmd, rootOpts, func(a *app.App) error {
				return runExport(cmd, a, args[0], opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.kind, "type", "xlsx", "file type (xlsx|csv)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output path (default: <accountant>_<date>.<type>)")

	return cmd
}

func runExport(cmd *cobra.Command, a *app.App, ref string, opts *exportOptions) error {
	accountant, err := resolveAccountant(a, ref)
	if err != nil {
		return err
	}

	var report export.Report
	err = a.Store.View(func(st *store.State) error {
		report, err = export.NewReport(st, accountant.ID, time.Now().UTC())
		return err
	})
	if err != nil {
		return err
	}

	path := opts.out
	if path == "" {
		path = export.BuildFilename(accountant.Name, report.GeneratedAt, opts.kind)
	}

	var w io.Writer = cmd.OutOrStdout()
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	write := export.WriteReportXLSX
	if opts.kind == "csv" {
		write = export.WriteReportCSV
	}
	if err := write(w, report); err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d clients, %d documents)\n", path, len(report.Clients), len(report.Documents))
	}
	return nil
}
