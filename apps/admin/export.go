package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kcci/portal/core"
)

const dateLayout = "2006-01-02"

func (cli *commandLine) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export finance reports as xlsx workbooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.PersistentFlags().StringVarP(&out, "out", "o", "", "the output file")

	var from, to string
	dashboard := &cobra.Command{
		Use:   "dashboard",
		Short: "Export the finance dashboard of a period (defaults to the current year)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				_ = cmd.Usage()
				return errHelp
			}
			start, err := parseDate(from)
			if err != nil {
				return errors.Wrap(err, "parsing --from")
			}
			end, err := parseDate(to)
			if err != nil {
				return errors.Wrap(err, "parsing --to")
			}
			return cli.exportTo(out, func(w io.Writer) error {
				return cli.finSvc.ExportDashboard(cmd.Context(), start, end, w)
			})
		},
	}
	dashboard.Flags().StringVar(&from, "from", "", "first day of the period (YYYY-MM-DD)")
	dashboard.Flags().StringVar(&to, "to", "", "last day of the period (YYYY-MM-DD)")

	settlement := &cobra.Command{
		Use:   "settlement ID",
		Short: "Export the statement of a settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" || len(args) != 1 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.exportSettlement(cmd.Context(), args[0], out)
		},
	}

	cmd.AddCommand(dashboard, settlement)
	return cmd
}

func (cli *commandLine) exportSettlement(ctx context.Context, id, path string) error {
	return cli.exportTo(path, func(w io.Writer) error {
		return cli.finSvc.ExportSettlement(ctx, id, w)
	})
}

// exportTo writes the workbook to path. The file is removed if the export fails.
func (cli *commandLine) exportTo(path string, export func(w io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	if err = export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return err
	}
	if err = file.Close(); err != nil {
		return errors.Wrap(err, "closing output file")
	}
	cli.logger.Info("exported " + path)
	return nil
}

func parseDate(val string) (time.Time, error) {
	val = core.CleanString(val)
	if val == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, val)
}
