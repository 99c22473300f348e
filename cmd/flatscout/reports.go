package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/report"
)

// NewReportsCmd creates the reports command and its subcommands.
func NewReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "List, show, export, delete and import archived reports",
		Long: `Reports manages the archive of finished searches.

Examples:
  # List archived reports, most recent first
  flatscout reports list

  # Print a report as Markdown
  flatscout reports show <id> -f md

  # Export a report; you are asked where to save it
  flatscout reports export <id> -f json

  # Import a JSON export from another machine
  flatscout reports import flatscout-report-2026-10-19_14-05.json`,
	}

	cmd.AddCommand(newReportsListCmd())
	cmd.AddCommand(newReportsShowCmd())
	cmd.AddCommand(newReportsExportCmd())
	cmd.AddCommand(newReportsDeleteCmd())
	cmd.AddCommand(newReportsImportCmd())
	return cmd
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newReportsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reports, err := a.store.List(ctx)
				if err != nil {
					return err
				}
				printReportList(cmd.OutOrStdout(), reports)
				return nil
			})
		},
	}
}

func printReportList(w io.Writer, reports []model.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports archived yet. Run 'flatscout search' to create one.")
		return
	}
	fmt.Fprintf(w, "Reports (%d):\n\n", len(reports))
	fmt.Fprintf(w, "  %-36s  %-16s  %-9s  %-5s  %7s  %s\n", "ID", "Date", "Status", "Mode", "Matches", "Websites")
	for _, r := range reports {
		exact, extended := r.CountByType()
		fmt.Fprintf(w, "  %-36s  %-16s  %-9s  %-5s  %7s  %d\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			r.SearchMode,
			fmt.Sprintf("%d/%d", exact, extended),
			len(r.WebsitesChecked),
		)
	}
	fmt.Fprintln(w, "\nMatches are shown as exact/extended.")
}

func newReportsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFlag(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				r, err := a.store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				w, err := report.NewWriter(format, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				_, err = w.Write(r)
				return err
			})
		},
	}
	cmd.Flags().StringP("format", "f", "txt", "Report format: txt, md or json")
	return cmd
}

func newReportsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export an archived report to a file",
		Long: `Export writes a report to a file.

Without --output you are asked for the destination; press Enter to accept
the suggested file name or answer "n" to cancel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFlag(cmd)
			if err != nil {
				return err
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}

			var dest report.Destination = report.PromptDestination{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
			if output != "" {
				dest = report.FixedDestination(output)
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				path, err := report.Export(ctx, a.store, args[0], dest, format)
				if errors.Is(err, report.ErrCancelled) {
					fmt.Fprintln(cmd.OutOrStdout(), "Export cancelled.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report exported to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringP("format", "f", "txt", "Export format: txt, md or json")
	cmd.Flags().StringP("output", "o", "", "Destination file or directory")
	return cmd
}

func newReportsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %s\n", args[0])
				return nil
			})
		},
	}
}

func newReportsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON report export into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open report: %w", err)
			}
			defer f.Close()

			r, err := report.Decode(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Append(ctx, r); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported report %s (%d matches)\n", r.ID, len(r.Matches))
				return nil
			})
		},
	}
}
