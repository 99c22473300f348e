package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/report"
	"github.com/flatscout/flatscout/internal/session"
)

// statusPollInterval is how often the search command polls the session.
const statusPollInterval = 400 * time.Millisecond

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search listing websites for the addresses in your address book",
		Long: `Search visits the selected websites concurrently and matches every listing
against the addresses in your address book.

Progress is printed while the search runs. Press Ctrl+C to stop early; the
matches found so far are kept and archived as a stopped report.

Examples:
  # Quick search of the default websites
  flatscout search

  # Full search of two websites, exact matches only
  flatscout search --mode full --match exact -w wg-gesucht,immowelt

  # Save the report as Markdown
  flatscout search -f md -o report.md`,
		Args: cobra.NoArgs,
		RunE: runSearchCmd,
	}

	cmd.Flags().StringP("mode", "m", "",
		"Search mode: quick or full (default from config)")
	cmd.Flags().StringP("match", "a", "",
		"Matching accuracy: exact, extended or both (default from config)")
	cmd.Flags().StringSliceP("websites", "w", nil,
		"Website ids to search (default from config)")
	cmd.Flags().StringP("format", "f", "txt",
		"Report format printed when the search ends: txt, md or json")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file instead of standard output")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.SetDefault(a.logger)

	cfg, err := searchConfigFromFlags(cmd, a.cfg.SearchConfig())
	if err != nil {
		return err
	}
	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	m, err := a.newManager(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rep, err := runSearch(ctx, out, m, cfg, statusPollInterval)
	if err != nil {
		return err
	}

	if output != "" {
		path, err := report.Export(context.WithoutCancel(ctx), a.store, rep.ID, report.FixedDestination(output), format)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nReport saved to %s\n", path)
		return nil
	}
	fmt.Fprintln(out)
	w, err := report.NewWriter(format, out)
	if err != nil {
		return err
	}
	_, err = w.Write(rep)
	return err
}

// searchConfigFromFlags applies the search flags to defaults.
func searchConfigFromFlags(cmd *cobra.Command, defaults model.SearchConfig) (model.SearchConfig, error) {
	cfg := defaults.Clone()

	mode, err := cmd.Flags().GetString("mode")
	if err != nil {
		return cfg, err
	}
	if mode != "" {
		if cfg.Mode, err = model.ParseSearchMode(mode); err != nil {
			return cfg, err
		}
	}

	match, err := cmd.Flags().GetString("match")
	if err != nil {
		return cfg, err
	}
	if match != "" {
		if cfg.MatchMode, err = model.ParseMatchMode(match); err != nil {
			return cfg, err
		}
	}

	websites, err := cmd.Flags().GetStringSlice("websites")
	if err != nil {
		return cfg, err
	}
	if len(websites) > 0 {
		cfg.Websites = websites
	}
	return cfg, nil
}

func formatFlag(cmd *cobra.Command) (report.Format, error) {
	s, err := cmd.Flags().GetString("format")
	if err != nil {
		return "", err
	}
	return report.ParseFormat(s)
}

// runSearch starts a session and prints its new log lines every poll
// interval until it finishes. Cancelling ctx stops the session; the
// stopped report is still returned.
func runSearch(ctx context.Context, out io.Writer, m *session.Manager, cfg model.SearchConfig, poll time.Duration) (model.Report, error) {
	if _, err := m.Start(ctx, cfg); err != nil {
		return model.Report{}, err
	}
	s := m.Current()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var last string
	printNew := func() {
		st := s.Status()
		for _, line := range newLines(st.Progress.Logs, last) {
			fmt.Fprintln(out, line)
		}
		if n := len(st.Progress.Logs); n > 0 {
			last = st.Progress.Logs[n-1]
		}
	}

	stopping := ctx.Done()
	for {
		select {
		case <-stopping:
			s.Stop()
			stopping = nil
		case <-ticker.C:
			printNew()
		case <-s.Done():
			printNew()
			return s.Wait(context.WithoutCancel(ctx))
		}
	}
}

// newLines returns the lines of logs after last. The log is capped, so
// earlier lines may have been dropped; if last is no longer present every
// line is new.
func newLines(logs []string, last string) []string {
	if last == "" {
		return logs
	}
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i] == last {
			return logs[i+1:]
		}
	}
	return logs
}
