package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flatscout/flatscout/internal/api"
	"github.com/flatscout/flatscout/internal/session"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP API and the
// running session.
const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve searches, reports and the address book over HTTP",
		Long: `Serve starts the HTTP API on the configured listen address.

Endpoints (all under /api/v1):
  POST   /search                 start a search (409 while one runs)
  GET    /search                 progress and matches of the current search
  DELETE /search                 stop the current search
  GET    /reports                archived reports, most recent first
  POST   /reports                import a JSON export
  GET    /reports/{id}           one report
  DELETE /reports/{id}           delete a report
  GET    /reports/{id}/export    download as ?format=txt|md|json
  GET    /addresses              address book
  POST   /addresses              add an address
  PUT    /addresses/{id}         update an address
  DELETE /addresses/{id}         delete an address
  GET    /stats                  counts and running flag

Examples:
  flatscout serve
  flatscout serve --listen 0.0.0.0:8080`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", "",
		"Listen address (default from config, 127.0.0.1:8080)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.SetDefault(a.logger)

	listen, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	if listen == "" {
		listen = a.cfg.ListenAddr
	}

	m, err := a.newManager(ctx)
	if err != nil {
		return err
	}

	h := api.NewHandler(m, a.store, a.cfg.SearchConfig(), a.logger)
	srv := api.NewServer(listen, h, a.logger, a.cfg.CORSOrigins)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Fprintf(cmd.OutOrStdout(), "flatscout API listening on http://%s/api/v1\n", listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	m.Stop()
	if _, err := m.Wait(shutdownCtx); err != nil && !errors.Is(err, session.ErrNoSession) {
		a.logger.Warn("search session did not finish cleanly", "error", err)
	}
	return srv.Stop(shutdownCtx)
}
