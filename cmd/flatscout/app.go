package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/flatscout/flatscout/internal/config"
	"github.com/flatscout/flatscout/internal/database"
	flog "github.com/flatscout/flatscout/internal/log"
	"github.com/flatscout/flatscout/internal/notify"
	"github.com/flatscout/flatscout/internal/scraper"
	"github.com/flatscout/flatscout/internal/session"
)

// app holds what every command needs: the configuration, the logger and
// the store. Close releases them.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  database.Store

	closers []io.Closer
}

// newApp loads the configuration selected by the -c flag, sets up logging
// and opens the store.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(getConfigFlag(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Verbose = getVerboseFlag(cmd)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	a := &app{cfg: cfg}

	opts := flog.Options{Verbose: cfg.Verbose, Format: cfg.LogFormat}
	if cfg.FluentEnabled {
		client, err := flog.NewFluentClient(cfg.FluentHost, cfg.FluentPort, cfg.FluentTag)
		if err != nil {
			return nil, err
		}
		opts.Fluent = client
		a.closers = append(a.closers, client)
	}
	a.logger = flog.NewLogger(cmd.ErrOrStderr(), opts)

	store, err := database.OpenStore(ctx, cfg.DBDriver, cfg.StoreDSN())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store
	a.logger.Debug("store opened", "driver", cfg.DBDriver)
	return a, nil
}

// Close releases the store and log forwarders.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// newManager builds the site scrapers and a session manager over the store.
// Finished reports are published to RabbitMQ when an AMQP URL is configured.
func (a *app) newManager(ctx context.Context) (*session.Manager, error) {
	sites, err := a.buildSites(ctx)
	if err != nil {
		return nil, err
	}

	var publisher session.Publisher = notify.Nop{}
	if a.cfg.AMQPURL != "" {
		p, err := notify.DialAMQP(a.cfg.AMQPURL, a.cfg.AMQPExchange, notify.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p)
		publisher = p
	}

	return session.NewManager(sites, a.store, a.store,
		session.WithLogger(a.logger),
		session.WithPublisher(publisher),
		session.WithQuickPages(a.cfg.QuickPages),
		session.WithSessionTimeout(a.cfg.SessionTimeout),
		session.WithMaxLogLines(a.cfg.MaxLogLines),
	), nil
}

func (a *app) buildSites(ctx context.Context) (*scraper.Registry, error) {
	if a.cfg.ProxyAddress != "" {
		if err := scraper.CheckProxy(ctx, a.cfg.ProxyAddress); err != nil {
			return nil, fmt.Errorf("proxy check failed: %w (make sure the proxy is running at %s)",
				err, a.cfg.ProxyAddress)
		}
	}
	transport, err := scraper.NewTransport(a.cfg.ProxyAddress)
	if err != nil {
		return nil, err
	}

	opts := []scraper.Option{
		scraper.WithTransport(transport),
		scraper.WithUserAgent(a.cfg.UserAgent),
		scraper.WithRequestTimeout(a.cfg.RequestTimeout),
		scraper.WithPageDelay(a.cfg.PageDelay),
		scraper.WithEmptyPageLimit(a.cfg.EmptyPageLimit),
		scraper.WithLogger(a.logger),
	}
	if a.cfg.ScrapeOpsAPIKey != "" {
		opts = append(opts, scraper.WithProxyAPI(&scraper.ProxyAPI{
			APIKey:  a.cfg.ScrapeOpsAPIKey,
			Country: a.cfg.ScrapeOpsCountry,
		}))
	}
	return scraper.Build(a.cfg.Sites, opts...)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file path from the command or its parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, _ = cmd.Root().PersistentFlags().GetString("config")
	}
	return path
}
