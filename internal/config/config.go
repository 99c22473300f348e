package config

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/scraper"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "flatscout"

	// DefaultQuickPages is the number of result pages per category searched
	// in quick mode. Full mode searches until a site runs out of results.
	DefaultQuickPages = 25

	// DefaultPageDelay is the pause between two page requests to one site.
	DefaultPageDelay = scraper.DefaultPageDelay

	// DefaultRequestTimeout bounds a single page request.
	DefaultRequestTimeout = scraper.DefaultRequestTimeout

	// DefaultSessionTimeout stops a search session that runs longer than this.
	// A full search of every site rarely takes more than an hour.
	DefaultSessionTimeout = 2 * time.Hour

	// DefaultEmptyPageLimit ends a category after this many pages without
	// new listings.
	DefaultEmptyPageLimit = scraper.DefaultEmptyPageLimit

	// DefaultMaxLogLines caps the progress log of a session.
	DefaultMaxLogLines = 500

	// DefaultListenAddr is the address of the HTTP API.
	DefaultListenAddr = "127.0.0.1:8080"

	// DefaultAMQPExchange is the fanout exchange receiving finished reports.
	DefaultAMQPExchange = "flatscout.reports"

	// DefaultProxyCountry is the country requested from the proxy API.
	DefaultProxyCountry = "de"

	DefaultFluentHost = "127.0.0.1"
	DefaultFluentPort = 24224
	DefaultFluentTag  = "flatscout"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all configuration options for flatscout.
// It is populated from defaults, the config file, the environment and CLI
// flags, in that order, and passed to components explicitly.
type Config struct {
	// Mode is the default search mode.
	Mode model.SearchMode

	// MatchMode is the default matching accuracy.
	MatchMode model.MatchMode

	// Websites lists the site ids searched when a search names none.
	// Defaults to every enabled site of the catalogue.
	Websites []string

	// QuickPages is the page limit per category in quick mode.
	QuickPages int

	// SessionTimeout stops a running session. Zero disables the timeout.
	SessionTimeout time.Duration

	// PageDelay is the pause between page requests to one site.
	PageDelay time.Duration

	// RequestTimeout bounds a single page request.
	RequestTimeout time.Duration

	// EmptyPageLimit ends a category after this many pages without new listings.
	EmptyPageLimit int

	// UserAgent is sent with every page request.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for all page requests.
	ProxyAddress string

	// ScrapeOpsAPIKey enables the proxy API for sites marked "proxy: scrapeops".
	// It is read from SCRAPEOPS_API_KEY and never written to the config file.
	ScrapeOpsAPIKey string

	// ScrapeOpsCountry is the exit country requested from the proxy API.
	ScrapeOpsCountry string

	// MaxLogLines caps the progress log retained by a session.
	MaxLogLines int

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is LogFormatText (colored console output) or LogFormatJSON.
	LogFormat string

	// Fluent forwarding of application logs.
	FluentEnabled bool
	FluentHost    string
	FluentPort    int
	FluentTag     string

	// DBDriver selects the store: DriverSQLite or DriverPostgres.
	DBDriver string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/flatscout on Linux).
	DBDir string

	// PostgresDSN is the connection string used with DriverPostgres.
	PostgresDSN string

	// AMQPURL enables publishing finished reports to RabbitMQ.
	AMQPURL string

	// AMQPExchange is the fanout exchange finished reports are published to.
	AMQPExchange string

	// ListenAddr is the address of the HTTP API.
	ListenAddr string

	// CORSOrigins lists origins allowed to call the HTTP API.
	CORSOrigins []string

	// ConfigFilePath is the path of the config file. If empty, .flatscout is
	// searched in the current directory and then the home directory.
	ConfigFilePath string

	// Sites is the site catalogue after merging the config file.
	Sites []scraper.SiteDef
}

// NewConfig creates a new Config with default values and the built-in site
// catalogue.
func NewConfig() *Config {
	sites := DefaultSites()
	return &Config{
		Mode:             model.SearchModeQuick,
		MatchMode:        model.MatchModeBoth,
		Websites:         EnabledSiteIDs(sites),
		QuickPages:       DefaultQuickPages,
		SessionTimeout:   DefaultSessionTimeout,
		PageDelay:        DefaultPageDelay,
		RequestTimeout:   DefaultRequestTimeout,
		EmptyPageLimit:   DefaultEmptyPageLimit,
		UserAgent:        scraper.DefaultUserAgent,
		ScrapeOpsCountry: DefaultProxyCountry,
		MaxLogLines:      DefaultMaxLogLines,
		LogFormat:        LogFormatText,
		FluentHost:       DefaultFluentHost,
		FluentPort:       DefaultFluentPort,
		FluentTag:        DefaultFluentTag,
		DBDriver:         DriverSQLite,
		DBDir:            XDGDataDir(),
		AMQPExchange:     DefaultAMQPExchange,
		ListenAddr:       DefaultListenAddr,
		Sites:            sites,
	}
}

// XDGDataDir returns the XDG data directory for flatscout.
// On Linux: ~/.local/share/flatscout
// On macOS: ~/Library/Application Support/flatscout
// On Windows: %LOCALAPPDATA%\flatscout
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for flatscout.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Websites) == 0 {
		return ErrNoWebsites
	}
	for _, id := range c.Websites {
		if !slices.ContainsFunc(c.Sites, func(d scraper.SiteDef) bool { return d.ID == id }) {
			return wrapf(ErrUnknownWebsite, "%q", id)
		}
	}
	if !c.Mode.Valid() {
		return wrapf(ErrInvalidMode, "%q", c.Mode)
	}
	if !c.MatchMode.Valid() {
		return wrapf(ErrInvalidMatchMode, "%q", c.MatchMode)
	}
	if c.QuickPages <= 0 {
		return ErrInvalidQuickPages
	}
	if c.PageDelay < 0 {
		return ErrInvalidPageDelay
	}
	if c.RequestTimeout <= 0 || c.SessionTimeout < 0 {
		return ErrInvalidTimeout
	}
	switch strings.ToLower(c.LogFormat) {
	case LogFormatText, LogFormatJSON:
	default:
		return wrapf(ErrInvalidLogFormat, "%q", c.LogFormat)
	}
	switch strings.ToLower(c.DBDriver) {
	case DriverSQLite:
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return ErrMissingDSN
		}
	default:
		return wrapf(ErrUnknownDriver, "%q", c.DBDriver)
	}
	return nil
}

// MaxPages returns the page limit per category for mode; zero means no limit.
func (c *Config) MaxPages(mode model.SearchMode) int {
	if mode == model.SearchModeFull {
		return 0
	}
	return c.QuickPages
}

// SearchConfig returns the default search parameters.
func (c *Config) SearchConfig() model.SearchConfig {
	return model.SearchConfig{
		Mode:      c.Mode,
		MatchMode: c.MatchMode,
		Websites:  slices.Clone(c.Websites),
	}
}

// StoreDSN returns the data source passed to the store for DBDriver.
func (c *Config) StoreDSN() string {
	if strings.ToLower(c.DBDriver) == DriverPostgres {
		return c.PostgresDSN
	}
	return c.DBDir
}
