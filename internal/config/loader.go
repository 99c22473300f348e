package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/scraper"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".flatscout"

// Environment variables read by ApplyEnv.
const (
	EnvScrapeOpsAPIKey = "SCRAPEOPS_API_KEY"
	EnvPostgresDSN     = "FLATSCOUT_POSTGRES_DSN"
	EnvAMQPURL         = "FLATSCOUT_AMQP_URL"
	EnvDBDriver        = "FLATSCOUT_DB_DRIVER"
	EnvListenAddr      = "FLATSCOUT_LISTEN"
	EnvLogFormat       = "FLATSCOUT_LOG_FORMAT"
	EnvFluentEnabled   = "FLATSCOUT_FLUENT"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .flatscout configuration file.
type File struct {
	// Defaults overrides the built-in defaults.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Sites maps site ids to overrides of the built-in catalogue. Unknown
	// ids add new sites.
	Sites map[string]scraper.SiteDef `yaml:"sites,omitempty"`
}

// Defaults is the "defaults" section of the config file. Zero values keep
// the built-in defaults.
type Defaults struct {
	Mode           string         `yaml:"mode,omitempty"`
	MatchMode      string         `yaml:"matchMode,omitempty"`
	Websites       []string       `yaml:"websites,omitempty"`
	QuickPages     int            `yaml:"quickPages,omitempty"`
	PageDelay      *time.Duration `yaml:"pageDelay,omitempty"`
	RequestTimeout time.Duration  `yaml:"requestTimeout,omitempty"`
	SessionTimeout *time.Duration `yaml:"sessionTimeout,omitempty"`
	UserAgent      string         `yaml:"userAgent,omitempty"`
	Proxy          string         `yaml:"proxy,omitempty"`
	ProxyCountry   string         `yaml:"proxyCountry,omitempty"`
	MaxLogLines    int            `yaml:"maxLogLines,omitempty"`

	Database struct {
		Driver string `yaml:"driver,omitempty"`
		Dir    string `yaml:"dir,omitempty"`
	} `yaml:"database,omitempty"`

	AMQP struct {
		Exchange string `yaml:"exchange,omitempty"`
	} `yaml:"amqp,omitempty"`

	Server struct {
		Listen      string   `yaml:"listen,omitempty"`
		CORSOrigins []string `yaml:"corsOrigins,omitempty"`
	} `yaml:"server,omitempty"`

	Log struct {
		Format string `yaml:"format,omitempty"`
		Fluent struct {
			Enabled bool   `yaml:"enabled,omitempty"`
			Host    string `yaml:"host,omitempty"`
			Port    int    `yaml:"port,omitempty"`
			Tag     string `yaml:"tag,omitempty"`
		} `yaml:"fluent,omitempty"`
	} `yaml:"log,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]scraper.SiteDef)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .flatscout in the current directory
// 3. Look for .flatscout in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Load builds the configuration from defaults, the config file and the
// environment. A .env file in the current directory is loaded first; it never
// overrides variables that are already set.
// An explicit configPath that does not exist returns ErrConfigNotFound.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath

	path := FindConfigFile(configPath)
	if configPath != "" && path == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyFile(f); err != nil {
			return nil, err
		}
		cfg.ConfigFilePath = path
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyFile merges a config file into c.
func (c *Config) ApplyFile(f *File) error {
	d := f.Defaults
	if d.Mode != "" {
		m, err := model.ParseSearchMode(d.Mode)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMode, err)
		}
		c.Mode = m
	}
	if d.MatchMode != "" {
		m, err := model.ParseMatchMode(d.MatchMode)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMatchMode, err)
		}
		c.MatchMode = m
	}
	if d.QuickPages != 0 {
		c.QuickPages = d.QuickPages
	}
	if d.PageDelay != nil {
		c.PageDelay = *d.PageDelay
	}
	if d.RequestTimeout != 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if d.SessionTimeout != nil {
		c.SessionTimeout = *d.SessionTimeout
	}
	if d.UserAgent != "" {
		c.UserAgent = d.UserAgent
	}
	if d.Proxy != "" {
		c.ProxyAddress = d.Proxy
	}
	if d.ProxyCountry != "" {
		c.ScrapeOpsCountry = d.ProxyCountry
	}
	if d.MaxLogLines != 0 {
		c.MaxLogLines = d.MaxLogLines
	}
	if d.Database.Driver != "" {
		c.DBDriver = strings.ToLower(d.Database.Driver)
	}
	if d.Database.Dir != "" {
		c.DBDir = d.Database.Dir
	}
	if d.AMQP.Exchange != "" {
		c.AMQPExchange = d.AMQP.Exchange
	}
	if d.Server.Listen != "" {
		c.ListenAddr = d.Server.Listen
	}
	if len(d.Server.CORSOrigins) > 0 {
		c.CORSOrigins = d.Server.CORSOrigins
	}
	if d.Log.Format != "" {
		c.LogFormat = strings.ToLower(d.Log.Format)
	}
	if d.Log.Fluent.Enabled {
		c.FluentEnabled = true
	}
	if d.Log.Fluent.Host != "" {
		c.FluentHost = d.Log.Fluent.Host
	}
	if d.Log.Fluent.Port != 0 {
		c.FluentPort = d.Log.Fluent.Port
	}
	if d.Log.Fluent.Tag != "" {
		c.FluentTag = d.Log.Fluent.Tag
	}

	sites, err := MergeSites(c.Sites, f.Sites)
	if err != nil {
		return err
	}
	c.Sites = sites

	if len(d.Websites) > 0 {
		c.Websites = d.Websites
	} else {
		c.Websites = EnabledSiteIDs(sites)
	}
	return nil
}

// ApplyEnv reads secrets and deployment settings from the environment.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvScrapeOpsAPIKey); ok && v != "" {
		c.ScrapeOpsAPIKey = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		c.PostgresDSN = v
		if _, set := lookup(EnvDBDriver); !set {
			c.DBDriver = DriverPostgres
		}
	}
	if v, ok := lookup(EnvDBDriver); ok && v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v, ok := lookup(EnvAMQPURL); ok && v != "" {
		c.AMQPURL = v
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		c.ListenAddr = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	if v, ok := lookup(EnvFluentEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.FluentEnabled = b
		}
	}
}
