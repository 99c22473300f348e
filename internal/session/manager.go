package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/matcher"
	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/progress"
	"github.com/flatscout/flatscout/internal/scraper"
	"github.com/google/uuid"
)

// DefaultQuickPages is the page limit per category in quick mode.
const DefaultQuickPages = 25

// AddressBook provides the addresses a session searches for.
// ListAll is called once per session.
type AddressBook interface {
	ListAll(ctx context.Context) ([]model.Address, error)
}

// Publisher announces finished reports, e.g. on a message broker.
type Publisher interface {
	Publish(ctx context.Context, r model.Report) error
}

// Manager runs at most one search session at a time.
type Manager struct {
	sites   *scraper.Registry
	book    AddressBook
	archive archive.Archive

	publisher   Publisher
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	quickPages  int
	timeout     time.Duration
	maxLogLines int

	mu       sync.Mutex
	current  *Session
	starting bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for session diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithPublisher sets where finished reports are announced.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator sets how report ids are generated. The default is a random UUID.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// WithQuickPages sets the page limit per category in quick mode.
func WithQuickPages(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.quickPages = n
		}
	}
}

// WithSessionTimeout stops sessions that run longer than d. Zero disables it.
func WithSessionTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.timeout = d
		}
	}
}

// WithMaxLogLines sets how many progress log lines a session retains.
func WithMaxLogLines(n int) Option {
	return func(m *Manager) {
		m.maxLogLines = n
	}
}

// NewManager creates a Manager searching the sites in sites for the
// addresses in book, and appending reports to arch.
func NewManager(sites *scraper.Registry, book AddressBook, arch archive.Archive, opts ...Option) *Manager {
	m := &Manager{
		sites:      sites,
		book:       book,
		archive:    arch,
		now:        time.Now,
		newID:      uuid.NewString,
		quickPages: DefaultQuickPages,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Start validates cfg, takes a snapshot of the address book and starts a
// session in the background. It returns the id of the report the session
// will produce.
//
// Start returns ErrInvalidConfig for an unusable config and
// ErrAlreadyRunning while another session runs; in both cases nothing
// changes. The session outlives ctx; use Stop to end it early.
func (m *Manager) Start(ctx context.Context, cfg model.SearchConfig) (string, error) {
	cfg = normalizeConfig(cfg)
	if err := m.validate(cfg); err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.starting || (m.current != nil && m.current.Running()) {
		m.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	m.starting = true
	m.mu.Unlock()

	s, err := m.newSession(ctx, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	if err != nil {
		return "", err
	}
	s.start(context.WithoutCancel(ctx))
	m.current = s

	m.logger.Info("search session started",
		"report_id", s.id,
		"mode", cfg.Mode,
		"match_mode", cfg.MatchMode,
		"websites", strings.Join(cfg.Websites, ","),
		"addresses", len(s.addresses),
	)
	return s.id, nil
}

// Stop stops the running session. It is a no-op when none is running.
func (m *Manager) Stop() {
	if s := m.Current(); s != nil {
		s.Stop()
	}
}

// Status returns the state of the current or most recent session. The
// zero Status is returned before the first session.
func (m *Manager) Status() Status {
	s := m.Current()
	if s == nil {
		return Status{Matches: []model.Match{}}
	}
	return s.Status()
}

// Running reports whether a session is running.
func (m *Manager) Running() bool {
	s := m.Current()
	return s != nil && s.Running()
}

// Current returns the current or most recent session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Wait blocks until the current session finished and returns its report.
func (m *Manager) Wait(ctx context.Context) (model.Report, error) {
	s := m.Current()
	if s == nil {
		return model.Report{}, ErrNoSession
	}
	return s.Wait(ctx)
}

// normalizeConfig copies cfg and drops repeated website ids.
func normalizeConfig(cfg model.SearchConfig) model.SearchConfig {
	cfg = cfg.Clone()
	seen := make(map[string]bool, len(cfg.Websites))
	websites := cfg.Websites[:0]
	for _, id := range cfg.Websites {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		websites = append(websites, id)
	}
	cfg.Websites = websites
	return cfg
}

func (m *Manager) validate(cfg model.SearchConfig) error {
	if len(cfg.Websites) == 0 {
		return fmt.Errorf("%w: no websites selected", ErrInvalidConfig)
	}
	if unknown := m.sites.Unknown(cfg.Websites); len(unknown) > 0 {
		return fmt.Errorf("%w: unknown websites: %s", ErrInvalidConfig, strings.Join(unknown, ", "))
	}
	if !cfg.Mode.Valid() {
		return fmt.Errorf("%w: unknown search mode %q", ErrInvalidConfig, cfg.Mode)
	}
	if !cfg.MatchMode.Valid() {
		return fmt.Errorf("%w: unknown match mode %q", ErrInvalidConfig, cfg.MatchMode)
	}
	return nil
}

func (m *Manager) newSession(ctx context.Context, cfg model.SearchConfig) (*Session, error) {
	addrs, err := m.book.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load addresses: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no addresses to search for", ErrInvalidConfig)
	}

	sites := make([]scraper.Scraper, 0, len(cfg.Websites))
	for _, id := range cfg.Websites {
		sc, err := m.sites.Get(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		sites = append(sites, sc)
	}

	maxPages := 0
	if cfg.Mode == model.SearchModeQuick {
		maxPages = m.quickPages
	}

	var trackerOpts []progress.Option
	if m.maxLogLines > 0 {
		trackerOpts = append(trackerOpts, progress.WithMaxLogLines(m.maxLogLines))
	}
	trackerOpts = append(trackerOpts, progress.WithClock(m.now))

	id := m.newID()
	return &Session{
		id:        id,
		cfg:       cfg,
		addresses: addrs,
		cities:    distinctCities(addrs),
		sites:     sites,
		matcher:   matcher.New(addrs),
		maxPages:  maxPages,
		timeout:   m.timeout,
		archive:   m.archive,
		publisher: m.publisher,
		logger:    m.logger.With("report_id", id),
		now:       m.now,
		tracker:   progress.New(trackerOpts...),
		done:      make(chan struct{}),
	}, nil
}

// distinctCities returns the cities of addrs in order of first appearance.
// Spellings that normalize to the same text count as one city.
func distinctCities(addrs []model.Address) []string {
	var (
		cities []string
		seen   = make(map[string]bool)
	)
	for _, a := range addrs {
		key := matcher.Normalize(a.City)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		cities = append(cities, strings.TrimSpace(a.City))
	}
	return cities
}
