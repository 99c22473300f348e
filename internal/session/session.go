package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/log"
	"github.com/flatscout/flatscout/internal/matcher"
	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/progress"
	"github.com/flatscout/flatscout/internal/scraper"
	"golang.org/x/sync/errgroup"
)

// eventBuffer is the capacity of the worker to aggregator channel.
const eventBuffer = 64

// maxSiteFraction caps the estimated progress of a site that is still running.
const maxSiteFraction = 0.95

// Status is what a poller sees of a session.
type Status struct {
	ReportID string                 `json:"report_id,omitempty"`
	Progress model.ProgressSnapshot `json:"progress"`
	Matches  []model.Match          `json:"matches"`
	Running  bool                   `json:"running"`
}

// Session is one search run. It is created and started by a Manager.
type Session struct {
	id        string
	cfg       model.SearchConfig
	addresses []model.Address
	cities    []string
	sites     []scraper.Scraper
	matcher   *matcher.Matcher
	maxPages  int
	timeout   time.Duration

	archive   archive.Archive
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	tracker *progress.Tracker

	// mu guards matches and report. The aggregator is the only writer.
	// The tracker's match counter is only changed with mu held, so a
	// snapshot taken under mu agrees with matches.
	mu      sync.RWMutex
	matches []model.Match
	report  model.Report
	saveErr error

	startedAt time.Time
	cancel    context.CancelCauseFunc
	done      chan struct{}
}

type eventKind int

const (
	eventPage eventKind = iota
	eventListing
	eventLog
	eventSiteDone
)

// event is sent by site workers to the aggregator.
type event struct {
	kind     eventKind
	site     int
	page     int
	maxPages int
	fraction float64
	matches  []model.Match
	msg      string
	err      error
}

// ID returns the id of the report the session will produce.
func (s *Session) ID() string { return s.id }

// Config returns the session's search config.
func (s *Session) Config() model.SearchConfig { return s.cfg.Clone() }

// Running reports whether the session has not yet finished.
func (s *Session) Running() bool { return s.tracker.Running() }

// Done is closed once the report has been archived and published.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop asks all workers to stop. Calling it more than once, or after the
// session finished, has no effect.
func (s *Session) Stop() {
	s.cancel(errStopRequested)
}

// Status returns a consistent copy of the session's progress and matches.
func (s *Session) Status() Status {
	s.mu.RLock()
	snap := s.tracker.Snapshot()
	matches := slices.Clone(s.matches)
	s.mu.RUnlock()
	if matches == nil {
		matches = []model.Match{}
	}
	return Status{
		ReportID: s.id,
		Progress: snap,
		Matches:  matches,
		Running:  snap.Running,
	}
}

// Wait blocks until the session finished or ctx is done. It returns the
// session's report, and the error from archiving it, if any.
func (s *Session) Wait(ctx context.Context) (model.Report, error) {
	select {
	case <-ctx.Done():
		return model.Report{}, ctx.Err()
	case <-s.done:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report.Clone(), s.saveErr
}

// start logs the banner and launches the workers. ctx must not be
// cancelled by the caller's request lifetime.
func (s *Session) start(ctx context.Context) {
	s.tracker.Start()
	s.startedAt = s.now().UTC().Truncate(time.Microsecond)
	s.logBanner()

	ctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	if s.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, s.timeout, errSessionTimeout)
		s.cancel = func(cause error) {
			cancel(cause)
			cancelTimeout()
		}
	}

	go s.run(ctx)
}

func (s *Session) logBanner() {
	t := s.tracker
	t.Logf("Search started")
	t.Logf("Cities: %s", strings.Join(s.cities, ", "))
	switch s.cfg.Mode {
	case model.SearchModeQuick:
		t.Logf("Mode: quick search (%d pages per category)", s.maxPages)
	default:
		t.Logf("Mode: full search (all pages)")
	}
	switch s.cfg.MatchMode {
	case model.MatchModeExact:
		t.Logf("Accuracy: exact (street and house number)")
	case model.MatchModeExtended:
		t.Logf("Accuracy: extended (street in the same area)")
	default:
		t.Logf("Accuracy: exact and extended")
	}
	t.Logf("Addresses: %d", len(s.addresses))
	t.Logf("Websites: %d", len(s.sites))
	for _, sc := range s.sites {
		t.Logf("  - %s", sc.Name())
	}
	for _, sc := range s.sites {
		if n, ok := sc.(scraper.Noter); ok && n.Note() != "" {
			t.Logf("Note: %s: %s", sc.Name(), n.Note())
		}
	}
	t.SetAction("Collecting listings...")
}

func (s *Session) run(ctx context.Context) {
	defer s.cancel(nil)

	events := make(chan event, eventBuffer)
	aggregated := make(chan int)
	go func() {
		aggregated <- s.aggregate(ctx, events)
	}()

	// Workers never return an error: a failing site is reported as an
	// event and must not cancel its siblings.
	var g errgroup.Group
	for i, sc := range s.sites {
		g.Go(func() error {
			err := s.fetchSite(ctx, i, sc, events)
			events <- event{kind: eventSiteDone, site: i, err: err}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers always return nil

	cause := context.Cause(ctx)
	close(events)
	failed := <-aggregated

	s.finalize(cause, failed)
}

// fetchSite searches every city on one site. It returns an error only if
// the site failed for every city it was asked for.
func (s *Session) fetchSite(ctx context.Context, idx int, sc scraper.Scraper, events chan<- event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", scraper.ErrSiteUnavailable, r)
			events <- event{kind: eventLog, msg: failureLine(sc.Name(), err)}
		}
	}()

	var (
		succeeded int
		lastErr   error
	)
	for ci, city := range s.cities {
		if ctx.Err() != nil {
			return nil
		}
		req := scraper.Request{
			City:     city,
			MaxPages: s.maxPages,
			OnPage: func(page, maxPages int) {
				events <- event{
					kind:     eventPage,
					site:     idx,
					page:     page,
					maxPages: maxPages,
					fraction: (float64(ci) + pageFraction(page, maxPages)) / float64(len(s.cities)),
				}
			},
		}

		var cityErr error
		for listing, err := range sc.Fetch(ctx, req) {
			if err != nil {
				cityErr = err
				break
			}
			if ctx.Err() != nil {
				break
			}
			if listing.City == "" {
				listing.City = city
			}
			events <- event{kind: eventListing, site: idx, matches: s.classify(listing)}
		}

		if ctx.Err() != nil {
			return nil
		}
		if cityErr != nil {
			lastErr = cityErr
			events <- event{kind: eventLog, msg: failureLine(sc.Name(), cityErr)}
			continue
		}
		succeeded++
	}

	if succeeded == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

func (s *Session) classify(l model.RawListing) []model.Match {
	results := s.matcher.MatchAll(l, s.cfg.MatchMode)
	if len(results) == 0 {
		return nil
	}
	foundAt := s.now().UTC().Truncate(time.Microsecond)
	matches := make([]model.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, model.NewMatch(l, r.Address, r.Type, foundAt))
	}
	return matches
}

// failureLine formats the log line of a site failure.
func failureLine(site string, err error) string {
	return fmt.Sprintf("%s: error - %s", site, log.Redact(err.Error()))
}

// pageFraction estimates how much of a category is done when page is
// requested. Without a page limit the estimate approaches maxSiteFraction.
func pageFraction(page, maxPages int) float64 {
	done := float64(max(page-1, 0))
	if maxPages > 0 {
		return min(done/float64(maxPages), 1)
	}
	return min(1-1/(1+done/10), maxSiteFraction)
}

// aggregate applies worker events until events is closed. It is the only
// writer of the tracker and the match list while workers run. It returns
// the number of sites that failed.
func (s *Session) aggregate(ctx context.Context, events <-chan event) int {
	var (
		n        = len(s.sites)
		fraction = make([]float64, n)
		seen     = make(map[model.MatchKey]struct{})
		finished int
		failed   int
		stopping = ctx.Done()
	)

	for {
		select {
		case <-stopping:
			stopping = nil
			s.logStop(ctx)
			continue
		case ev, ok := <-events:
			if !ok {
				if stopping != nil && ctx.Err() != nil {
					s.logStop(ctx)
				}
				return failed
			}
			name := s.sites[ev.site].Name()

			switch ev.kind {
			case eventPage:
				s.tracker.SetPage(name, ev.page, ev.maxPages)
				if ev.maxPages > 0 {
					s.tracker.SetAction(fmt.Sprintf("Searching %s, page %d/%d", name, ev.page, ev.maxPages))
				} else {
					s.tracker.SetAction(fmt.Sprintf("Searching %s, page %d", name, ev.page))
				}
				fraction[ev.site] = max(fraction[ev.site], min(ev.fraction, maxSiteFraction))

			case eventListing:
				s.tracker.AddListings(1)
				for _, m := range ev.matches {
					if _, dup := seen[m.Key()]; dup {
						continue
					}
					seen[m.Key()] = struct{}{}
					s.mu.Lock()
					s.matches = append(s.matches, m)
					s.tracker.AddMatches(1)
					s.mu.Unlock()
					s.tracker.Logf("%s match on %s: %s - %s", m.MatchType.Label(), m.WebsiteName, m.AddressDisplay, m.ListingURL)
				}

			case eventLog:
				s.tracker.Logf("%s", ev.msg)

			case eventSiteDone:
				finished++
				fraction[ev.site] = 1
				if ev.err != nil {
					failed++
					s.logger.Warn("site failed", "site", s.sites[ev.site].ID(), "error", ev.err)
				} else {
					s.tracker.Logf("%s: done", name)
				}
			}

			var sum float64
			for _, f := range fraction {
				sum += f
			}
			s.tracker.SetPercent(min(int(100*sum/float64(n)), 99))
		}
	}
}

func (s *Session) logStop(ctx context.Context) {
	if errors.Is(context.Cause(ctx), errSessionTimeout) {
		s.tracker.Logf("Session timeout of %s reached, stopping search...", s.timeout)
	} else {
		s.tracker.Logf("Stopping search...")
	}
	s.tracker.SetAction("Stopping...")
}

// finalize builds and stores the report. cause is the context cause
// observed when all workers had returned.
func (s *Session) finalize(cause error, failed int) {
	s.mu.RLock()
	matches := slices.Clone(s.matches)
	s.mu.RUnlock()

	snap := s.tracker.Snapshot()
	report := model.Report{
		ID:               s.id,
		StartedAt:        s.startedAt,
		CompletedAt:      s.now().UTC().Truncate(time.Microsecond),
		SearchMode:       s.cfg.Mode,
		MatchMode:        s.cfg.MatchMode,
		WebsitesChecked:  slices.Clone(s.cfg.Websites),
		AddressesChecked: len(s.addresses),
		MatchesFound:     len(matches),
		Matches:          matches,
	}
	if report.Matches == nil {
		report.Matches = []model.Match{}
	}

	var action string
	switch {
	case cause != nil:
		report.Status = model.StatusStopped
		action = "Stopped"
		s.tracker.Logf("Search stopped: %d listings, %d matches", snap.Listings, len(matches))
	case failed == len(s.sites):
		report.Status = model.StatusFailed
		report.Error = ErrTotalFailure.Error()
		action = "Failed"
		s.tracker.Logf("Search failed: %s", ErrTotalFailure)
	default:
		report.Status = model.StatusCompleted
		action = "Completed"
		s.tracker.Logf("Search completed: %d listings, %d matches", snap.Listings, len(matches))
	}

	// Archiving runs even after a stop.
	ctx := context.Background()
	saveErr := s.archive.Append(ctx, report)
	if saveErr != nil {
		saveErr = fmt.Errorf("failed to archive report %s: %w", report.ID, saveErr)
		s.logger.Error("failed to archive report", "error", saveErr)
		s.tracker.Logf("Report could not be saved: %s", log.Redact(saveErr.Error()))
	} else if s.publisher != nil {
		if err := s.publisher.Publish(ctx, report); err != nil {
			s.logger.Warn("failed to publish report", "error", err)
		}
	}

	s.mu.Lock()
	s.report = report
	s.saveErr = saveErr
	s.mu.Unlock()

	s.logger.Info("search session finished",
		"status", report.Status,
		"listings", snap.Listings,
		"matches", report.MatchesFound,
		"elapsed", report.Duration(),
	)

	s.tracker.Finish(action)
	close(s.done)
}
