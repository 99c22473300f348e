// Package progress provides the live progress state of a search session.
package progress

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/flatscout/flatscout/internal/model"
)

// DefaultMaxLogLines is the number of log lines retained when no limit is given.
const DefaultMaxLogLines = 500

// logTimeFormat is the timestamp prefix of every log line.
const logTimeFormat = "15:04:05"

// Tracker holds the progress of one search session.
//
// A Tracker is written by a single goroutine (the session aggregator) and
// read by any number of pollers. Every read goes through Snapshot, which
// returns a copy taken under the read lock, so readers never observe a
// partially applied update.
type Tracker struct {
	mu sync.RWMutex

	website  string
	page     int
	maxPage  int
	percent  int
	action   string
	listings int
	matches  int
	logs     []string
	running  bool
	started  time.Time
	finished time.Time

	maxLogs int
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxLogLines sets how many log lines are retained. Older lines are dropped.
func WithMaxLogLines(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxLogs = n
		}
	}
}

// WithClock sets the time source. It is used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a Tracker. Call Start before the first update.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		maxLogs: DefaultMaxLogLines,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start resets the tracker and marks it running.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.website, t.action = "", ""
	t.page, t.maxPage, t.percent = 0, 0, 0
	t.listings, t.matches = 0, 0
	t.logs = nil
	t.running = true
	t.started = t.now()
	t.finished = time.Time{}
}

// Logf appends a timestamped log line.
func (t *Tracker) Logf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLog(fmt.Sprintf(format, args...))
}

func (t *Tracker) appendLog(msg string) {
	line := "[" + t.now().Format(logTimeFormat) + "] " + msg
	t.logs = append(t.logs, line)
	if over := len(t.logs) - t.maxLogs; over > 0 {
		// Copy instead of reslicing so dropped lines can be collected.
		t.logs = slices.Clone(t.logs[over:])
	}
}

// SetPage records the page a site is currently fetching.
// maxPage is zero for unbounded searches.
func (t *Tracker) SetPage(website string, page, maxPage int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.website = website
	t.page = page
	t.maxPage = maxPage
}

// SetAction sets the free-text action shown to the user.
func (t *Tracker) SetAction(action string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.action = action
}

// SetPercent raises the percentage. Values below the current percentage
// are ignored and the result is clamped to [0, 100].
func (t *Tracker) SetPercent(p int) {
	p = max(0, min(100, p))

	t.mu.Lock()
	defer t.mu.Unlock()
	if p > t.percent {
		t.percent = p
	}
}

// AddListings increments the listings-seen counter.
func (t *Tracker) AddListings(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listings += n
}

// AddMatches increments the match counter.
func (t *Tracker) AddMatches(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.matches += n
}

// Finish sets percent to 100, records the final action and marks the
// tracker as not running. Elapsed stops advancing.
func (t *Tracker) Finish(action string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.percent = 100
	t.action = action
	t.running = false
	t.finished = t.now()
}

// Running reports whether the tracker is between Start and Finish.
func (t *Tracker) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Snapshot returns a consistent copy of the current progress.
func (t *Tracker) Snapshot() model.ProgressSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var elapsed time.Duration
	switch {
	case t.started.IsZero():
	case t.finished.IsZero():
		elapsed = t.now().Sub(t.started)
	default:
		elapsed = t.finished.Sub(t.started)
	}

	return model.ProgressSnapshot{
		Website:  t.website,
		Page:     t.page,
		MaxPage:  t.maxPage,
		Percent:  t.percent,
		Action:   t.action,
		Listings: t.listings,
		Matches:  t.matches,
		Logs:     slices.Clone(t.logs),
		Elapsed:  elapsed,
		Running:  t.running,
	}
}
