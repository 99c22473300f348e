package model

import (
	"slices"
	"time"
)

// ReportStatus is the terminal (or current) state of a search session.
type ReportStatus string

const (
	// StatusRunning is only ever seen on a live session, never in the archive.
	StatusRunning ReportStatus = "running"

	// StatusCompleted means every site worker finished without a stop request.
	StatusCompleted ReportStatus = "completed"

	// StatusStopped means the user stopped the session or the session timed out.
	StatusStopped ReportStatus = "stopped"

	// StatusFailed means every site worker failed.
	StatusFailed ReportStatus = "failed"
)

// String returns the status name.
func (s ReportStatus) String() string { return string(s) }

// Terminal reports whether s is a final status.
func (s ReportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// Report is the archived outcome of one search session.
//
// MatchesFound always equals len(Matches). Reports are immutable once they
// have been appended to an archive.
type Report struct {
	// ID is a UUID assigned when the session starts.
	ID string `json:"id"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	SearchMode SearchMode `json:"search_mode"`
	MatchMode  MatchMode  `json:"match_mode"`

	// WebsitesChecked are the site ids the session was configured with.
	WebsitesChecked []string `json:"websites_checked"`

	AddressesChecked int          `json:"addresses_checked"`
	MatchesFound     int          `json:"matches_found"`
	Status           ReportStatus `json:"status"`

	// Error is the cause recorded on failed sessions.
	Error string `json:"error,omitempty"`

	Matches []Match `json:"matches"`
}

// Clone returns a deep copy of r.
func (r Report) Clone() Report {
	r.WebsitesChecked = slices.Clone(r.WebsitesChecked)
	r.Matches = slices.Clone(r.Matches)
	return r
}

// Duration returns how long the session ran.
func (r Report) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// CountByType returns how many matches of each type the report holds.
func (r Report) CountByType() (exact, extended int) {
	for _, m := range r.Matches {
		switch m.MatchType {
		case MatchTypeExact:
			exact++
		case MatchTypeExtended:
			extended++
		}
	}
	return exact, extended
}

// ProgressSnapshot is a point-in-time copy of a running session's progress.
type ProgressSnapshot struct {
	// Website is the display name of the site most recently reporting progress.
	Website string `json:"website"`

	// Page and MaxPage describe the page being fetched on Website.
	// MaxPage is zero when the site is searched without a page limit.
	Page    int `json:"page"`
	MaxPage int `json:"max_page"`

	// Percent is monotonic within a session and ends at 100.
	Percent int `json:"percent"`

	Action   string `json:"action"`
	Listings int    `json:"listings"`
	Matches  int    `json:"matches"`

	// Logs are timestamped lines in the order they were appended.
	Logs []string `json:"logs"`

	Elapsed time.Duration `json:"elapsed"`
	Running bool          `json:"running"`
}
