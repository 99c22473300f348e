package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoWebsites is returned when no website is selected or enabled.
	ErrNoWebsites = errors.New("no websites selected: enable at least one site")

	// ErrUnknownWebsite is returned when a selected website is not in the catalogue.
	ErrUnknownWebsite = errors.New("unknown website")

	// ErrInvalidMode is returned for a search mode other than quick or full.
	ErrInvalidMode = errors.New("invalid search mode: expected quick or full")

	// ErrInvalidMatchMode is returned for a match mode other than exact, extended or both.
	ErrInvalidMatchMode = errors.New("invalid match mode: expected exact, extended or both")

	// ErrInvalidQuickPages is returned when the quick mode page limit is not positive.
	ErrInvalidQuickPages = errors.New("invalid quick pages: must be positive")

	// ErrInvalidPageDelay is returned when the page delay is negative.
	ErrInvalidPageDelay = errors.New("invalid page delay: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive or
	// the session timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: request timeout must be positive, session timeout non-negative")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: expected text or json")

	// ErrUnknownDriver is returned for a database driver other than sqlite or postgres.
	ErrUnknownDriver = errors.New("unknown database driver: expected sqlite or postgres")

	// ErrMissingDSN is returned when the postgres driver has no connection string.
	ErrMissingDSN = errors.New("postgres driver needs a connection string (FLATSCOUT_POSTGRES_DSN)")
)

func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}
