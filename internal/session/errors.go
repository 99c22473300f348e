package session

import "errors"

var (
	// ErrInvalidConfig is returned by Start when the search cannot begin:
	// no websites selected, an unknown website, an invalid mode, or an
	// empty address book. No state changes.
	ErrInvalidConfig = errors.New("invalid search config")

	// ErrAlreadyRunning is returned by Start while another session runs.
	ErrAlreadyRunning = errors.New("a search session is already running")

	// ErrTotalFailure is recorded on reports of sessions in which every
	// website failed.
	ErrTotalFailure = errors.New("all websites failed")

	// ErrNoSession is returned by Wait when no session was ever started.
	ErrNoSession = errors.New("no search session")

	errStopRequested  = errors.New("search stopped by user")
	errSessionTimeout = errors.New("session timeout reached")
)
