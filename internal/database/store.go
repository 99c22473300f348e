package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/model"
)

// ErrAddressNotFound is returned when an address id is unknown.
var ErrAddressNotFound = errors.New("address not found")

// Driver names accepted by OpenStore.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the persistence boundary of flatscout: the report archive plus
// the address book. ReportDB (SQLite) and PGStore (PostgreSQL) implement it.
type Store interface {
	archive.Archive

	// ListAll returns every address ordered by id.
	ListAll(ctx context.Context) ([]model.Address, error)

	// GetAddress returns one address or ErrAddressNotFound.
	GetAddress(ctx context.Context, id int64) (model.Address, error)

	// AddAddress validates and stores a, returning the stored record.
	AddAddress(ctx context.Context, a model.Address) (model.Address, error)

	// UpdateAddress validates and replaces the address with a.ID.
	UpdateAddress(ctx context.Context, a model.Address) error

	// DeleteAddress removes an address or returns ErrAddressNotFound.
	DeleteAddress(ctx context.Context, id int64) error

	// Stats counts addresses, reports and archived matches.
	Stats(ctx context.Context) (model.Stats, error)

	Close() error
}

// OpenStore opens the store selected by driver. For DriverSQLite, dsn is the
// database directory; for DriverPostgres it is a connection string.
func OpenStore(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		db, err := Open(dsn, DefaultOptions())
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverPostgres:
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, errors.New("unknown database driver: " + driver)
	}
}

// timeLayout stores timestamps as fixed-width UTC text so that they sort
// lexically in SQLite.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// timestampFormats contains the timestamp formats that may be found in the database.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// An empty value yields the zero time; an unparsable one is an error.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
