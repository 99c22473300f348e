package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/model"
)

// DBFileName is the name of the SQLite database file inside the data directory.
const DBFileName = "flatscout.db"

// ReportDB provides SQLite-based storage for the address book and the
// report archive.
//
// Reports and their matches live in separate tables. Matches keep their
// position so a report reads back in the order it was written.
type ReportDB struct {
	db     *sql.DB
	dbPath string
}

var _ Store = (*ReportDB)(nil)

// Options configures ReportDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so pollers can read while a
	// session archives its report.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ReportDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ReportDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ReportDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *ReportDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *ReportDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ReportDB) createTables() error {
	schema := `
	-- Target addresses maintained by the user
	CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		street TEXT NOT NULL,
		house_number TEXT NOT NULL,
		postal_code TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- One row per finished search session
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL DEFAULT '',
		search_mode TEXT NOT NULL,
		match_mode TEXT NOT NULL DEFAULT '',
		websites_checked TEXT NOT NULL DEFAULT 'null',
		addresses_checked INTEGER NOT NULL DEFAULT 0,
		matches_found INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_reports_started_at ON reports(started_at);

	-- Matches belong to exactly one report
	CREATE TABLE IF NOT EXISTS matches (
		report_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		address_id INTEGER NOT NULL,
		address_display TEXT NOT NULL,
		listing_title TEXT NOT NULL,
		listing_url TEXT NOT NULL,
		website TEXT NOT NULL,
		website_name TEXT NOT NULL,
		match_type TEXT NOT NULL,
		found_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (report_id, position)
	);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// Append stores a report and its matches in one transaction.
func (rdb *ReportDB) Append(ctx context.Context, r model.Report) (err error) {
	websites, err := json.Marshal(r.WebsitesChecked)
	if err != nil {
		return fmt.Errorf("failed to serialize websites: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE id = ?`, r.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check report id: %w", err)
	}
	if exists > 0 {
		return archive.ErrDuplicateID
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO reports (id, started_at, completed_at, search_mode, match_mode, websites_checked,
		addresses_checked, matches_found, status, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		formatTimestamp(r.StartedAt),
		formatTimestamp(r.CompletedAt),
		string(r.SearchMode),
		string(r.MatchMode),
		string(websites),
		r.AddressesChecked,
		r.MatchesFound,
		string(r.Status),
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO matches (report_id, position, address_id, address_display, listing_title,
		listing_url, website, website_name, match_type, found_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare match insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range r.Matches {
		_, err = stmt.ExecContext(ctx,
			r.ID, i, m.AddressID, m.AddressDisplay, m.ListingTitle, m.ListingURL,
			m.Website, m.WebsiteName, string(m.MatchType), formatTimestamp(m.FoundAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

const reportColumns = `id, started_at, completed_at, search_mode, match_mode, websites_checked,
	addresses_checked, matches_found, status, error`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (model.Report, error) {
	var (
		r                      model.Report
		started, completed     string
		searchMode, matchMode  string
		websitesJSON, statusSt string
	)
	err := s.Scan(&r.ID, &started, &completed, &searchMode, &matchMode, &websitesJSON,
		&r.AddressesChecked, &r.MatchesFound, &statusSt, &r.Error)
	if err != nil {
		return model.Report{}, err
	}
	if err := json.Unmarshal([]byte(websitesJSON), &r.WebsitesChecked); err != nil {
		return model.Report{}, fmt.Errorf("failed to parse websites: %w", err)
	}
	if r.StartedAt, err = parseTimestamp(started); err != nil {
		return model.Report{}, fmt.Errorf("failed to parse started_at of report %s: %w", r.ID, err)
	}
	if r.CompletedAt, err = parseTimestamp(completed); err != nil {
		return model.Report{}, fmt.Errorf("failed to parse completed_at of report %s: %w", r.ID, err)
	}
	r.SearchMode = model.SearchMode(searchMode)
	r.MatchMode = model.MatchMode(matchMode)
	r.Status = model.ReportStatus(statusSt)
	return r, nil
}

// List returns all reports, most recent first.
func (rdb *ReportDB) List(ctx context.Context) ([]model.Report, error) {
	rows, err := rdb.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY started_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the only connection before querying matches.
	_ = rows.Close()

	for i := range reports {
		if reports[i].Matches, err = rdb.matches(ctx, reports[i].ID); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// Get returns the report with the given id or archive.ErrNotFound.
func (rdb *ReportDB) Get(ctx context.Context, id string) (model.Report, error) {
	row := rdb.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, archive.ErrNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("failed to get report: %w", err)
	}
	if r.Matches, err = rdb.matches(ctx, id); err != nil {
		return model.Report{}, err
	}
	return r, nil
}

func (rdb *ReportDB) matches(ctx context.Context, reportID string) ([]model.Match, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT address_id, address_display, listing_title, listing_url, website, website_name, match_type, found_at
	FROM matches WHERE report_id = ? ORDER BY position ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var (
			m         model.Match
			matchType string
			foundAt   string
		)
		if err := rows.Scan(&m.AddressID, &m.AddressDisplay, &m.ListingTitle, &m.ListingURL,
			&m.Website, &m.WebsiteName, &matchType, &foundAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.MatchType = model.MatchType(matchType)
		if m.FoundAt, err = parseTimestamp(foundAt); err != nil {
			return nil, fmt.Errorf("failed to parse found_at of report %s: %w", reportID, err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Delete removes a report and its matches.
func (rdb *ReportDB) Delete(ctx context.Context, id string) (err error) {
	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return archive.ErrNotFound
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM matches WHERE report_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete matches: %w", err)
	}
	return tx.Commit()
}

// ListAll returns every address ordered by id.
func (rdb *ReportDB) ListAll(ctx context.Context) ([]model.Address, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT id, street, house_number, postal_code, city, notes, created_at
	FROM addresses ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addrs []model.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

func scanAddress(s scanner) (model.Address, error) {
	var (
		a       model.Address
		created string
	)
	if err := s.Scan(&a.ID, &a.Street, &a.HouseNumber, &a.PostalCode, &a.City, &a.Notes, &created); err != nil {
		return model.Address{}, err
	}
	createdAt, err := parseTimestamp(created)
	if err != nil {
		return model.Address{}, fmt.Errorf("failed to parse created_at of address %d: %w", a.ID, err)
	}
	a.CreatedAt = createdAt
	return a, nil
}

// GetAddress returns one address or ErrAddressNotFound.
func (rdb *ReportDB) GetAddress(ctx context.Context, id int64) (model.Address, error) {
	row := rdb.db.QueryRowContext(ctx, `
	SELECT id, street, house_number, postal_code, city, notes, created_at
	FROM addresses WHERE id = ?
	`, id)
	a, err := scanAddress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Address{}, ErrAddressNotFound
	}
	if err != nil {
		return model.Address{}, fmt.Errorf("failed to get address: %w", err)
	}
	return a, nil
}

// AddAddress validates and stores a. CreatedAt is set when zero.
func (rdb *ReportDB) AddAddress(ctx context.Context, a model.Address) (model.Address, error) {
	if err := a.Validate(); err != nil {
		return model.Address{}, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	res, err := rdb.db.ExecContext(ctx, `
	INSERT INTO addresses (street, house_number, postal_code, city, notes, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`, a.Street, a.HouseNumber, a.PostalCode, a.City, a.Notes, formatTimestamp(a.CreatedAt))
	if err != nil {
		return model.Address{}, fmt.Errorf("failed to insert address: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return model.Address{}, fmt.Errorf("failed to get address id: %w", err)
	}
	return a, nil
}

// UpdateAddress replaces the editable fields of the address with a.ID.
func (rdb *ReportDB) UpdateAddress(ctx context.Context, a model.Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	res, err := rdb.db.ExecContext(ctx, `
	UPDATE addresses SET street = ?, house_number = ?, postal_code = ?, city = ?, notes = ?
	WHERE id = ?
	`, a.Street, a.HouseNumber, a.PostalCode, a.City, a.Notes, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	return requireAffected(res, ErrAddressNotFound)
}

// DeleteAddress removes an address. Archived matches keep their display text.
func (rdb *ReportDB) DeleteAddress(ctx context.Context, id int64) error {
	res, err := rdb.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	return requireAffected(res, ErrAddressNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Stats counts addresses, reports and archived matches.
func (rdb *ReportDB) Stats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	err := rdb.db.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM addresses),
		(SELECT COUNT(*) FROM reports),
		(SELECT COUNT(*) FROM matches)
	`).Scan(&s.Addresses, &s.Reports, &s.TotalMatches)
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return s, nil
}
