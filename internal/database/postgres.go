package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/model"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint violation.
const uniqueViolation = "23505"

// PGStore is a Store backed by PostgreSQL. It is meant for the HTTP server
// deployment where several processes share one archive.
//
// PostgreSQL keeps timestamps with microsecond precision.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// OpenPostgres connects to databaseURL, verifies the connection and creates
// the schema if needed.
func OpenPostgres(ctx context.Context, databaseURL string) (*PGStore, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS addresses (
		id BIGSERIAL PRIMARY KEY,
		street TEXT NOT NULL,
		house_number TEXT NOT NULL,
		postal_code TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		search_mode TEXT NOT NULL,
		match_mode TEXT NOT NULL DEFAULT '',
		websites_checked TEXT[],
		addresses_checked INTEGER NOT NULL DEFAULT 0,
		matches_found INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_reports_started_at ON reports(started_at);

	CREATE TABLE IF NOT EXISTS matches (
		report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		address_id BIGINT NOT NULL,
		address_display TEXT NOT NULL,
		listing_title TEXT NOT NULL,
		listing_url TEXT NOT NULL,
		website TEXT NOT NULL,
		website_name TEXT NOT NULL,
		match_type TEXT NOT NULL,
		found_at TIMESTAMPTZ,
		PRIMARY KEY (report_id, position)
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Append stores a report and bulk-copies its matches in one transaction.
func (s *PGStore) Append(ctx context.Context, r model.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
	INSERT INTO reports (id, started_at, completed_at, search_mode, match_mode, websites_checked,
		addresses_checked, matches_found, status, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		r.ID, r.StartedAt, nullableTime(r.CompletedAt), string(r.SearchMode), string(r.MatchMode),
		r.WebsitesChecked, r.AddressesChecked, r.MatchesFound, string(r.Status), r.Error,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return archive.ErrDuplicateID
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}

	if len(r.Matches) > 0 {
		rows := make([][]any, 0, len(r.Matches))
		for i, m := range r.Matches {
			rows = append(rows, []any{
				r.ID, i, m.AddressID, m.AddressDisplay, m.ListingTitle, m.ListingURL,
				m.Website, m.WebsiteName, string(m.MatchType), nullableTime(m.FoundAt),
			})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"matches"},
			[]string{"report_id", "position", "address_id", "address_display", "listing_title",
				"listing_url", "website", "website_name", "match_type", "found_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy matches: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

func scanPGReport(row pgx.Row) (model.Report, error) {
	var (
		r                     model.Report
		completed             *time.Time
		searchMode, matchMode string
		status                string
	)
	err := row.Scan(&r.ID, &r.StartedAt, &completed, &searchMode, &matchMode, &r.WebsitesChecked,
		&r.AddressesChecked, &r.MatchesFound, &status, &r.Error)
	if err != nil {
		return model.Report{}, err
	}
	r.CompletedAt = timeValue(completed)
	r.SearchMode = model.SearchMode(searchMode)
	r.MatchMode = model.MatchMode(matchMode)
	r.Status = model.ReportStatus(status)
	return r, nil
}

// List returns all reports, most recent first.
func (s *PGStore) List(ctx context.Context) ([]model.Report, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY started_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanPGReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during report iteration: %w", err)
	}

	for i := range reports {
		if reports[i].Matches, err = s.matches(ctx, reports[i].ID); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// Get returns the report with the given id or archive.ErrNotFound.
func (s *PGStore) Get(ctx context.Context, id string) (model.Report, error) {
	r, err := scanPGReport(s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Report{}, archive.ErrNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("failed to get report: %w", err)
	}
	if r.Matches, err = s.matches(ctx, id); err != nil {
		return model.Report{}, err
	}
	return r, nil
}

func (s *PGStore) matches(ctx context.Context, reportID string) ([]model.Match, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT address_id, address_display, listing_title, listing_url, website, website_name, match_type, found_at
	FROM matches WHERE report_id = $1 ORDER BY position ASC
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
			foundAt   *time.Time
		)
		if err := rows.Scan(&m.AddressID, &m.AddressDisplay, &m.ListingTitle, &m.ListingURL,
			&m.Website, &m.WebsiteName, &matchType, &foundAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.MatchType = model.MatchType(matchType)
		m.FoundAt = timeValue(foundAt)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Delete removes a report; its matches are removed by the foreign key cascade.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return archive.ErrNotFound
	}
	return nil
}

const addressColumns = `id, street, house_number, postal_code, city, notes, created_at`

// ListAll returns every address ordered by id.
func (s *PGStore) ListAll(ctx context.Context) ([]model.Address, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+addressColumns+` FROM addresses ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addrs []model.Address
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.Street, &a.HouseNumber, &a.PostalCode, &a.City, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// GetAddress returns one address or ErrAddressNotFound.
func (s *PGStore) GetAddress(ctx context.Context, id int64) (model.Address, error) {
	var a model.Address
	err := s.pool.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1`, id).
		Scan(&a.ID, &a.Street, &a.HouseNumber, &a.PostalCode, &a.City, &a.Notes, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Address{}, ErrAddressNotFound
	}
	if err != nil {
		return model.Address{}, fmt.Errorf("failed to get address: %w", err)
	}
	return a, nil
}

// AddAddress validates and stores a.
func (s *PGStore) AddAddress(ctx context.Context, a model.Address) (model.Address, error) {
	if err := a.Validate(); err != nil {
		return model.Address{}, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	err := s.pool.QueryRow(ctx, `
	INSERT INTO addresses (street, house_number, postal_code, city, notes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, a.Street, a.HouseNumber, a.PostalCode, a.City, a.Notes, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return model.Address{}, fmt.Errorf("failed to insert address: %w", err)
	}
	return a, nil
}

// UpdateAddress replaces the editable fields of the address with a.ID.
func (s *PGStore) UpdateAddress(ctx context.Context, a model.Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
	UPDATE addresses SET street = $1, house_number = $2, postal_code = $3, city = $4, notes = $5
	WHERE id = $6
	`, a.Street, a.HouseNumber, a.PostalCode, a.City, a.Notes, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// DeleteAddress removes an address.
func (s *PGStore) DeleteAddress(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// Stats counts addresses, reports and archived matches.
func (s *PGStore) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx, `
	SELECT
		(SELECT COUNT(*) FROM addresses),
		(SELECT COUNT(*) FROM reports),
		(SELECT COUNT(*) FROM matches)
	`).Scan(&st.Addresses, &st.Reports, &st.TotalMatches)
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return st, nil
}
