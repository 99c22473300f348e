// Package archive defines the report archive contract and an in-memory
// implementation.
//
// Every backend stores model.Report values with the same field names and
// types, so a report appended to one backend reads back deep-equal from it.
// The SQLite and PostgreSQL backends live in the database package.
package archive

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/flatscout/flatscout/internal/model"
)

var (
	// ErrNotFound is returned when a report id is unknown.
	ErrNotFound = errors.New("report not found")

	// ErrDuplicateID is returned when a report with the same id was already appended.
	ErrDuplicateID = errors.New("report id already exists")
)

// Archive is an append-only store of finished reports.
type Archive interface {
	// Append stores r. Reports are immutable once appended.
	Append(ctx context.Context, r model.Report) error

	// List returns all reports, most recent StartedAt first.
	List(ctx context.Context) ([]model.Report, error)

	// Get returns the report with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Report, error)

	// Delete removes the report with the given id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// SortRecentFirst orders reports by StartedAt descending, breaking ties by id.
func SortRecentFirst(reports []model.Report) {
	slices.SortStableFunc(reports, func(a, b model.Report) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Memory is an Archive kept in process memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	reports map[string]model.Report
}

var _ Archive = (*Memory)(nil)

// NewMemory returns an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{reports: make(map[string]model.Report)}
}

// Append stores a copy of r.
func (m *Memory) Append(_ context.Context, r model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.ID]; ok {
		return ErrDuplicateID
	}
	m.reports[r.ID] = r.Clone()
	return nil
}

// List returns copies of all reports, most recent first.
func (m *Memory) List(_ context.Context) ([]model.Report, error) {
	m.mu.RLock()
	out := make([]model.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r.Clone())
	}
	m.mu.RUnlock()

	SortRecentFirst(out)
	return out, nil
}

// Get returns a copy of the report with the given id.
func (m *Memory) Get(_ context.Context, id string) (model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return model.Report{}, ErrNotFound
	}
	return r.Clone(), nil
}

// Delete removes the report with the given id.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}
