package session

import (
	"context"
	"errors"
	"testing"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/scraper"
	"github.com/google/go-cmp/cmp"
)

type erroringBook struct{ err error }

func (b erroringBook) ListAll(context.Context) ([]model.Address, error) {
	return nil, b.err
}

func TestManager_StartInvalidConfig(t *testing.T) {
	t.Parallel()

	site := &fakeScraper{id: "a", name: "A.de"}

	tests := []struct {
		name string
		book AddressBook
		cfg  model.SearchConfig
	}{
		{name: "no websites", book: staticBook{hauptstrasse}, cfg: search()},
		{name: "blank website ids", book: staticBook{hauptstrasse}, cfg: search(" ", "")},
		{name: "unknown website", book: staticBook{hauptstrasse}, cfg: search("a", "nope")},
		{name: "invalid mode", book: staticBook{hauptstrasse}, cfg: model.SearchConfig{Mode: "deep", MatchMode: model.MatchModeBoth, Websites: []string{"a"}}},
		{name: "invalid match mode", book: staticBook{hauptstrasse}, cfg: model.SearchConfig{Mode: model.SearchModeQuick, MatchMode: "fuzzy", Websites: []string{"a"}}},
		{name: "empty address book", book: staticBook{}, cfg: search("a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			arch := archive.NewMemory()
			m := NewManager(scraper.NewRegistry(site), tt.book, arch)
			before := m.Status()

			_, err := m.Start(t.Context(), tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Start() error = %v, want ErrInvalidConfig", err)
			}
			if m.Current() != nil || m.Running() {
				t.Error("invalid config created a session")
			}
			if diff := cmp.Diff(before, m.Status()); diff != "" {
				t.Errorf("status changed (-before +after):\n%s", diff)
			}
			if reports, _ := arch.List(t.Context()); len(reports) != 0 {
				t.Errorf("archive has %d reports", len(reports))
			}
		})
	}
}

func TestManager_StartAddressBookError(t *testing.T) {
	t.Parallel()

	bookErr := errors.New("database is locked")
	m := NewManager(scraper.NewRegistry(&fakeScraper{id: "a"}), erroringBook{bookErr}, archive.NewMemory())

	_, err := m.Start(t.Context(), search("a"))
	if !errors.Is(err, bookErr) {
		t.Fatalf("Start() error = %v, want %v", err, bookErr)
	}
	if errors.Is(err, ErrInvalidConfig) {
		t.Error("storage failure reported as invalid config")
	}

	// A failed start leaves the manager free for the next attempt.
	if _, err := m.Start(t.Context(), search("a")); errors.Is(err, ErrAlreadyRunning) {
		t.Error("failed start left the manager busy")
	}
}

func TestManager_AlreadyRunning(t *testing.T) {
	t.Parallel()

	site := &fakeScraper{id: "a", name: "A.de", listings: []model.RawListing{listing(1, "Hauptstr. 12, Berlin")}, hold: true}
	m := newTestManager(t, archive.NewMemory(), site)

	first, err := m.Start(t.Context(), search("a"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "first match", func() bool { return m.Status().Progress.Matches == 1 })

	if _, err := m.Start(t.Context(), search("a")); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	st := m.Status()
	if st.ReportID != first || !st.Running || len(st.Matches) != 1 {
		t.Errorf("first session affected: id=%s running=%v matches=%d", st.ReportID, st.Running, len(st.Matches))
	}

	m.Stop()
	if r := waitReport(t, m); r.ID != first {
		t.Errorf("report id = %s, want %s", r.ID, first)
	}

	second, err := m.Start(t.Context(), search("a"))
	if err != nil {
		t.Fatalf("Start() after stop error = %v", err)
	}
	if second == first {
		t.Error("report ids must differ between sessions")
	}
	m.Stop()
	waitReport(t, m)
}

func TestManager_StopWithoutSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, archive.NewMemory(), &fakeScraper{id: "a"})
	m.Stop()
	m.Stop()

	st := m.Status()
	if st.Running || st.ReportID != "" || len(st.Matches) != 0 {
		t.Errorf("Status() = %+v, want zero", st)
	}
	if _, err := m.Wait(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Errorf("Wait() error = %v, want ErrNoSession", err)
	}
}

func TestManager_StopAfterCompletion(t *testing.T) {
	t.Parallel()

	site := &fakeScraper{id: "a", name: "A.de", listings: []model.RawListing{listing(1, "Hauptstr. 12, Berlin")}}
	arch := archive.NewMemory()
	m := newTestManager(t, arch, site)

	if _, err := m.Start(t.Context(), search("a")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r := waitReport(t, m)
	m.Stop()

	again := waitReport(t, m)
	if diff := cmp.Diff(r, again); diff != "" {
		t.Errorf("report changed after Stop (-want +got):\n%s", diff)
	}
	if r.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", r.Status)
	}
}

func TestManager_StartCopiesConfig(t *testing.T) {
	t.Parallel()

	site := &fakeScraper{id: "a", name: "A.de", hold: true}
	m := NewManager(scraper.NewRegistry(site), staticBook{hauptstrasse}, archive.NewMemory(),
		WithIDGenerator(func() string { return "report-1" }))

	cfg := search("a", "a")
	id, err := m.Start(t.Context(), cfg)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cfg.Websites[0] = "changed"

	if id != "report-1" {
		t.Errorf("id = %q", id)
	}
	if diff := cmp.Diff([]string{"a"}, m.Current().Config().Websites); diff != "" {
		t.Errorf("session websites mismatch (-want +got):\n%s", diff)
	}
	m.Stop()
	if r := waitReport(t, m); !cmp.Equal(r.WebsitesChecked, []string{"a"}) {
		t.Errorf("websites checked = %v", r.WebsitesChecked)
	}
}

func TestManager_SessionOutlivesStartContext(t *testing.T) {
	t.Parallel()

	site := &fakeScraper{id: "a", name: "A.de", hold: true}
	m := newTestManager(t, archive.NewMemory(), site)

	ctx, cancel := context.WithCancel(t.Context())
	if _, err := m.Start(ctx, search("a")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	if !m.Running() {
		t.Fatal("session ended with the start request")
	}
	m.Stop()
	if r := waitReport(t, m); r.Status != model.StatusStopped {
		t.Errorf("status = %s, want stopped", r.Status)
	}
}
