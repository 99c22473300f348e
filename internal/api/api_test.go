package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/flatscout/flatscout/internal/database"
	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/report"
	"github.com/flatscout/flatscout/internal/scraper"
	"github.com/flatscout/flatscout/internal/session"
	"github.com/google/go-cmp/cmp"
)

// holdingScraper yields one listing and then blocks until the session stops.
type holdingScraper struct{}

func (holdingScraper) ID() string   { return "fake" }
func (holdingScraper) Name() string { return "Fake.de" }

func (holdingScraper) Fetch(ctx context.Context, req scraper.Request) iter.Seq2[model.RawListing, error] {
	return func(yield func(model.RawListing, error) bool) {
		if req.OnPage != nil {
			req.OnPage(1, req.MaxPages)
		}
		l := model.RawListing{
			Title:       "2 Zimmer Altbau",
			URL:         "https://fake.example/1",
			Address:     "Hauptstrasse 12, 10115 Berlin",
			Website:     "fake",
			WebsiteName: "Fake.de",
		}
		if !yield(l, nil) {
			return
		}
		<-ctx.Done()
	}
}

type testEnv struct {
	server  *httptest.Server
	manager *session.Manager
	store   *database.ReportDB
}

func newTestEnv(t *testing.T, origins ...string) *testEnv {
	t.Helper()

	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(scraper.NewRegistry(holdingScraper{}), store, store, session.WithLogger(logger))
	defaults := model.SearchConfig{
		Mode:      model.SearchModeQuick,
		MatchMode: model.MatchModeBoth,
		Websites:  []string{"fake"},
	}
	h := NewHandler(manager, store, defaults, logger)

	srv := httptest.NewServer(NewRouter(h, logger, origins))
	t.Cleanup(func() {
		manager.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = manager.Wait(ctx)
		srv.Close()
	})
	return &testEnv{server: srv, manager: manager, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status = %d, want %d (body %s)",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func TestSearchLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/addresses",
		`{"street":"Hauptstrasse","house_number":"12","postal_code":"10115","city":"Berlin"}`)
	wantStatus(t, resp, http.StatusCreated)

	resp = env.do(t, http.MethodPost, "/api/v1/search", `{"mode":"quick","match_mode":"exact"}`)
	wantStatus(t, resp, http.StatusAccepted)
	started := decode[searchStarted](t, resp)
	if started.ReportID == "" {
		t.Fatal("no report id returned")
	}

	resp = env.do(t, http.MethodPost, "/api/v1/search", "")
	wantStatus(t, resp, http.StatusConflict)

	resp = env.do(t, http.MethodGet, "/api/v1/search", "")
	wantStatus(t, resp, http.StatusOK)
	status := decode[session.Status](t, resp)
	if status.ReportID != started.ReportID || !status.Running {
		t.Errorf("status = %+v, want running session %s", status, started.ReportID)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/search", "")
	wantStatus(t, resp, http.StatusOK)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if _, err := env.manager.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/reports", "")
	wantStatus(t, resp, http.StatusOK)
	reports := decode[[]model.Report](t, resp)
	if len(reports) != 1 || reports[0].ID != started.ReportID {
		t.Fatalf("reports = %+v, want the stopped session's report", reports)
	}
	if reports[0].Status != model.StatusStopped {
		t.Errorf("report status = %s, want stopped", reports[0].Status)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/reports/"+started.ReportID, "")
	wantStatus(t, resp, http.StatusOK)
	if diff := cmp.Diff(reports[0], decode[model.Report](t, resp)); diff != "" {
		t.Errorf("GET report differs from list entry (-list +get):\n%s", diff)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/stats", "")
	wantStatus(t, resp, http.StatusOK)
	stats := decode[statsResponse](t, resp)
	if stats.Addresses != 1 || stats.Reports != 1 || stats.Running {
		t.Errorf("stats = %+v", stats)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/search", "")
	wantStatus(t, resp, http.StatusAccepted)
}

func TestStartSearch_BadRequest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/addresses",
		`{"street":"Hauptstrasse","house_number":"12","city":"Berlin"}`)
	wantStatus(t, resp, http.StatusCreated)

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown website", body: `{"websites":["nope"]}`},
		{name: "no websites", body: `{"websites":[]}`},
		{name: "bad mode", body: `{"mode":"turbo"}`},
		{name: "malformed json", body: `{"mode":`},
	}
	for _, tt := range tests {
		resp := env.do(t, http.MethodPost, "/api/v1/search", tt.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, resp.StatusCode)
		}
		if got := decode[errorResponse](t, resp); got.Error == "" {
			t.Errorf("%s: empty error message", tt.name)
		}
	}
	if env.manager.Running() {
		t.Error("a rejected request started a session")
	}
}

func TestStartSearch_EmptyAddressBook(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/search", "")
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestReports(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	started := time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)
	rep := model.Report{
		ID:               "2f1c7a4e-0000-4000-8000-000000000001",
		StartedAt:        started,
		CompletedAt:      started.Add(3 * time.Minute),
		SearchMode:       model.SearchModeFull,
		MatchMode:        model.MatchModeBoth,
		WebsitesChecked:  []string{"fake"},
		AddressesChecked: 1,
		MatchesFound:     1,
		Status:           model.StatusCompleted,
		Matches: []model.Match{{
			AddressID:      1,
			AddressDisplay: "Hauptstrasse 12, 10115 Berlin",
			ListingTitle:   "2 Zimmer Altbau",
			ListingURL:     "https://fake.example/1",
			Website:        "fake",
			WebsiteName:    "Fake.de",
			MatchType:      model.MatchTypeExact,
			FoundAt:        started.Add(time.Minute),
		}},
	}
	body, err := report.Render(rep, report.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("import", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v1/reports", string(body))
		wantStatus(t, resp, http.StatusCreated)

		resp = env.do(t, http.MethodPost, "/api/v1/reports", string(body))
		wantStatus(t, resp, http.StatusConflict)

		resp = env.do(t, http.MethodPost, "/api/v1/reports", `{"id":"x"}`)
		wantStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("export", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/reports/"+rep.ID+"/export?format=md", "")
		wantStatus(t, resp, http.StatusOK)
		if ct := resp.Header.Get("Content-Type"); ct != report.FormatMarkdown.ContentType() {
			t.Errorf("Content-Type = %q", ct)
		}
		want := `attachment; filename="` + report.FileName(rep, report.FormatMarkdown) + `"`
		if cd := resp.Header.Get("Content-Disposition"); cd != want {
			t.Errorf("Content-Disposition = %q, want %q", cd, want)
		}
		data, _ := io.ReadAll(resp.Body)
		if !bytes.Contains(data, []byte("flatscout Search Report")) {
			t.Errorf("unexpected export body:\n%s", data)
		}

		resp = env.do(t, http.MethodGet, "/api/v1/reports/"+rep.ID+"/export", "")
		wantStatus(t, resp, http.StatusOK)
		data, _ = io.ReadAll(resp.Body)
		if !bytes.Contains(data, []byte("FLATSCOUT - SEARCH REPORT")) {
			t.Errorf("default export is not the text report:\n%s", data)
		}

		resp = env.do(t, http.MethodGet, "/api/v1/reports/"+rep.ID+"/export?format=xlsx", "")
		wantStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("unknown id", func(t *testing.T) {
		wantStatus(t, env.do(t, http.MethodGet, "/api/v1/reports/missing", ""), http.StatusNotFound)
		wantStatus(t, env.do(t, http.MethodGet, "/api/v1/reports/missing/export?format=json", ""), http.StatusNotFound)
		wantStatus(t, env.do(t, http.MethodDelete, "/api/v1/reports/missing", ""), http.StatusNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		wantStatus(t, env.do(t, http.MethodDelete, "/api/v1/reports/"+rep.ID, ""), http.StatusNoContent)
		wantStatus(t, env.do(t, http.MethodGet, "/api/v1/reports/"+rep.ID, ""), http.StatusNotFound)

		resp := env.do(t, http.MethodGet, "/api/v1/reports", "")
		wantStatus(t, resp, http.StatusOK)
		if got := decode[[]model.Report](t, resp); len(got) != 0 {
			t.Errorf("reports after delete = %d, want 0", len(got))
		}
	})
}

func TestAddresses(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/addresses", "")
	wantStatus(t, resp, http.StatusOK)
	if got := decode[[]model.Address](t, resp); len(got) != 0 {
		t.Fatalf("addresses = %v, want none", got)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/addresses", `{"street":"Lindenweg","house_number":"3","city":"Köln"}`)
	wantStatus(t, resp, http.StatusCreated)
	added := decode[model.Address](t, resp)
	if added.ID == 0 || added.CreatedAt.IsZero() {
		t.Errorf("added address = %+v, want id and creation time", added)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/addresses", `{"street":"","house_number":"3","city":"Köln"}`)
	wantStatus(t, resp, http.StatusBadRequest)

	path := "/api/v1/addresses/" + strconv.FormatInt(added.ID, 10)
	resp = env.do(t, http.MethodPut, path, `{"street":"Lindenweg","house_number":"5","city":"Köln"}`)
	wantStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodGet, "/api/v1/addresses", "")
	wantStatus(t, resp, http.StatusOK)
	list := decode[[]model.Address](t, resp)
	if len(list) != 1 || list[0].HouseNumber != "5" {
		t.Errorf("addresses after update = %+v", list)
	}

	wantStatus(t, env.do(t, http.MethodPut, "/api/v1/addresses/999", `{"street":"A","house_number":"1","city":"B"}`), http.StatusNotFound)
	wantStatus(t, env.do(t, http.MethodPut, "/api/v1/addresses/abc", `{}`), http.StatusBadRequest)
	wantStatus(t, env.do(t, http.MethodDelete, path, ""), http.StatusNoContent)
	wantStatus(t, env.do(t, http.MethodDelete, path, ""), http.StatusNotFound)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "http://localhost:5173")

	req, err := http.NewRequestWithContext(t.Context(), http.MethodOptions, env.server.URL+"/api/v1/reports", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response has no X-Request-ID")
	}
}
