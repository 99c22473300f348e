package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flatscout/flatscout/internal/model"
	"github.com/google/go-cmp/cmp"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() model.Report {
	started := time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)
	return model.Report{
		ID:               "5f0c8a4e-3c2d-4c1b-9a77-1d2e3f4a5b6c",
		StartedAt:        started,
		CompletedAt:      started.Add(3 * time.Minute),
		SearchMode:       model.SearchModeQuick,
		MatchMode:        model.MatchModeBoth,
		WebsitesChecked:  []string{"wg-gesucht", "immowelt"},
		AddressesChecked: 2,
		MatchesFound:     2,
		Status:           model.StatusCompleted,
		Matches: []model.Match{
			{
				AddressID:      1,
				AddressDisplay: "Hauptstrasse 12, 10115 Berlin",
				ListingTitle:   "Helle 2-Zimmer-Wohnung | Balkon",
				ListingURL:     "https://www.wg-gesucht.de/wohnungen-in-Berlin-Mitte.123.html",
				Website:        "wg-gesucht",
				WebsiteName:    "WG-Gesucht.de",
				MatchType:      model.MatchTypeExact,
				FoundAt:        started.Add(time.Minute),
			},
			{
				AddressID:      2,
				AddressDisplay: "Ringstrasse 3, Berlin",
				ListingTitle:   "Altbau nahe Ringstrasse",
				ListingURL:     "https://www.immowelt.de/expose/abc123",
				Website:        "immowelt",
				WebsiteName:    "Immowelt.de",
				MatchType:      model.MatchTypeExtended,
				FoundAt:        started.Add(2 * time.Minute),
			},
		},
	}
}

// TestSimpleWriter tests the plain text report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header facts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithLocation(time.UTC)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"FLATSCOUT - SEARCH REPORT",
			"Date: 2026-10-19 14:05",
			"Addresses checked: 2",
			"Matches found: 2",
			"Search mode: Quick search",
			"Websites: wg-gesucht, immowelt",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("writes one block per match", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"Match #1\n",
			"Type: EXACT MATCH",
			"Website: WG-Gesucht.de",
			"Match #2\n",
			"Type: Extended match",
			"URL: https://www.immowelt.de/expose/abc123",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if !strings.HasSuffix(strings.TrimSpace(output), strings.Repeat("=", ruleWidth)) {
			t.Error("expected output to end with the end marker")
		}
	})

	t.Run("writes placeholder without matches", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Matches, r.MatchesFound = nil, 0

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No matches found.") {
			t.Error("expected placeholder for empty report")
		}
	})

	t.Run("verbose shows error and duration", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Status, r.Error = model.StatusFailed, "all websites failed"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "Error: all websites failed") || !strings.Contains(output, "Duration: 3m0s") {
			t.Errorf("verbose output missing details:\n%s", output)
		}
	})

	t.Run("returns bytes written", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("n = %d, want %d", n, buf.Len())
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header, summary and matches", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# flatscout Search Report",
			"## Summary",
			"## Matches",
			"✅ Completed",
			"EXACT",
			"EXTENDED",
			"(https://www.immowelt.de/expose/abc123)",
			"```mermaid",
			"[!IMPORTANT]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("escapes table cells", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `Helle 2-Zimmer-Wohnung \| Balkon`) {
			t.Error("expected pipe in title to be escaped")
		}
	})

	t.Run("alerts by status", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			modify func(*model.Report)
			want   string
		}{
			{name: "failed", modify: func(r *model.Report) { r.Status = model.StatusFailed }, want: "[!CAUTION]"},
			{name: "stopped", modify: func(r *model.Report) { r.Status = model.StatusStopped }, want: "[!WARNING]"},
			{name: "no matches", modify: func(r *model.Report) { r.Matches = nil }, want: "[!TIP]"},
		}
		for _, tt := range tests {
			r := createTestReport()
			tt.modify(&r)

			var buf bytes.Buffer
			if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("%s: expected %s alert:\n%s", tt.name, tt.want, buf.String())
			}
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("output follows the schema and decodes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := Validate(buf.Bytes()); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}

		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if diff := cmp.Diff(createTestReport(), got); diff != "" {
			t.Errorf("decoded report mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("compact output is one line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected a single line, got:\n%s", buf.String())
		}
	})

	t.Run("nil lists are written as arrays", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Matches, r.MatchesFound, r.WebsitesChecked = nil, 0, nil

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if _, ok := doc["matches"].([]any); !ok {
			t.Errorf("matches = %#v, want []", doc["matches"])
		}
		if err := Validate(buf.Bytes()); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "not JSON", doc: "Match #1"},
		{name: "missing fields", doc: `{"id":"x"}`},
		{name: "running status", doc: validDoc(t, func(r map[string]any) { r["status"] = "running" })},
		{name: "unknown match type", doc: validDoc(t, func(r map[string]any) {
			r["matches"].([]any)[0].(map[string]any)["match_type"] = "fuzzy"
		})},
		{name: "bad timestamp", doc: validDoc(t, func(r map[string]any) { r["started_at"] = "yesterday" })},
		{name: "count mismatch", doc: validDoc(t, func(r map[string]any) { r["matches_found"] = 5 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(strings.NewReader(tt.doc))
			if !errors.Is(err, ErrInvalidReport) {
				t.Errorf("Decode() error = %v, want ErrInvalidReport", err)
			}
		})
	}
}

// validDoc returns the JSON of createTestReport after modify changed it.
func validDoc(t *testing.T, modify func(map[string]any)) string {
	t.Helper()

	data, err := json.Marshal(createTestReport())
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	modify(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "TXT", want: FormatText},
		{in: "text", want: FormatText},
		{in: "markdown", want: FormatMarkdown},
		{in: "md", want: FormatMarkdown},
		{in: "json", want: FormatJSON},
		{in: "xlsx", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{in: "short", maxLen: 10, want: "short"},
		{in: "exactly10!", maxLen: 10, want: "exactly10!"},
		{in: "this is too long", maxLen: 10, want: "this is..."},
		{in: "Großzügige Wohnung", maxLen: 8, want: "Großz..."},
		{in: "abcdef", maxLen: 3, want: "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
