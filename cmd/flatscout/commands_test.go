package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flatscout/flatscout/internal/database"
	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/report"
)

// testCLI runs commands against a configuration whose SQLite database lives
// in a temporary directory.
type testCLI struct {
	configPath string
	dbDir      string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()

	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	configPath := filepath.Join(dir, ".flatscout")
	content := "defaults:\n  database:\n    driver: sqlite\n    dir: " + dbDir + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return &testCLI{configPath: configPath, dbDir: dbDir}
}

// run executes the root command with args and returns standard output.
func (c *testCLI) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"-c", c.configPath}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func (c *testCLI) mustRun(t *testing.T, args ...string) string {
	t.Helper()

	out, err := c.run(t, "", args...)
	if err != nil {
		t.Fatalf("flatscout %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func sampleReport() model.Report {
	started := time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)
	return model.Report{
		ID:               "9b0e2c52-5a57-4d5e-a3f4-6b9f1f0f2a11",
		StartedAt:        started,
		CompletedAt:      started.Add(4 * time.Minute),
		SearchMode:       model.SearchModeQuick,
		MatchMode:        model.MatchModeBoth,
		WebsitesChecked:  []string{"wg-gesucht", "immowelt"},
		AddressesChecked: 1,
		MatchesFound:     1,
		Status:           model.StatusCompleted,
		Matches: []model.Match{{
			AddressID:      1,
			AddressDisplay: "Hauptstraße 12, 10115 Berlin",
			ListingTitle:   "Helle 2-Zimmer-Wohnung",
			ListingURL:     "https://www.wg-gesucht.de/wohnungen-in-Berlin.1.html",
			Website:        "wg-gesucht",
			WebsiteName:    "WG-Gesucht.de",
			MatchType:      model.MatchTypeExact,
			FoundAt:        started.Add(time.Minute),
		}},
	}
}

func writeSampleExport(t *testing.T) string {
	t.Helper()

	data, err := report.Render(sampleReport(), report.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddressCommands(t *testing.T) {
	t.Parallel()

	cli := newTestCLI(t)

	out := cli.mustRun(t, "address", "list")
	if !strings.Contains(out, "address book is empty") {
		t.Errorf("unexpected list output for empty book:\n%s", out)
	}

	out = cli.mustRun(t, "address", "add", "--street", "Hauptstraße", "--number", "12", "--postal", "10115", "--city", "Berlin")
	if !strings.Contains(out, "Added address 1: Hauptstraße 12, 10115 Berlin") {
		t.Errorf("unexpected add output:\n%s", out)
	}

	if _, err := cli.run(t, "", "address", "add", "--street", "Lindenweg", "--number", "3"); err == nil {
		t.Error("expected error for address without city")
	}

	out = cli.mustRun(t, "address", "update", "1", "--number", "12a")
	if !strings.Contains(out, "Hauptstraße 12a, 10115 Berlin") {
		t.Errorf("update did not keep unchanged fields:\n%s", out)
	}

	out = cli.mustRun(t, "address", "list")
	if !strings.Contains(out, "Addresses (1)") || !strings.Contains(out, "Hauptstraße 12a") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	if _, err := cli.run(t, "", "address", "update", "42", "--city", "Köln"); err == nil {
		t.Error("expected error for unknown address")
	}
	if _, err := cli.run(t, "", "address", "delete", "abc"); err == nil {
		t.Error("expected error for malformed id")
	}

	cli.mustRun(t, "address", "delete", "1")
	out = cli.mustRun(t, "stats")
	if !strings.Contains(out, "Addresses:     0") {
		t.Errorf("unexpected stats after delete:\n%s", out)
	}
}

func TestReportsCommands(t *testing.T) {
	t.Parallel()

	cli := newTestCLI(t)
	rep := sampleReport()

	out := cli.mustRun(t, "reports", "list")
	if !strings.Contains(out, "No reports archived yet") {
		t.Errorf("unexpected list output for empty archive:\n%s", out)
	}

	out = cli.mustRun(t, "reports", "import", writeSampleExport(t))
	if !strings.Contains(out, "Imported report "+rep.ID+" (1 matches)") {
		t.Errorf("unexpected import output:\n%s", out)
	}
	if _, err := cli.run(t, "", "reports", "import", writeSampleExport(t)); err == nil {
		t.Error("expected error when importing the same report twice")
	}

	out = cli.mustRun(t, "reports", "list")
	if !strings.Contains(out, rep.ID) || !strings.Contains(out, "1/0") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	out = cli.mustRun(t, "reports", "show", rep.ID, "-f", "md")
	if !strings.Contains(out, "# flatscout Search Report") {
		t.Errorf("show did not print Markdown:\n%s", out)
	}

	t.Run("export to directory", func(t *testing.T) {
		dir := t.TempDir()
		out := cli.mustRun(t, "reports", "export", rep.ID, "-f", "json", "-o", dir)
		path := filepath.Join(dir, report.FileName(rep, report.FormatJSON))
		if !strings.Contains(out, path) {
			t.Errorf("unexpected export output:\n%s", out)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		got, err := report.Decode(f)
		if err != nil {
			t.Fatalf("exported file is not a valid report: %v", err)
		}
		if got.ID != rep.ID {
			t.Errorf("exported id = %s", got.ID)
		}
	})

	t.Run("export cancelled at prompt", func(t *testing.T) {
		out, err := cli.run(t, "n\n", "reports", "export", rep.ID)
		if err != nil {
			t.Fatalf("cancel returned error: %v", err)
		}
		if !strings.Contains(out, "Save report to [") || !strings.Contains(out, "Export cancelled.") {
			t.Errorf("unexpected prompt output:\n%s", out)
		}
	})

	if _, err := cli.run(t, "", "reports", "show", "missing"); err == nil {
		t.Error("expected error for unknown report")
	}

	out = cli.mustRun(t, "stats")
	if !strings.Contains(out, "Reports:       1") || !strings.Contains(out, "Total matches: 1") {
		t.Errorf("unexpected stats:\n%s", out)
	}

	cli.mustRun(t, "reports", "delete", rep.ID)
	if _, err := cli.run(t, "", "reports", "delete", rep.ID); err == nil {
		t.Error("expected error deleting a report twice")
	}

	if _, err := os.Stat(filepath.Join(cli.dbDir, database.DBFileName)); err != nil {
		t.Errorf("database not created in the configured directory: %v", err)
	}
}

func TestImportRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	cli := newTestCLI(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"id":"x","status":"running"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := cli.run(t, "", "reports", "import", path); err == nil {
		t.Error("expected error for a document that is not a report")
	}
}
