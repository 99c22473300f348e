package main

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "3f9c2a7d81e04b55"},
			{Key: "vcs.time", Value: "2026-10-01T09:30:00Z"},
		},
	}

	tests := []struct {
		name            string
		ver, rev, built string
		bi              *debug.BuildInfo
		want            buildVersion
	}{
		{
			name: "nothing known",
			want: buildVersion{Version: "(devel)", Commit: "unknown", Date: "unknown"},
		},
		{
			name: "build info",
			bi:   info,
			want: buildVersion{Version: "v0.4.1", Commit: "3f9c2a7", Date: "2026-10-01T09:30:00Z"},
		},
		{
			name:  "ldflags win over build info",
			ver:   "v1.0.0",
			rev:   "abc1234",
			built: "2026-10-19",
			bi:    info,
			want:  buildVersion{Version: "v1.0.0", Commit: "abc1234", Date: "2026-10-19"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := resolveVersion(tt.ver, tt.rev, tt.built, tt.bi)
			tt.want.GoVersion = runtime.Version()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("resolveVersion() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("full output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"flatscout version", "commit:", "built:", "go:"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("output %q does not contain %q", buf.String(), want)
			}
		}
	})

	t.Run("short output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--short"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := strings.TrimSpace(buf.String())
		if got == "" || strings.Contains(got, "\n") || strings.Contains(got, "commit") {
			t.Errorf("unexpected short output %q", got)
		}
	})

	t.Run("rejects arguments", func(t *testing.T) {
		t.Parallel()

		cmd := NewVersionCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"extra"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for extra argument")
		}
	})
}
