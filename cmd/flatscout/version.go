package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildVersion describes the running binary.
type buildVersion struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

// currentVersion combines the ldflags values with the module build info.
func currentVersion() buildVersion {
	bi, _ := debug.ReadBuildInfo()
	return resolveVersion(version, commit, date, bi)
}

// resolveVersion fills each field from the ldflags value first, then from bi.
// bi may be nil.
func resolveVersion(ver, rev, built string, bi *debug.BuildInfo) buildVersion {
	v := buildVersion{
		Version:   ver,
		Commit:    rev,
		Date:      built,
		GoVersion: runtime.Version(),
	}
	if bi != nil {
		if v.Version == "" && bi.Main.Version != "" {
			v.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && v.Commit == "":
				v.Commit = s.Value
			case s.Key == "vcs.time" && v.Date == "":
				v.Date = s.Value
			}
		}
	}

	if v.Version == "" {
		v.Version = "(devel)"
	}
	if len(v.Commit) > 7 {
		v.Commit = v.Commit[:7]
	}
	if v.Commit == "" {
		v.Commit = "unknown"
	}
	if v.Date == "" {
		v.Date = "unknown"
	}
	return v
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, build date and Go version of flatscout.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			short, err := cmd.Flags().GetBool("short")
			if err != nil {
				return err
			}
			v := currentVersion()
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, v.Version)
				return nil
			}
			fmt.Fprintf(out, "flatscout version %s\n", v.Version)
			fmt.Fprintf(out, "  commit: %s\n", v.Commit)
			fmt.Fprintf(out, "  built:  %s\n", v.Date)
			fmt.Fprintf(out, "  go:     %s\n", v.GoVersion)
			return nil
		},
	}
	cmd.Flags().Bool("short", false, "Print only the version number")
	return cmd
}
