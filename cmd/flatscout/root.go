package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for flatscout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flatscout",
		Short: "Find property listings at the addresses you care about",
		Long: `flatscout searches property listing websites for listings located at the
addresses in your address book.

A search visits every selected website concurrently, matches each listing
against your addresses (exact street and house number, or the same street in
the same area) and archives the result as a report that can be exported as
text, Markdown or JSON.

Use 'flatscout serve' to run the same operations behind an HTTP API.`,
		Version:       currentVersion().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .flatscout in current or home directory)")

	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewReportsCmd())
	cmd.AddCommand(NewAddressCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
