package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show address book and archive statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.store.Stats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Addresses:     %d\n", s.Addresses)
				fmt.Fprintf(out, "Reports:       %d\n", s.Reports)
				fmt.Fprintf(out, "Total matches: %d\n", s.TotalMatches)
				return nil
			})
		},
	}
}
