package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/nestguide/internal/telemetry"
	"github.com/kingrea/nestguide/internal/triage"
)

func newStatsCmd(rt *rootState) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print telemetry event counts from the SQL sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(dsn) == "" {
				dsn = rt.cfg.Telemetry.DSN
			}
			if strings.TrimSpace(dsn) == "" {
				return fmt.Errorf("stats: no telemetry dsn configured (set telemetry.dsn or pass --dsn)")
			}
			sink, err := telemetry.OpenSQLSink(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer sink.Close()

			counts, err := sink.Counts(cmd.Context())
			if err != nil {
				return err
			}
			tiers, err := sink.TierCounts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "events (%s)\n", sink.Driver())
			for _, name := range sortedNames(counts) {
				fmt.Fprintf(out, "  %-28s %d\n", name, counts[name])
			}
			fmt.Fprintln(out, "results by tier")
			for _, tier := range triage.Tiers {
				fmt.Fprintf(out, "  %-28s %d\n", tier, tiers[string(tier)])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN (default: telemetry.dsn)")
	return cmd
}

func sortedNames(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
