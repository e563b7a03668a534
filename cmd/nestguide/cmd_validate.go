package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/nestguide/internal/triage"
)

func newValidateCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog.yaml]",
		Short: "Check a triage catalog and report every defect",
		Long: `Loads a catalog and runs every structural check: dangling references,
unreachable questions, cycles, unknown tiers, unresolved group slugs and
override keys. Without an argument the configured catalog is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rt.cfg.Catalog
			if len(args) == 1 {
				path = args[0]
			}
			catalog, err := triage.Load(path)
			out := cmd.OutOrStdout()
			var invalid *triage.ValidationError
			if errors.As(err, &invalid) {
				fmt.Fprintf(out, "%s: %d problem(s)\n", displayPath(path), len(invalid.Problems))
				for _, problem := range invalid.Problems {
					fmt.Fprintf(out, "  - %s\n", problem)
				}
				return fmt.Errorf("validate: catalog is invalid")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: ok\n%s", displayPath(path), catalog.Summary())
			return nil
		},
	}
}

func displayPath(path string) string {
	if path == "" {
		return "built-in catalog"
	}
	return path
}
