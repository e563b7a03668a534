package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/nestguide/internal/config"
)

func newInitCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented nestguide.yaml with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(rt.configPath)
			created, err := config.EnsureFile(path)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			}
			return nil
		},
	}
}
