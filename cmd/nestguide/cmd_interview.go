package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/nestguide/internal/triage/intake"
	"github.com/kingrea/nestguide/internal/tui"
)

func newInterviewCmd(rt *rootState) *cobra.Command {
	var style string
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run the triage interview in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := rt.loadCatalog()
			if err != nil {
				return err
			}
			// Console logs would tear the alternate screen, so only file
			// logging survives while the interview runs.
			logger := rt.logger
			if rt.cfg.Log.File == "" {
				logger = zap.NewNop()
			}
			emitter, err := rt.openEmitter(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer closeEmitter(emitter, logger)

			app, err := tui.NewApp(catalog,
				tui.WithMarkdownStyle(style),
				tui.WithLogger(logger),
				tui.WithIntakeOptions(
					intake.WithRecorder(emitter),
					intake.WithRegion(rt.cfg.Region),
					intake.WithLogger(logger.Named("intake")),
				),
			)
			if err != nil {
				return err
			}
			p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("interview: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "auto", "Markdown style for results (auto, dark, light, notty)")
	return cmd
}
