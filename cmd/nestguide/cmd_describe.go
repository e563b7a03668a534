package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kingrea/nestguide/internal/triage"
)

func newDescribeCmd(rt *rootState) *cobra.Command {
	var (
		raw   bool
		style string
		width int
	)
	cmd := &cobra.Command{
		Use:   "describe [symptom]",
		Short: "Render a symptom's decision graph, or the whole catalog, as markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := rt.loadCatalog()
			if err != nil {
				return err
			}
			markdown := catalog.Markdown()
			if len(args) == 1 {
				symptom, ok := catalog.Symptom(args[0])
				if !ok {
					return fmt.Errorf("describe: unknown symptom %q (known: %v)", args[0], catalog.SymptomSlugs())
				}
				markdown = triage.RenderMarkdown(symptom)
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err := fmt.Fprint(out, markdown)
				return err
			}
			renderer, err := newMarkdownRenderer(style, width)
			if err != nil {
				return fmt.Errorf("describe: %w", err)
			}
			rendered, err := renderer.Render(markdown)
			if err != nil {
				return fmt.Errorf("describe: render: %w", err)
			}
			_, err = fmt.Fprint(out, rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal styling")
	cmd.Flags().StringVar(&style, "style", "auto", "Glamour style (auto, dark, light, notty)")
	cmd.Flags().IntVar(&width, "width", 100, "Word wrap width")
	return cmd
}

func newMarkdownRenderer(style string, width int) (*glamour.TermRenderer, error) {
	if style == "" || style == "auto" {
		return glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
	}
	return glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
}
