package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/nestguide/internal/triage"
	"github.com/kingrea/nestguide/internal/triage/intake"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	questionStyle = lipgloss.NewStyle().Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Italic(true)
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

func (a *App) renderStage() string {
	width := max(20, a.width-4)
	switch a.view.Stage {
	case intake.StageEmergency:
		if a.view.Emergency == nil {
			return ""
		}
		progress := fmt.Sprintf("Safety check %d of %d", a.view.Emergency.Position, a.view.Emergency.Total)
		return a.renderQuestion(progress, "", a.view.Emergency.Prompt, width)

	case intake.StageAgeSelect, intake.StageSymptomGroup, intake.StageSubSymptom:
		view := a.menu.View()
		if strings.TrimSpace(view) == "" {
			view = "Nothing to choose from"
		}
		return view

	case intake.StageSymptomQuestions:
		if a.view.Symptom == nil {
			return ""
		}
		s := a.view.Symptom
		progress := fmt.Sprintf("%s · question %d of at most %d", s.Name, len(s.Answered)+1, s.MaxSteps)
		return a.renderQuestion(progress, s.AgeNote, s.Question, width)

	case intake.StageResult:
		if a.view.Result == nil {
			return ""
		}
		return a.renderResult(*a.view.Result)
	}
	return ""
}

func (a *App) renderQuestion(progress, note string, prompt intake.Prompt, width int) string {
	lines := []string{progressStyle.Render(progress), "", questionStyle.Width(width).Render(prompt.Text)}
	if note != "" {
		lines = append(lines, noteStyle.Width(width).Render(note))
	}
	if prompt.Help != "" {
		if a.showHint {
			lines = append(lines, "", hintStyle.Width(width).Render(prompt.Help))
		} else {
			lines = append(lines, "", progressStyle.Render("Press i for more information."))
		}
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (a *App) renderResult(view intake.ResultView) string {
	badge := tierBadge(view.Result.Tier, view.Display)
	body := a.renderMarkdown(triage.ResultMarkdown(view.Result, view.Display))
	hint := progressStyle.Render("Press enter or r to start a new check.")
	return lipgloss.JoinVertical(lipgloss.Left, badge, body, hint)
}

// tierBadge renders the tier label on the tier's configured colour.
func tierBadge(tier triage.Tier, display triage.Display) string {
	label := display.Label
	if label == "" {
		label = string(tier)
	}
	style := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#FFFFFF"))
	if display.Color != "" {
		style = style.Background(lipgloss.Color(display.Color))
	}
	return style.Render(strings.ToUpper(label))
}

func (a *App) renderMarkdown(markdown string) string {
	if a.renderer == nil {
		return markdown
	}
	out, err := a.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
