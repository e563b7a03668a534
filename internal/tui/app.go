// internal/tui/app.go
//
// This is the terminal interview for nestguide. It uses bubbletea, which
// follows The Elm Architecture: key presses become messages, Update feeds
// them to the intake dispatcher, and View renders the dispatcher's snapshot.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/kingrea/nestguide/internal/triage"
	"github.com/kingrea/nestguide/internal/triage/intake"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	wordWrap      = 76
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithIntakeOptions passes options to the interview's dispatcher.
func WithIntakeOptions(opts ...intake.Option) AppOption {
	return func(a *App) {
		a.intakeOpts = append(a.intakeOpts, opts...)
	}
}

// WithMarkdownStyle selects the glamour style used for results ("auto",
// "dark", "light", "notty").
func WithMarkdownStyle(style string) AppOption {
	return func(a *App) {
		if style = strings.TrimSpace(style); style != "" {
			a.markdownStyle = style
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// choiceItem implements list.Item for age groups, symptom groups and
// sub-symptoms.
type choiceItem struct {
	id    string
	title string
	desc  string
}

func (i choiceItem) Title() string       { return i.title }
func (i choiceItem) Description() string { return i.desc }
func (i choiceItem) FilterValue() string { return i.title }

// App is the interview model. All interview state lives in the dispatcher;
// App only keeps view state such as the help toggles and window size.
type App struct {
	catalog    *triage.Catalog
	dispatcher *intake.Dispatcher
	intakeOpts []intake.Option
	logger     *zap.Logger

	markdownStyle string
	renderer      *glamour.TermRenderer

	view     intake.View
	menu     list.Model
	keys     keyMap
	help     help.Model
	showHint bool
	err      error

	width  int
	height int
}

// NewApp starts an interview against catalog.
func NewApp(catalog *triage.Catalog, opts ...AppOption) (*App, error) {
	app := &App{
		catalog:       catalog,
		logger:        zap.NewNop(),
		markdownStyle: "auto",
		keys:          defaultKeyMap(),
		help:          help.New(),
		width:         defaultWidth,
		height:        defaultHeight,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	dispatcher, err := intake.New(catalog, app.intakeOpts...)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	app.dispatcher = dispatcher

	renderer, err := newRenderer(app.markdownStyle)
	if err != nil {
		app.logger.Warn("markdown renderer unavailable", zap.Error(err))
	}
	app.renderer = renderer

	menu := list.New(nil, list.NewDefaultDelegate(), defaultWidth-4, defaultHeight-8)
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	menu.SetShowHelp(false)
	menu.DisableQuitKeybindings()
	app.menu = menu

	app.sync()
	return app, nil
}

func newRenderer(style string) (*glamour.TermRenderer, error) {
	if style == "auto" {
		return glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrap),
		)
	}
	return glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(wordWrap),
	)
}

// Stage reports the interview's current stage.
func (a *App) Stage() intake.Stage { return a.dispatcher.Stage() }

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd { return nil }

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.menu.SetSize(max(0, msg.Width-4), max(0, msg.Height-8))
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Help):
			a.help.ShowAll = !a.help.ShowAll
			return a, nil
		case key.Matches(msg, a.keys.Reset):
			a.dispatcher.Reset()
			a.err = nil
			a.sync()
			return a, nil
		case key.Matches(msg, a.keys.Hint):
			a.showHint = !a.showHint
			return a, nil
		}
		return a, a.handleStageKey(msg)
	}
	return a, nil
}

func (a *App) handleStageKey(msg tea.KeyMsg) tea.Cmd {
	switch a.view.Stage {
	case intake.StageEmergency, intake.StageSymptomQuestions:
		var answer triage.Answer
		switch {
		case key.Matches(msg, a.keys.Yes):
			answer = triage.AnswerYes
		case key.Matches(msg, a.keys.No):
			answer = triage.AnswerNo
		default:
			return nil
		}
		if a.view.Stage == intake.StageEmergency {
			a.apply(a.dispatcher.AnswerEmergency(answer))
		} else {
			a.apply(a.dispatcher.AnswerSymptomQuestion(answer))
		}
		return nil

	case intake.StageAgeSelect, intake.StageSymptomGroup, intake.StageSubSymptom:
		if key.Matches(msg, a.keys.Select) {
			item, ok := a.menu.SelectedItem().(choiceItem)
			if !ok {
				return nil
			}
			a.apply(a.choose(item.id))
			return nil
		}
		var cmd tea.Cmd
		a.menu, cmd = a.menu.Update(msg)
		return cmd

	case intake.StageResult:
		if key.Matches(msg, a.keys.Select) {
			a.dispatcher.Reset()
			a.sync()
		}
	}
	return nil
}

func (a *App) choose(id string) error {
	switch a.view.Stage {
	case intake.StageAgeSelect:
		return a.dispatcher.SelectAge(id)
	case intake.StageSymptomGroup:
		return a.dispatcher.SelectSymptomGroup(id)
	default:
		return a.dispatcher.SelectSubSymptom(id)
	}
}

// apply records a failed transition for display; the dispatcher state is
// unchanged in that case.
func (a *App) apply(err error) {
	if err != nil {
		a.err = err
		a.logger.Warn("interview step rejected", zap.Error(err))
		return
	}
	a.err = nil
	a.sync()
}

// sync refreshes the snapshot and rebuilds the choice list for list stages.
func (a *App) sync() {
	a.view = a.dispatcher.Snapshot()
	a.showHint = false

	var items []list.Item
	switch a.view.Stage {
	case intake.StageAgeSelect:
		a.menu.Title = "How old is your child?"
		for _, group := range a.view.AgeGroups {
			items = append(items, choiceItem{id: group.ID, title: group.Label, desc: group.Description})
		}
	case intake.StageSymptomGroup:
		a.menu.Title = "What is worrying you most?"
		for _, group := range a.view.SymptomGroups {
			title := group.Label
			if group.Icon != "" {
				title = group.Icon + " " + title
			}
			items = append(items, choiceItem{id: group.ID, title: title, desc: group.Description})
		}
	case intake.StageSubSymptom:
		a.menu.Title = "Which fits best?"
		for _, choice := range a.view.SubSymptoms {
			items = append(items, choiceItem{id: choice.Slug, title: choice.Name, desc: choice.Description})
		}
	}
	a.menu.SetItems(items)
	a.menu.ResetSelected()
	a.updateKeys()
}

func (a *App) updateKeys() {
	answering := a.view.Stage == intake.StageEmergency || a.view.Stage == intake.StageSymptomQuestions
	choosing := a.view.Stage == intake.StageAgeSelect ||
		a.view.Stage == intake.StageSymptomGroup ||
		a.view.Stage == intake.StageSubSymptom
	a.keys.Yes.SetEnabled(answering)
	a.keys.No.SetEnabled(answering)
	a.keys.Up.SetEnabled(choosing)
	a.keys.Down.SetEnabled(choosing)
	a.keys.Select.SetEnabled(choosing || a.view.Stage == intake.StageResult)
	a.keys.Hint.SetEnabled(a.currentPrompt().Help != "")
}

func (a *App) currentPrompt() intake.Prompt {
	switch {
	case a.view.Emergency != nil:
		return a.view.Emergency.Prompt
	case a.view.Symptom != nil:
		return a.view.Symptom.Question
	default:
		return intake.Prompt{}
	}
}

// View renders the current stage.
func (a *App) View() string {
	sections := []string{headerStyle.Render("✚ nestguide · symptom check")}
	sections = append(sections, a.renderStage())
	if a.err != nil {
		sections = append(sections, errorStyle.Render("⚠ "+a.err.Error()))
	}
	sections = append(sections, footerStyle.Render(a.help.View(a.keys)))
	return strings.Join(sections, "\n")
}
