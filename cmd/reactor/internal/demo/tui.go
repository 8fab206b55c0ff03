package demo

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-drift/reactor/pkg/compositor"
	"github.com/go-drift/reactor/pkg/core"
)

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Inc  key.Binding
	Dec  key.Binding
	Save key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Inc, k.Dec, k.Save, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Inc:  key.NewBinding(key.WithKeys("+", "=", "right", "l"), key.WithHelp("+", "increment")),
	Dec:  key.NewBinding(key.WithKeys("-", "left", "h"), key.WithHelp("-", "decrement")),
	Save: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

// frameMsg tells the model a new frame reached the terminal compositor.
type frameMsg struct{}

type saveMsg struct{ err error }

// Model is the bubbletea model for the interactive demo. Key presses are
// dispatched to the engine; the view is the terminal compositor's latest
// screen.
type Model struct {
	app      *App
	term     *compositor.Terminal
	keys     keyMap
	help     help.Model
	notice   string
	quitting bool
}

// NewModel returns a model driving app and showing term.
func NewModel(app *App, term *compositor.Terminal) Model {
	return Model{app: app, term: term, keys: defaultKeys, help: help.New()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.notice = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.app.Select(-1)
		case key.Matches(msg, m.keys.Down):
			m.app.Select(1)
		case key.Matches(msg, m.keys.Inc):
			m.app.Increment(1)
		case key.Matches(msg, m.keys.Dec):
			m.app.Increment(-1)
		case key.Matches(msg, m.keys.Save):
			app := m.app
			return m, func() tea.Msg { return saveMsg{err: app.Save()} }
		}
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case saveMsg:
		if msg.err != nil {
			m.notice = "save failed: " + msg.err.Error()
		} else {
			m.notice = "saved"
		}
	case frameMsg:
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	view := m.term.View() + "\n" + m.help.View(m.keys)
	if m.notice != "" {
		view += "\n" + m.notice
	}
	return view
}

// RunTUI runs the interactive demo until the user quits or ctx is done.
func RunTUI(ctx context.Context, app *App, term *compositor.Terminal) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(app, term), tea.WithContext(runCtx), tea.WithAltScreen())
	app.Engine().Runtime().SetCompositor(compositor.Multi{
		term,
		core.CompositorFunc(func([]core.Frame) error {
			go p.Send(frameMsg{})
			return nil
		}),
	})

	go func() { _ = app.Engine().Run(runCtx) }()
	if _, err := p.Run(); err != nil && runCtx.Err() == nil {
		return fmt.Errorf("demo: tui: %w", err)
	}
	return nil
}

// RunScript applies actions one tick at a time and writes the screen after
// each tick. It is the non-interactive form of the demo.
func RunScript(app *App, term *compositor.Terminal, w io.Writer, actions []string) error {
	app.Engine().Runtime().SetCompositor(term)
	if _, err := app.Engine().Tick(); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, term.Screen(app.Window().ID())); err != nil {
		return err
	}
	for _, action := range actions {
		if err := app.Apply(action); err != nil {
			return err
		}
		if _, err := app.Engine().Tick(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", action, term.Screen(app.Window().ID())); err != nil {
			return err
		}
	}
	return nil
}
