package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pengelbrecht/cascade/internal/layout"
	"github.com/pengelbrecht/cascade/internal/watch"
)

// keyMap defines all keybindings for the cascade TUI.
type keyMap struct {
	Strategy key.Binding
	ScrollUp key.Binding
	ScrollDn key.Binding
	Quit     key.Binding
}

// ShortHelp returns bindings for the single-line help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Strategy, k.ScrollUp, k.Quit}
}

// FullHelp returns bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Strategy},
		{k.ScrollUp, k.ScrollDn},
		{k.Quit},
	}
}

var defaultKeyMap = keyMap{
	Strategy: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "layout"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("ctrl+u"),
		key.WithHelp("^d/u", "scroll"),
	),
	ScrollDn: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("^d/u", "scroll"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Message types delivered from the watcher.
type (
	// SnapshotMsg carries a fresh frame to render.
	SnapshotMsg watch.Snapshot

	// SessionEndMsg signals the session reached a terminal status.
	SessionEndMsg struct {
		Status string
	}

	// tickMsg drives ghost expiry repaints between snapshots.
	tickMsg time.Time
)

// Config holds TUI configuration.
type Config struct {
	CascadeName string
	SessionID   string
	Mode        watch.Mode
}

// Model is the main Bubble Tea model for cascade.
type Model struct {
	cascadeName string
	sessionID   string
	mode        watch.Mode
	strategy    layout.Strategy
	snap        watch.Snapshot
	ended       bool
	endStatus   string
	quitting    bool

	// OnStrategy is called when the user toggles the layout strategy, so
	// the watcher recomputes subsequent snapshots to match.
	OnStrategy func(layout.Strategy)

	keys     keyMap
	help     help.Model
	activity viewport.Model
	startAt  time.Time

	width  int
	height int
}

// New creates the TUI model.
func New(cfg Config) Model {
	vp := viewport.New(60, activityHeight)
	vp.SetContent("Waiting for activity...")

	h := help.New()
	h.Styles.ShortKey = footerStyle.Bold(true)
	h.Styles.ShortDesc = footerStyle
	h.Styles.ShortSeparator = footerStyle

	return Model{
		cascadeName: cfg.CascadeName,
		sessionID:   cfg.SessionID,
		mode:        cfg.Mode,
		keys:        defaultKeyMap,
		help:        h,
		activity:    vp,
		startAt:     time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			if m.strategy == layout.StrategyGraph {
				m.strategy = layout.StrategyLinear
			} else {
				m.strategy = layout.StrategyGraph
			}
			if m.OnStrategy != nil {
				m.OnStrategy(m.strategy)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.activity.Width = msg.Width - 4
		m.activity.Height = activityHeight

	case SnapshotMsg:
		m.snap = watch.Snapshot(msg)
		m.sessionID = m.snap.SessionID
		m.mode = m.snap.Mode
		m.activity.SetContent(renderActivity(m.snap.Ghosts))
		m.activity.GotoBottom()

	case SessionEndMsg:
		m.ended = true
		m.endStatus = msg.Status

	case tickMsg:
		// Repaint so expired ghosts drop out even with no new snapshot.
		return m, tick()
	}

	var cmd tea.Cmd
	m.activity, cmd = m.activity.Update(msg)
	return m, cmd
}
