package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pengelbrecht/cascade/internal/feed"
	"github.com/pengelbrecht/cascade/internal/watch"
)

// Run starts the watcher and the TUI and blocks until the user quits.
// Watcher snapshots arrive as messages on the Bubble Tea event loop, so the
// model never shares mutable state with the poll goroutines.
func Run(w *watch.Watcher, cfg Config) error {
	m := New(cfg)
	m.OnStrategy = w.SetStrategy

	p := tea.NewProgram(m, tea.WithAltScreen())

	w.OnSnapshot = func(s watch.Snapshot) {
		p.Send(SnapshotMsg(s))
	}
	w.OnSessionEnd = func(status feed.Status) {
		p.Send(SessionEndMsg{Status: string(status)})
	}

	w.Start()
	defer w.Stop()

	_, err := p.Run()
	return err
}
