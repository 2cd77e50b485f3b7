// Package watch wires the feed poller, reconciler, ghost buffer, and layout
// engine together around one target session, and hands consistent snapshots
// to the UI.
package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pengelbrecht/cascade/internal/feed"
	"github.com/pengelbrecht/cascade/internal/ghost"
	"github.com/pengelbrecht/cascade/internal/layout"
	"github.com/pengelbrecht/cascade/internal/pipeline"
	"github.com/pengelbrecht/cascade/internal/reconcile"
)

// Mode distinguishes watching a live session from replaying a finished one.
// Both poll the same endpoints; a replay target drains history and stops once
// the terminal grace window elapses.
type Mode int

const (
	ModeLive Mode = iota
	ModeReplay
)

func (m Mode) String() string {
	if m == ModeReplay {
		return "replay"
	}
	return "live"
}

// Config configures a Watcher.
type Config struct {
	// Definition is the cascade definition to visualize.
	Definition *pipeline.Definition

	// SessionID is the initial target session.
	SessionID string

	// Mode selects live or replay.
	Mode Mode

	// Strategy selects the layout arrangement.
	Strategy layout.Strategy

	// LogURL and CheckpointURL are the remote endpoints.
	LogURL        string
	CheckpointURL string

	// Poller overrides poll intervals and scheduling (tests).
	Poller feed.PollerConfig

	// GhostTTL and GhostMax bound the activity window. Zero takes defaults.
	GhostTTL time.Duration
	GhostMax int

	// Logger is shared by all subsystems. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// Snapshot is everything the UI needs to render one frame.
type Snapshot struct {
	SessionID string
	Mode      Mode
	Layout    *layout.Layout
	Session   reconcile.SessionState
	Stages    map[string]reconcile.StageAggregate
	Ghosts    []ghost.Message
	Warnings  []string
}

// Watcher owns one target session at a time.
type Watcher struct {
	mu         sync.Mutex
	config     Config
	log        zerolog.Logger
	graph      *pipeline.Graph
	client     *feed.Client
	reconciler *reconcile.Reconciler
	ghosts     *ghost.Buffer
	poller     *feed.Poller

	// OnSnapshot is invoked after every applied update. Optional.
	OnSnapshot func(Snapshot)

	// OnSessionEnd is invoked once when the session status turns terminal.
	// Optional.
	OnSessionEnd func(status feed.Status)

	ended bool
}

// New builds a watcher for the configured definition and target session.
func New(config Config) (*Watcher, error) {
	if config.Definition == nil {
		return nil, fmt.Errorf("watch: definition is required")
	}
	if config.SessionID == "" {
		return nil, fmt.Errorf("watch: session id is required")
	}
	config.Poller.Logger = config.Logger

	w := &Watcher{
		config:     config,
		log:        config.Logger,
		graph:      pipeline.BuildGraph(config.Definition),
		client:     feed.NewClient(config.LogURL, config.CheckpointURL),
		reconciler: reconcile.New(config.Logger),
		ghosts:     ghost.NewBuffer(config.GhostTTL, config.GhostMax, nil),
	}
	for _, warning := range w.graph.Warnings {
		w.log.Warn().Msg(warning)
	}
	return w, nil
}

// Start begins polling the target session.
func (w *Watcher) Start() {
	w.mu.Lock()
	sessionID := w.config.SessionID
	mode := w.config.Mode
	w.reconciler.SetTarget(sessionID)
	p := feed.NewPoller(w.client, sessionID, w.config.Poller)
	p.OnUpdate = w.handleUpdate
	p.OnCheckpoints = w.handleCheckpoints
	w.poller = p
	w.mu.Unlock()

	p.Start()
	w.log.Info().
		Str("session", sessionID).
		Str("mode", mode.String()).
		Msg("watching")
}

// Stop tears the current target down: the poller stops and no further
// snapshot is emitted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	p := w.poller
	w.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// SwitchTarget tears down the current target, clears all derived state, and
// starts polling the new session. Teardown completes before any result for
// the new target can be applied.
func (w *Watcher) SwitchTarget(sessionID string, mode Mode) {
	w.Stop()
	w.ghosts.Clear()

	w.mu.Lock()
	w.ended = false
	w.config.SessionID = sessionID
	w.config.Mode = mode
	w.mu.Unlock()

	w.Start()
}

// SetStrategy changes the layout arrangement. Takes effect on the next
// snapshot.
func (w *Watcher) SetStrategy(s layout.Strategy) {
	w.mu.Lock()
	w.config.Strategy = s
	w.mu.Unlock()
}

func (w *Watcher) handleUpdate(u feed.Update) {
	w.mu.Lock()
	current := w.config.SessionID
	w.mu.Unlock()

	// An in-flight fetch for the previous target can land during a switch,
	// after the ghost buffer was cleared. Stale deliveries are dropped whole;
	// the reconciler applies the same guard for its own state.
	if u.SessionID != current {
		w.log.Debug().Str("session", u.SessionID).Msg("discarding stale update")
		return
	}

	w.reconciler.Apply(u)
	if u.Batch != nil {
		w.ghosts.Observe(u.Batch.Rows)
	}
	w.emit()
}

func (w *Watcher) handleCheckpoints(sessionID string, cps []feed.Checkpoint) {
	w.reconciler.ApplyCheckpoints(sessionID, cps)
	w.emit()
}

func (w *Watcher) emit() {
	snap := w.Snapshot()

	w.mu.Lock()
	fireEnd := snap.Session.Status.IsTerminal() && !w.ended
	if fireEnd {
		w.ended = true
	}
	w.mu.Unlock()

	if fireEnd && w.OnSessionEnd != nil {
		w.OnSessionEnd(snap.Session.Status)
	}
	if w.OnSnapshot != nil {
		w.OnSnapshot(snap)
	}
}

// Snapshot recomputes the layout from current reconciled state and returns a
// consistent frame.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	sessionID := w.config.SessionID
	mode := w.config.Mode
	strategy := w.config.Strategy
	w.mu.Unlock()

	rs := w.reconciler.Snapshot()

	metrics := make(map[string]layout.Metrics, len(rs.Stages))
	for name, agg := range rs.Stages {
		metrics[name] = layout.Metrics{Cost: agg.Cost, DurationMs: agg.DurationMs}
	}

	return Snapshot{
		SessionID: sessionID,
		Mode:      mode,
		Layout:    layout.Compute(w.graph, strategy, metrics, layout.Options{}),
		Session:   rs.Session,
		Stages:    rs.Stages,
		Ghosts:    w.ghosts.Active(),
		Warnings:  w.graph.Warnings,
	}
}
