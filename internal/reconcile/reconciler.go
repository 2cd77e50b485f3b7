// Package reconcile folds the at-least-once poll feed into consistent
// per-stage aggregates, a session-level status, and an ordered in-memory log
// of the session's entries. Reconciliation is idempotent under duplicate
// delivery and guarded against updates for sessions that are no longer the
// active target.
package reconcile

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/pengelbrecht/cascade/internal/feed"
)

// StageStatus is a stage's derived execution status.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageError     StageStatus = "error"
)

// terminal reports whether a stage status accepts no further transitions.
func (s StageStatus) terminal() bool {
	return s == StageCompleted || s == StageError
}

// StageAggregate is the rolled-up state of one stage (cell).
type StageAggregate struct {
	Name      string
	Status    StageStatus
	Cost      float64
	TokensIn  int
	TokensOut int

	// Turns counts assistant entries seen for the stage.
	Turns int

	// FirstSeen and LastSeen are unix-millisecond bounds of the stage's
	// entries.
	FirstSeen int64
	LastSeen  int64

	// DurationMs is the explicit duration when the log reported one,
	// otherwise LastSeen - FirstSeen.
	DurationMs int64

	explicitDuration bool
}

// SessionState is the session-level view owned by the reconciler.
type SessionState struct {
	SessionID string
	Status    feed.Status
	TotalCost float64
	Error     string

	// PendingCheckpoint is the first checkpoint awaiting a human, or nil.
	PendingCheckpoint *feed.Checkpoint
}

// Running reports whether the session is still making progress.
func (s SessionState) Running() bool {
	return s.Status != "" && !s.Status.IsTerminal()
}

// Snapshot is a consistent copy of reconciled state for rendering.
type Snapshot struct {
	Session SessionState
	Stages  map[string]StageAggregate
}

// Reconciler consumes poller updates for the active target session. It is
// safe for concurrent use by the log and checkpoint poll loops.
type Reconciler struct {
	mu      sync.Mutex
	log     zerolog.Logger
	active  string
	seen    map[string]bool
	entries []feed.LogEntry
	stages  map[string]*StageAggregate
	session SessionState
}

// New creates a reconciler with no active target.
func New(logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		log:    logger,
		seen:   make(map[string]bool),
		stages: make(map[string]*StageAggregate),
	}
}

// SetTarget tears down all state and makes sessionID the active target.
// Updates tagged for any other session are discarded from here on.
func (r *Reconciler) SetTarget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = sessionID
	r.seen = make(map[string]bool)
	r.entries = nil
	r.stages = make(map[string]*StageAggregate)
	r.session = SessionState{SessionID: sessionID}
	if sessionID != "" {
		r.session.Status = feed.StatusStarting
	}
}

// Apply folds one poll update into the aggregates. Duplicate rows and stale
// updates are discarded silently.
func (r *Reconciler) Apply(u feed.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.SessionID != r.active {
		// A slow response from an abandoned session must not flip the
		// active session's state.
		r.log.Debug().Str("session", u.SessionID).Msg("discarding stale update")
		return
	}
	if u.Batch == nil {
		return
	}

	for _, row := range u.Batch.Rows {
		if row.ID == "" || r.seen[row.ID] {
			continue
		}
		r.seen[row.ID] = true
		r.entries = append(r.entries, row)
		r.applyRow(row)
	}

	r.applySessionMeta(u.Batch)
}

// applyRow aggregates one new log entry into its stage.
func (r *Reconciler) applyRow(row feed.LogEntry) {
	if row.CellName == "" {
		return
	}
	agg := r.stages[row.CellName]
	if agg == nil {
		agg = &StageAggregate{Name: row.CellName, Status: StagePending}
		r.stages[row.CellName] = agg
	}

	if agg.Status == StagePending {
		agg.Status = StageRunning
	}
	switch StageStatus(row.CellStatus) {
	case StageCompleted, StageError:
		if !agg.Status.terminal() {
			agg.Status = StageStatus(row.CellStatus)
		}
	}

	agg.Cost += row.Cost
	agg.TokensIn += row.TokensIn
	agg.TokensOut += row.TokensOut
	if row.Role == "assistant" {
		agg.Turns++
	}

	if row.Timestamp > 0 {
		if agg.FirstSeen == 0 || row.Timestamp < agg.FirstSeen {
			agg.FirstSeen = row.Timestamp
		}
		if row.Timestamp > agg.LastSeen {
			agg.LastSeen = row.Timestamp
		}
	}
	if row.DurationMs > 0 {
		agg.DurationMs = row.DurationMs
		agg.explicitDuration = true
	} else if !agg.explicitDuration && agg.LastSeen > agg.FirstSeen {
		agg.DurationMs = agg.LastSeen - agg.FirstSeen
	}
}

// applySessionMeta applies session-level batch fields. Terminal statuses are
// a one-way trapdoor for a given session.
func (r *Reconciler) applySessionMeta(batch *feed.LogBatch) {
	if batch.SessionStatus != "" {
		if r.session.Status.IsTerminal() && !batch.SessionStatus.IsTerminal() {
			r.log.Debug().
				Str("status", string(batch.SessionStatus)).
				Msg("ignoring non-terminal status after terminal")
		} else {
			r.session.Status = batch.SessionStatus
		}
	}
	if batch.SessionError != "" {
		r.session.Error = batch.SessionError
	}
	if batch.TotalCost != 0 {
		r.session.TotalCost = batch.TotalCost
	}
}

// ApplyCheckpoints surfaces the first pending checkpoint, or clears it.
// Stale deliveries are discarded like log updates.
func (r *Reconciler) ApplyCheckpoints(sessionID string, cps []feed.Checkpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionID != r.active {
		r.log.Debug().Str("session", sessionID).Msg("discarding stale checkpoints")
		return
	}

	r.session.PendingCheckpoint = nil
	for i := range cps {
		if cps[i].Status == "pending" {
			cp := cps[i]
			r.session.PendingCheckpoint = &cp
			break
		}
	}
}

// Entries returns a copy of the active session's log: every applied row in
// arrival order, each exactly once. Duplicate deliveries never re-append.
func (r *Reconciler) Entries() []feed.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]feed.LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Snapshot returns a consistent copy of the reconciled state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Session: r.session,
		Stages:  make(map[string]StageAggregate, len(r.stages)),
	}
	if r.session.PendingCheckpoint != nil {
		cp := *r.session.PendingCheckpoint
		snap.Session.PendingCheckpoint = &cp
	}
	for name, agg := range r.stages {
		snap.Stages[name] = *agg
	}
	return snap
}
