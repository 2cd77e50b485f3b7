// Package feed fetches execution data for a cascade session from the remote
// append-only log: incremental log rows behind an opaque cursor, plus
// checkpoint state. Delivery is at-least-once; deduplication is the
// reconciler's job.
package feed

// LogEntry is one immutable row of the execution log.
type LogEntry struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Role      string  `json:"role"`
	ToolName  string  `json:"tool_name,omitempty"`
	CellName  string  `json:"cell_name,omitempty"`
	Content   string  `json:"content"`
	TokensIn  int     `json:"tokens_in,omitempty"`
	TokensOut int     `json:"tokens_out,omitempty"`
	Cost      float64 `json:"cost,omitempty"`

	// CellStatus is an explicit stage status transition reported by the
	// execution engine ("running", "completed", "error").
	CellStatus string `json:"cell_status,omitempty"`

	// DurationMs is an explicit stage duration, when the log reports one.
	DurationMs int64 `json:"duration_ms,omitempty"`

	ContextHashes []string `json:"context_hashes,omitempty"`
}

// Status is a session status as reported on the wire.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusBlocked   Status = "blocked"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
	StatusOrphaned  Status = "orphaned"
)

// IsTerminal reports whether the status is a one-way trapdoor: a session that
// reaches it never returns to a non-terminal status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled, StatusOrphaned:
		return true
	}
	return false
}

// LogBatch is one incremental log fetch result. Missing fields decode to
// zero values; a partial response is not an error.
type LogBatch struct {
	Rows          []LogEntry `json:"rows"`
	Cursor        string     `json:"cursor"`
	SessionStatus Status     `json:"session_status,omitempty"`
	SessionError  string     `json:"session_error,omitempty"`
	TotalCost     float64    `json:"total_cost,omitempty"`
}

// Checkpoint is one entry from the checkpoint endpoint.
type Checkpoint struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Prompt string `json:"prompt,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// checkpointResponse is the checkpoint endpoint's wire envelope.
type checkpointResponse struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
}
