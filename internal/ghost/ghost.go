// Package ghost derives ephemeral activity events from the execution log:
// tool calls, tool results, and reasoning snippets that surface briefly in
// the UI and expire on their own. Ghosts are never part of durable state.
package ghost

import (
	"sync"
	"time"

	"github.com/pengelbrecht/cascade/internal/feed"
)

// Kind classifies a ghost message.
type Kind string

const (
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindThinking   Kind = "thinking"
)

// Buffer defaults.
const (
	DefaultTTL = 30 * time.Second
	DefaultMax = 10

	// minThinkingLen is the minimum content length for a plain assistant
	// entry to surface as a thinking ghost.
	minThinkingLen = 40

	// maxPayloadLen bounds the displayed payload.
	maxPayloadLen = 120
)

// Message is one ephemeral activity event.
type Message struct {
	ID        string
	Kind      Kind
	Payload   string
	CreatedAt time.Time
}

// Derive classifies a log entry into at most one ghost message. The returned
// message has no creation time; the buffer stamps it on insert.
func Derive(row feed.LogEntry) (Message, bool) {
	switch {
	case row.Role == "assistant" && row.ToolName != "":
		return Message{ID: row.ID, Kind: KindToolCall, Payload: row.ToolName}, true
	case row.Role == "tool":
		return Message{ID: row.ID, Kind: KindToolResult, Payload: clip(row.Content)}, true
	case row.Role == "assistant" && len(row.Content) >= minThinkingLen:
		return Message{ID: row.ID, Kind: KindThinking, Payload: clip(row.Content)}, true
	}
	return Message{}, false
}

func clip(s string) string {
	if len(s) <= maxPayloadLen {
		return s
	}
	return s[:maxPayloadLen-1] + "…"
}

// Buffer holds the recent ghost window: at most Max live messages, each
// expiring TTL after creation. Expiry is evaluated against an injectable
// clock so tests need no wall-clock waits.
type Buffer struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	now  func() time.Time
	seen map[string]bool
	msgs []Message
}

// NewBuffer creates a buffer. Zero ttl and max take the defaults; a nil
// clock uses time.Now.
func NewBuffer(ttl time.Duration, max int, now func() time.Time) *Buffer {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if max == 0 {
		max = DefaultMax
	}
	if now == nil {
		now = time.Now
	}
	return &Buffer{ttl: ttl, max: max, now: now, seen: make(map[string]bool)}
}

// Observe classifies newly arrived rows and inserts the derived ghosts.
// Redelivered rows are ignored; the feed is at-least-once. The buffer is
// trimmed to capacity immediately on insert, dropping the oldest first.
func (b *Buffer) Observe(rows []feed.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, row := range rows {
		if row.ID == "" || b.seen[row.ID] {
			continue
		}
		b.seen[row.ID] = true

		msg, ok := Derive(row)
		if !ok {
			continue
		}
		msg.CreatedAt = b.now()
		b.msgs = append(b.msgs, msg)
		if len(b.msgs) > b.max {
			b.msgs = b.msgs[len(b.msgs)-b.max:]
		}
	}
}

// Active returns the live messages, oldest first, pruning any whose TTL has
// elapsed.
func (b *Buffer) Active() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-b.ttl)
	live := b.msgs[:0]
	for _, m := range b.msgs {
		if m.CreatedAt.After(cutoff) {
			live = append(live, m)
		}
	}
	b.msgs = live

	out := make([]Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

// Clear drops all messages and pending expirations. Called when the target
// session is cleared or switched.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = nil
	b.seen = make(map[string]bool)
}
