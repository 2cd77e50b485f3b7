package ghost

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pengelbrecht/cascade/internal/feed"
)

func TestDerive(t *testing.T) {
	long := strings.Repeat("reasoning about the next step ", 3)

	tests := []struct {
		name     string
		row      feed.LogEntry
		wantKind Kind
		wantOK   bool
	}{
		{
			name:     "assistant tool call",
			row:      feed.LogEntry{ID: "r1", Role: "assistant", ToolName: "read_file", Content: long},
			wantKind: KindToolCall,
			wantOK:   true,
		},
		{
			name:     "tool result",
			row:      feed.LogEntry{ID: "r2", Role: "tool", Content: "42 rows"},
			wantKind: KindToolResult,
			wantOK:   true,
		},
		{
			name:     "long assistant text is thinking",
			row:      feed.LogEntry{ID: "r3", Role: "assistant", Content: long},
			wantKind: KindThinking,
			wantOK:   true,
		},
		{
			name:   "short assistant text ignored",
			row:    feed.LogEntry{ID: "r4", Role: "assistant", Content: "ok"},
			wantOK: false,
		},
		{
			name:   "user row ignored",
			row:    feed.LogEntry{ID: "r5", Role: "user", Content: long},
			wantOK: false,
		},
		{
			name:   "system row ignored",
			row:    feed.LogEntry{ID: "r6", Role: "system", Content: long},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := Derive(tt.row)
			if ok != tt.wantOK {
				t.Fatalf("Derive() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", msg.Kind, tt.wantKind)
			}
			if msg.ID != tt.row.ID {
				t.Errorf("ID = %q, want %q", msg.ID, tt.row.ID)
			}
		})
	}
}

func TestDeriveToolCallPayloadIsToolName(t *testing.T) {
	msg, ok := Derive(feed.LogEntry{ID: "r1", Role: "assistant", ToolName: "web_search", Content: "searching"})
	if !ok {
		t.Fatal("Derive() ok = false, want true")
	}
	if msg.Payload != "web_search" {
		t.Errorf("Payload = %q, want %q", msg.Payload, "web_search")
	}
}

func TestDeriveClipsPayload(t *testing.T) {
	msg, ok := Derive(feed.LogEntry{ID: "r1", Role: "tool", Content: strings.Repeat("x", 500)})
	if !ok {
		t.Fatal("Derive() ok = false, want true")
	}
	if len(msg.Payload) > maxPayloadLen+2 { // ellipsis is multi-byte
		t.Errorf("len(Payload) = %d, want clipped to ~%d", len(msg.Payload), maxPayloadLen)
	}
	if !strings.HasSuffix(msg.Payload, "…") {
		t.Errorf("Payload = %q, want ellipsis suffix", msg.Payload)
	}
}

func TestBufferTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBuffer(30*time.Second, 0, func() time.Time { return now })

	b.Observe([]feed.LogEntry{{ID: "r1", Role: "tool", Content: "first"}})
	now = now.Add(20 * time.Second)
	b.Observe([]feed.LogEntry{{ID: "r2", Role: "tool", Content: "second"}})

	if got := len(b.Active()); got != 2 {
		t.Fatalf("len(Active()) = %d, want 2", got)
	}

	// 31s after r1, 11s after r2: only r2 survives.
	now = now.Add(11 * time.Second)
	active := b.Active()
	if len(active) != 1 || active[0].ID != "r2" {
		t.Fatalf("Active() = %+v, want only r2", active)
	}

	now = now.Add(30 * time.Second)
	if got := len(b.Active()); got != 0 {
		t.Errorf("len(Active()) = %d after full TTL, want 0", got)
	}
}

func TestBufferCapDropsOldest(t *testing.T) {
	b := NewBuffer(0, 3, func() time.Time { return time.Unix(1000, 0) })

	var rows []feed.LogEntry
	for i := 0; i < 5; i++ {
		rows = append(rows, feed.LogEntry{ID: fmt.Sprintf("r%d", i), Role: "tool", Content: "out"})
	}
	b.Observe(rows)

	active := b.Active()
	if len(active) != 3 {
		t.Fatalf("len(Active()) = %d, want 3", len(active))
	}
	for i, want := range []string{"r2", "r3", "r4"} {
		if active[i].ID != want {
			t.Errorf("Active()[%d].ID = %q, want %q", i, active[i].ID, want)
		}
	}
}

func TestBufferIgnoresRedeliveredRows(t *testing.T) {
	b := NewBuffer(0, 0, func() time.Time { return time.Unix(1000, 0) })

	row := feed.LogEntry{ID: "r1", Role: "tool", Content: "out"}
	b.Observe([]feed.LogEntry{row})
	b.Observe([]feed.LogEntry{row})

	if got := len(b.Active()); got != 1 {
		t.Errorf("len(Active()) = %d, want 1 (redelivery must not duplicate)", got)
	}
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(0, 0, func() time.Time { return time.Unix(1000, 0) })
	b.Observe([]feed.LogEntry{{ID: "r1", Role: "tool", Content: "out"}})

	b.Clear()
	if got := len(b.Active()); got != 0 {
		t.Fatalf("len(Active()) = %d after Clear, want 0", got)
	}

	// Clear also resets dedup: the same row may surface again for a new
	// target session.
	b.Observe([]feed.LogEntry{{ID: "r1", Role: "tool", Content: "out"}})
	if got := len(b.Active()); got != 1 {
		t.Errorf("len(Active()) = %d after re-observe, want 1", got)
	}
}
