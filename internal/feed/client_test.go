package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchLog(t *testing.T) {
	var gotSession, gotAfter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.URL.Query().Get("session")
		gotAfter = r.URL.Query().Get("after")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"rows": [
				{"id": "r1", "timestamp": 1700000000000, "role": "assistant", "cell_name": "extract", "cost": 0.02},
				{"id": "r2", "role": "tool", "tool_name": "read_file"}
			],
			"cursor": "1700000000000-r2",
			"session_status": "running",
			"total_cost": 0.02
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	batch, err := c.FetchLog(context.Background(), "sess-1", "1699999999999-r0")
	if err != nil {
		t.Fatalf("FetchLog() error = %v", err)
	}

	if gotSession != "sess-1" {
		t.Errorf("session param = %q, want %q", gotSession, "sess-1")
	}
	if gotAfter != "1699999999999-r0" {
		t.Errorf("after param = %q, want %q", gotAfter, "1699999999999-r0")
	}
	if len(batch.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(batch.Rows))
	}
	if batch.Rows[0].CellName != "extract" || batch.Rows[0].Cost != 0.02 {
		t.Errorf("row 0 = %+v", batch.Rows[0])
	}
	if batch.Cursor != "1700000000000-r2" {
		t.Errorf("Cursor = %q, want %q", batch.Cursor, "1700000000000-r2")
	}
	if batch.SessionStatus != StatusRunning {
		t.Errorf("SessionStatus = %q, want %q", batch.SessionStatus, StatusRunning)
	}
}

func TestFetchLogPartialResponse(t *testing.T) {
	// Missing fields are not an error; they decode to zero values.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cursor": "c1"}`))
	}))
	defer srv.Close()

	batch, err := NewClient(srv.URL, "").FetchLog(context.Background(), "s", "")
	if err != nil {
		t.Fatalf("FetchLog() error = %v", err)
	}
	if len(batch.Rows) != 0 {
		t.Errorf("len(Rows) = %d, want 0", len(batch.Rows))
	}
	if batch.SessionStatus != "" || batch.TotalCost != 0 {
		t.Errorf("batch = %+v, want zero metadata", batch)
	}
}

func TestFetchLogErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantIn  string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantIn: "unexpected status 500",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"rows": [`))
			},
			wantIn: "decoding response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, "").FetchLog(context.Background(), "s", "")
			if err == nil {
				t.Fatal("FetchLog() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantIn)
			}
		})
	}
}

func TestFetchCheckpoints(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.URL.Query().Get("session_id")
		_, _ = w.Write([]byte(`{"checkpoints": [
			{"id": "cp1", "status": "resolved"},
			{"id": "cp2", "status": "pending", "prompt": "Ship it?", "stage": "review"}
		]}`))
	}))
	defer srv.Close()

	cps, err := NewClient("", srv.URL).FetchCheckpoints(context.Background(), "sess-2")
	if err != nil {
		t.Fatalf("FetchCheckpoints() error = %v", err)
	}
	if gotSession != "sess-2" {
		t.Errorf("session_id param = %q, want %q", gotSession, "sess-2")
	}
	if len(cps) != 2 {
		t.Fatalf("len(checkpoints) = %d, want 2", len(cps))
	}
	if cps[1].Status != "pending" || cps[1].Prompt != "Ship it?" || cps[1].Stage != "review" {
		t.Errorf("checkpoint 1 = %+v", cps[1])
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusError, StatusCancelled, StatusOrphaned}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	live := []Status{StatusStarting, StatusRunning, StatusBlocked, ""}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%q.IsTerminal() = true, want false", s)
		}
	}
}
