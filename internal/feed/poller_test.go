package feed

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// manualScheduler fires ticks only when the test says so, keeping poller
// tests off the wall clock.
type manualScheduler struct {
	mu      sync.Mutex
	tick    func()
	stopped bool
}

func (s *manualScheduler) Start(_ time.Duration, tick func()) {
	s.mu.Lock()
	s.tick = tick
	s.stopped = false
	s.mu.Unlock()
}

func (s *manualScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	tick := s.tick
	s.mu.Unlock()
	if tick != nil {
		tick()
	}
}

func (s *manualScheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// newTestPoller builds a poller against url with manual schedulers injected.
// NewPoller builds the log scheduler first, then the checkpoint scheduler.
func newTestPoller(t *testing.T, url string, cfg PollerConfig) (*Poller, *manualScheduler, *manualScheduler) {
	t.Helper()
	var scheds []*manualScheduler
	cfg.NewScheduler = func() Scheduler {
		s := &manualScheduler{}
		scheds = append(scheds, s)
		return s
	}
	p := NewPoller(NewClient(url, url), "sess-1", cfg)
	if len(scheds) != 2 {
		t.Fatalf("NewPoller built %d schedulers, want 2", len(scheds))
	}
	return p, scheds[0], scheds[1]
}

func TestPollerCursorAdvance(t *testing.T) {
	responses := []string{
		`{"rows": [{"id": "r1"}], "cursor": "c1", "session_status": "running"}`,
		`{"rows": [{"id": "r2"}], "cursor": "c2", "session_status": "running"}`,
	}
	var step int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(responses[step]))
	}))
	defer srv.Close()

	p, logSched, _ := newTestPoller(t, srv.URL, PollerConfig{})
	var updates []Update
	p.OnUpdate = func(u Update) { updates = append(updates, u) }
	p.Start()
	defer p.Stop()

	logSched.fire()
	if got := p.Cursor(); got != "c1" {
		t.Errorf("cursor after tick 1 = %q, want %q", got, "c1")
	}
	step = 1
	logSched.fire()
	if got := p.Cursor(); got != "c2" {
		t.Errorf("cursor after tick 2 = %q, want %q", got, "c2")
	}

	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	for _, u := range updates {
		if u.SessionID != "sess-1" {
			t.Errorf("update tagged %q, want %q", u.SessionID, "sess-1")
		}
	}
	if updates[1].Batch.Rows[0].ID != "r2" {
		t.Errorf("update 2 row = %q, want r2", updates[1].Batch.Rows[0].ID)
	}
}

func TestPollerCursorNeverRegresses(t *testing.T) {
	// A slow response landing late carries an older cursor; it must not
	// rewind the watermark.
	responses := []string{
		`{"cursor": "2024-05", "session_status": "running"}`,
		`{"cursor": "2024-01", "session_status": "running"}`,
	}
	var step int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(responses[step]))
	}))
	defer srv.Close()

	p, logSched, _ := newTestPoller(t, srv.URL, PollerConfig{})
	p.Start()
	defer p.Stop()

	logSched.fire()
	step = 1
	logSched.fire()

	if got := p.Cursor(); got != "2024-05" {
		t.Errorf("cursor = %q, want %q (must not move backwards)", got, "2024-05")
	}
}

func TestPollerFailedFetchKeepsCursor(t *testing.T) {
	var fail bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"cursor": "c1", "session_status": "running"}`))
	}))
	defer srv.Close()

	p, logSched, _ := newTestPoller(t, srv.URL, PollerConfig{})
	var updates int
	p.OnUpdate = func(Update) { updates++ }
	p.Start()
	defer p.Stop()

	logSched.fire()
	fail = true
	logSched.fire()

	if got := p.Cursor(); got != "c1" {
		t.Errorf("cursor after failed fetch = %q, want %q", got, "c1")
	}
	if updates != 1 {
		t.Errorf("got %d updates, want 1 (failed fetch delivers nothing)", updates)
	}

	// Next tick retries with the same cursor.
	fail = false
	logSched.fire()
	if updates != 2 {
		t.Errorf("got %d updates after recovery, want 2", updates)
	}
}

func TestPollerTerminalGraceStopsPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cursor": "c1", "session_status": "completed"}`))
	}))
	defer srv.Close()

	now := time.Unix(1000, 0)
	p, logSched, cpSched := newTestPoller(t, srv.URL, PollerConfig{
		TerminalGrace: 10 * time.Second,
		Now:           func() time.Time { return now },
	})
	var updates int
	p.OnUpdate = func(Update) { updates++ }
	p.Start()

	// First terminal sighting opens the grace window; polling continues.
	logSched.fire()
	if logSched.isStopped() {
		t.Fatal("poller stopped immediately on terminal status, want grace window")
	}

	// Still inside the window.
	now = now.Add(5 * time.Second)
	logSched.fire()
	if logSched.isStopped() {
		t.Fatal("poller stopped inside grace window")
	}

	// Window elapsed: the drained tick still delivers, then tears down.
	now = now.Add(5 * time.Second)
	logSched.fire()
	if !logSched.isStopped() || !cpSched.isStopped() {
		t.Error("schedulers still running after grace window elapsed")
	}
	if updates != 3 {
		t.Errorf("got %d updates, want 3", updates)
	}

	// A straggling tick after teardown delivers nothing.
	logSched.fire()
	if updates != 3 {
		t.Errorf("got %d updates after stop, want 3", updates)
	}
}

func TestPollerNoDeliveryAfterStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cursor": "c1", "session_status": "running"}`))
	}))
	defer srv.Close()

	p, logSched, cpSched := newTestPoller(t, srv.URL, PollerConfig{})
	var updates, checkpoints int
	p.OnUpdate = func(Update) { updates++ }
	p.OnCheckpoints = func(string, []Checkpoint) { checkpoints++ }
	p.Start()
	p.Stop()

	logSched.fire()
	cpSched.fire()
	if updates != 0 || checkpoints != 0 {
		t.Errorf("got %d updates, %d checkpoint deliveries after Stop, want 0, 0", updates, checkpoints)
	}
}

func TestPollerCheckpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session_id") != "" {
			_, _ = w.Write([]byte(`{"checkpoints": [{"id": "cp1", "status": "pending", "prompt": "Continue?"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"cursor": "c1"}`))
	}))
	defer srv.Close()

	p, _, cpSched := newTestPoller(t, srv.URL, PollerConfig{})
	var gotSession string
	var gotCPs []Checkpoint
	p.OnCheckpoints = func(sessionID string, cps []Checkpoint) {
		gotSession = sessionID
		gotCPs = cps
	}
	p.Start()
	defer p.Stop()

	cpSched.fire()
	if gotSession != "sess-1" {
		t.Errorf("checkpoint delivery tagged %q, want %q", gotSession, "sess-1")
	}
	if len(gotCPs) != 1 || gotCPs[0].Prompt != "Continue?" {
		t.Errorf("checkpoints = %+v", gotCPs)
	}
}

func TestPollerStartIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cursor": "c1"}`))
	}))
	defer srv.Close()

	p, logSched, _ := newTestPoller(t, srv.URL, PollerConfig{})
	p.Start()
	p.Start() // no-op while running
	defer p.Stop()

	logSched.fire()
	if got := p.Cursor(); got != "c1" {
		t.Errorf("cursor = %q, want %q", got, "c1")
	}
}
