package feed

import (
	"sync"
	"time"
)

// Scheduler drives a repeating tick callback. It exists so teardown ordering
// and "stop N seconds after terminal" behavior are testable without real
// wall-clock waits: tests substitute a manual implementation.
type Scheduler interface {
	// Start begins invoking tick at the interval until Stop is called.
	// Calling Start on a running scheduler is a no-op.
	Start(interval time.Duration, tick func())

	// Stop cancels the schedule. No tick is invoked after Stop returns.
	// Stop is idempotent.
	Stop()
}

// TickScheduler is the wall-clock Scheduler used in production.
type TickScheduler struct {
	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewTickScheduler creates a stopped scheduler.
func NewTickScheduler() *TickScheduler {
	return &TickScheduler{}
}

// Start implements Scheduler.
func (s *TickScheduler) Start(interval time.Duration, tick func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})

	done := s.done
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
}

// Stop implements Scheduler.
func (s *TickScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
}
