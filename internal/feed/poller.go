package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Poller defaults.
const (
	DefaultLogInterval        = 600 * time.Millisecond
	DefaultCheckpointInterval = 2 * time.Second
	DefaultTerminalGrace      = 10 * time.Second
)

// PollerConfig configures a Poller. Zero values take defaults.
type PollerConfig struct {
	// LogInterval is the log fetch interval.
	LogInterval time.Duration

	// CheckpointInterval is the checkpoint fetch interval.
	CheckpointInterval time.Duration

	// TerminalGrace is how long polling continues after the session status
	// first turns terminal, to catch straggling late-arriving rows.
	TerminalGrace time.Duration

	// NewScheduler builds the tick schedulers. Defaults to NewTickScheduler.
	// Tests inject manual schedulers here.
	NewScheduler func() Scheduler

	// Now is the clock used for the terminal grace window. Defaults to
	// time.Now.
	Now func() time.Time

	// Logger receives fetch failures and lifecycle events. Defaults to a
	// no-op logger.
	Logger zerolog.Logger
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.LogInterval == 0 {
		c.LogInterval = DefaultLogInterval
	}
	if c.CheckpointInterval == 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.TerminalGrace == 0 {
		c.TerminalGrace = DefaultTerminalGrace
	}
	if c.NewScheduler == nil {
		c.NewScheduler = func() Scheduler { return NewTickScheduler() }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Update is one applied log poll result, tagged with the session it belongs
// to so consumers can discard stale deliveries.
type Update struct {
	SessionID string
	Batch     *LogBatch
}

// Poller runs two independent fixed-interval fetch loops for one target
// session: log rows and checkpoints. A failed fetch is logged, does not
// advance the cursor, and is retried on the next tick with no backoff.
type Poller struct {
	client *Client
	config PollerConfig
	log    zerolog.Logger

	// OnUpdate receives each applied log batch.
	OnUpdate func(Update)

	// OnCheckpoints receives each checkpoint fetch result.
	OnCheckpoints func(sessionID string, cps []Checkpoint)

	mu         sync.Mutex
	sessionID  string
	cursor     string
	stopped    bool
	terminalAt time.Time

	logSched Scheduler
	cpSched  Scheduler
	cancel   context.CancelFunc
}

// NewPoller creates a poller for the given target session.
func NewPoller(client *Client, sessionID string, config PollerConfig) *Poller {
	config = config.withDefaults()
	return &Poller{
		client:    client,
		config:    config,
		log:       config.Logger.With().Str("session", sessionID).Logger(),
		sessionID: sessionID,
		logSched:  config.NewScheduler(),
		cpSched:   config.NewScheduler(),
		stopped:   true,
	}
}

// Start begins both poll loops. Calling Start on a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if !p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = false
	p.terminalAt = time.Time{}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	p.log.Debug().Msg("poller started")
	p.logSched.Start(p.config.LogInterval, func() { p.tickLog(ctx) })
	p.cpSched.Start(p.config.CheckpointInterval, func() { p.tickCheckpoints(ctx) })
}

// Stop tears the poller down. No update is delivered after Stop returns; an
// in-flight fetch that lands afterwards is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	p.logSched.Stop()
	p.cpSched.Stop()
	if cancel != nil {
		cancel()
	}
	p.log.Debug().Msg("poller stopped")
}

// Cursor returns the current watermark.
func (p *Poller) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// tickLog runs one log poll: fetch, advance the cursor (forward only), and
// deliver the batch. Stops the poller once the terminal grace window has
// elapsed.
func (p *Poller) tickLog(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	cursor := p.cursor
	p.mu.Unlock()

	batch, err := p.client.FetchLog(ctx, p.sessionID, cursor)
	if err != nil {
		// Transient: cursor stays put, next tick retries unconditionally.
		p.log.Warn().Err(err).Msg("log fetch failed")
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	// A slow tick's response can land after a faster subsequent tick; a
	// cursor behind the current watermark is never applied.
	if batch.Cursor != "" && batch.Cursor > p.cursor {
		p.cursor = batch.Cursor
	}
	if batch.SessionStatus.IsTerminal() && p.terminalAt.IsZero() {
		p.terminalAt = p.config.Now()
		p.log.Debug().Str("status", string(batch.SessionStatus)).Msg("session terminal, draining")
	}
	drained := !p.terminalAt.IsZero() && p.config.Now().Sub(p.terminalAt) >= p.config.TerminalGrace
	onUpdate := p.OnUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(Update{SessionID: p.sessionID, Batch: batch})
	}
	if drained {
		p.Stop()
	}
}

// tickCheckpoints runs one checkpoint poll.
func (p *Poller) tickCheckpoints(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	cps, err := p.client.FetchCheckpoints(ctx, p.sessionID)
	if err != nil {
		p.log.Warn().Err(err).Msg("checkpoint fetch failed")
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	onCheckpoints := p.OnCheckpoints
	p.mu.Unlock()

	if onCheckpoints != nil {
		onCheckpoints(p.sessionID, cps)
	}
}
