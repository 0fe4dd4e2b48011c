package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cragcast/internal/events"
)

type ClockState string

const (
	ClockNotStarted ClockState = "not_started"
	ClockRunning    ClockState = "running"
	ClockPaused     ClockState = "paused"
	ClockEnded      ClockState = "ended"
)

type ClockSnapshot struct {
	SessionID string
	State     ClockState
	StartedAt time.Time
	Elapsed   time.Duration
}

// Seconds is the whole-second elapsed value shown to the climber.
func (s ClockSnapshot) Seconds() int {
	return int(s.Elapsed / time.Second)
}

// SessionClock measures wall-clock time since a session started. Pausing
// freezes the value; resuming moves the start anchor forward so the paused
// interval is not counted.
type SessionClock struct {
	mu        sync.Mutex
	repo      Repository
	opts      options
	sessionID string
	userID    string

	state   ClockState
	start   time.Time
	elapsed time.Duration // frozen value while paused or ended
}

func NewSessionClock(repo Repository, sessionID, userID string, opts ...Option) *SessionClock {
	return &SessionClock{
		repo:      repo,
		opts:      buildOptions(opts),
		sessionID: sessionID,
		userID:    userID,
		state:     ClockNotStarted,
	}
}

func (c *SessionClock) SessionID() string { return c.sessionID }

func (c *SessionClock) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != ClockNotStarted {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.beginLocked(ctx, c.opts.now())
	c.mu.Unlock()

	c.publish(events.SessionStarted)
	return nil
}

func (c *SessionClock) beginLocked(ctx context.Context, now time.Time) {
	c.start = now
	c.elapsed = 0
	c.state = ClockRunning
	if err := c.repo.Set(ctx, c.sessionID, SessionStart, encodeTime(now)); err != nil {
		slog.Warn("failed to persist session start", "session_id", c.sessionID, "err", err)
	}
	if err := c.repo.Clear(ctx, c.sessionID, SessionPaused); err != nil {
		slog.Warn("failed to clear session pause", "session_id", c.sessionID, "err", err)
	}
}

// Restore rebuilds the clock from persisted anchors. A missing or unreadable
// start is replaced with a fresh one, so the clock always ends up running
// or paused.
func (c *SessionClock) Restore(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	raw, ok, err := c.repo.Get(ctx, c.sessionID, SessionStart)
	if err != nil {
		slog.Warn("failed to read session start", "session_id", c.sessionID, "err", err)
		ok = false
	}
	if !ok {
		c.beginLocked(ctx, now)
		return
	}
	start, err := decodeTime(raw)
	if err != nil {
		slog.Warn("discarding malformed session start", "session_id", c.sessionID, "value", raw)
		c.beginLocked(ctx, now)
		return
	}

	c.start = start
	c.state = ClockRunning
	if raw, ok, err := c.repo.Get(ctx, c.sessionID, SessionPaused); err == nil && ok {
		if ms, err := decodeInt(raw); err == nil && ms >= 0 {
			c.elapsed = time.Duration(ms) * time.Millisecond
			c.state = ClockPaused
		} else {
			slog.Warn("discarding malformed session pause", "session_id", c.sessionID, "value", raw)
		}
	}
}

func (c *SessionClock) Pause(ctx context.Context) error {
	c.mu.Lock()
	c.syncLocked(ctx)
	if c.state != ClockRunning {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.elapsed = c.elapsedLocked()
	c.state = ClockPaused
	if err := c.repo.Set(ctx, c.sessionID, SessionPaused, encodeInt(c.elapsed.Milliseconds())); err != nil {
		slog.Warn("failed to persist session pause", "session_id", c.sessionID, "err", err)
	}
	c.mu.Unlock()

	c.publish(events.TimerUpdated)
	return nil
}

func (c *SessionClock) Resume(ctx context.Context) error {
	c.mu.Lock()
	c.syncLocked(ctx)
	if c.state != ClockPaused {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.start = c.opts.now().Add(-c.elapsed)
	c.state = ClockRunning
	if err := c.repo.Set(ctx, c.sessionID, SessionStart, encodeTime(c.start)); err != nil {
		slog.Warn("failed to persist session start", "session_id", c.sessionID, "err", err)
	}
	if err := c.repo.Clear(ctx, c.sessionID, SessionPaused); err != nil {
		slog.Warn("failed to clear session pause", "session_id", c.sessionID, "err", err)
	}
	c.mu.Unlock()

	c.publish(events.TimerUpdated)
	return nil
}

// End marks the session finished. markInactive updates the backing store;
// if it fails the clock is left untouched so the caller can retry.
func (c *SessionClock) End(ctx context.Context, markInactive func(ctx context.Context, endedAt time.Time) error) error {
	c.mu.Lock()
	c.syncLocked(ctx)
	if c.state == ClockEnded || c.state == ClockNotStarted {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	now := c.opts.now()
	if markInactive != nil {
		if err := markInactive(ctx, now); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.elapsed = c.elapsedLocked()
	c.state = ClockEnded
	if err := c.repo.Clear(ctx, c.sessionID, SessionStart, SessionPaused); err != nil {
		slog.Warn("failed to clear session anchors", "session_id", c.sessionID, "err", err)
	}
	c.mu.Unlock()

	c.publish(events.SessionEnded)
	return nil
}

func (c *SessionClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *SessionClock) elapsedLocked() time.Duration {
	if c.state != ClockRunning {
		return c.elapsed
	}
	d := c.opts.now().Sub(c.start)
	if d < 0 {
		return 0
	}
	return d
}

func (c *SessionClock) Snapshot() ClockSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClockSnapshot{
		SessionID: c.sessionID,
		State:     c.state,
		StartedAt: c.start,
		Elapsed:   c.elapsedLocked(),
	}
}

// Tick picks up a pause, resume or end persisted by another clock for the
// same session and returns the current snapshot.
func (c *SessionClock) Tick(ctx context.Context) ClockSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncLocked(ctx)
	return ClockSnapshot{
		SessionID: c.sessionID,
		State:     c.state,
		StartedAt: c.start,
		Elapsed:   c.elapsedLocked(),
	}
}

// syncLocked adopts the persisted anchors of a started clock. A missing
// start means the session was ended elsewhere, since End clears it. It never
// writes; read errors and unreadable values leave the clock as it is.
func (c *SessionClock) syncLocked(ctx context.Context) {
	if c.state != ClockRunning && c.state != ClockPaused {
		return
	}
	raw, ok, err := c.repo.Get(ctx, c.sessionID, SessionStart)
	if err != nil {
		slog.Warn("failed to read session start", "session_id", c.sessionID, "err", err)
		return
	}
	if !ok {
		c.elapsed = c.elapsedLocked()
		c.state = ClockEnded
		return
	}
	start, err := decodeTime(raw)
	if err != nil {
		return
	}
	rawPaused, paused, err := c.repo.Get(ctx, c.sessionID, SessionPaused)
	if err != nil {
		slog.Warn("failed to read session pause", "session_id", c.sessionID, "err", err)
		return
	}
	if !paused {
		c.start = start
		c.state = ClockRunning
		return
	}
	ms, err := decodeInt(rawPaused)
	if err != nil || ms < 0 {
		return
	}
	c.start = start
	c.elapsed = time.Duration(ms) * time.Millisecond
	c.state = ClockPaused
}

// Run calls fn with a fresh snapshot on every tick while the clock is
// running. Each tick re-reads the persisted anchors. It returns when ctx is
// done or the clock ends.
func (c *SessionClock) Run(ctx context.Context, interval time.Duration, fn func(ClockSnapshot)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := c.Tick(ctx)
			switch snap.State {
			case ClockEnded:
				return
			case ClockRunning:
				fn(snap)
			}
		}
	}
}

func (c *SessionClock) publish(topic events.Topic) {
	c.opts.bus.Publish(events.Event{
		Topic:     topic,
		SessionID: c.sessionID,
		UserID:    c.userID,
		At:        c.opts.now(),
	})
}
