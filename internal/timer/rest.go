package timer

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"cragcast/internal/events"
)

const (
	DefaultRestMinutes = 3
	MinRestMinutes     = 1
	MaxRestMinutes     = 60
)

type RestState string

const (
	RestStateSetting  RestState = "setting"
	RestStateRunning  RestState = "running"
	RestStatePaused   RestState = "paused"
	RestStateFinished RestState = "finished"
)

type RestSnapshot struct {
	SessionID string
	State     RestState
	Minutes   int
	Remaining int // seconds
	StartedAt time.Time
	EndsAt    time.Time
}

// RestTimer counts down a rest interval between climbs. The end time is the
// only anchor that matters while running; remaining time is always derived
// from it so a missed tick can never drift the countdown.
type RestTimer struct {
	mu        sync.Mutex
	repo      Repository
	opts      options
	sessionID string

	state     RestState
	minutes   int
	remaining int
	start     time.Time
	end       time.Time
}

func NewRestTimer(repo Repository, sessionID string, opts ...Option) *RestTimer {
	return &RestTimer{
		repo:      repo,
		opts:      buildOptions(opts),
		sessionID: sessionID,
		state:     RestStateSetting,
		minutes:   DefaultRestMinutes,
		remaining: DefaultRestMinutes * 60,
	}
}

func clampMinutes(m int) int {
	return min(max(m, MinRestMinutes), MaxRestMinutes)
}

// Configure sets the countdown length. Out-of-range values are clamped.
func (r *RestTimer) Configure(ctx context.Context, minutes int) (int, error) {
	r.mu.Lock()
	r.syncLocked(ctx)
	if r.state != RestStateSetting {
		r.mu.Unlock()
		return r.minutes, ErrInvalidTransition
	}
	r.minutes = clampMinutes(minutes)
	r.remaining = r.minutes * 60
	if err := r.repo.Set(ctx, r.sessionID, RestDuration, encodeInt(int64(r.minutes))); err != nil {
		slog.Warn("failed to persist rest duration", "session_id", r.sessionID, "err", err)
	}
	m := r.minutes
	r.mu.Unlock()

	r.publish()
	return m, nil
}

func (r *RestTimer) Start(ctx context.Context) error {
	r.mu.Lock()
	r.syncLocked(ctx)
	if r.state != RestStateSetting {
		r.mu.Unlock()
		return ErrInvalidTransition
	}
	now := r.opts.now()
	r.start = now
	r.end = now.Add(time.Duration(r.minutes) * time.Minute)
	r.remaining = r.minutes * 60
	r.state = RestStateRunning
	r.persistLocked(ctx, RestStart, encodeTime(r.start))
	r.persistLocked(ctx, RestEnd, encodeTime(r.end))
	r.clearLocked(ctx, RestPaused)
	r.mu.Unlock()

	r.publish()
	return nil
}

func (r *RestTimer) Pause(ctx context.Context) error {
	r.mu.Lock()
	r.syncLocked(ctx)
	if r.state != RestStateRunning {
		r.mu.Unlock()
		return ErrInvalidTransition
	}
	now := r.opts.now()
	if r.advanceLocked(ctx, now) {
		r.mu.Unlock()
		r.publish()
		return ErrInvalidTransition
	}
	r.end = now.Add(time.Duration(r.remaining) * time.Second)
	r.state = RestStatePaused
	r.persistLocked(ctx, RestEnd, encodeTime(r.end))
	r.persistLocked(ctx, RestPaused, encodeInt(int64(r.remaining)))
	r.mu.Unlock()

	r.publish()
	return nil
}

func (r *RestTimer) Resume(ctx context.Context) error {
	r.mu.Lock()
	r.syncLocked(ctx)
	if r.state != RestStatePaused {
		r.mu.Unlock()
		return ErrInvalidTransition
	}
	r.end = r.opts.now().Add(time.Duration(r.remaining) * time.Second)
	r.state = RestStateRunning
	r.persistLocked(ctx, RestEnd, encodeTime(r.end))
	r.clearLocked(ctx, RestPaused)
	r.mu.Unlock()

	r.publish()
	return nil
}

// Reset returns to Setting from any state, keeping the configured length.
func (r *RestTimer) Reset(ctx context.Context) {
	r.mu.Lock()
	r.resetLocked(ctx)
	r.mu.Unlock()

	r.publish()
}

func (r *RestTimer) resetLocked(ctx context.Context) {
	r.state = RestStateSetting
	r.start = time.Time{}
	r.end = time.Time{}
	r.remaining = r.minutes * 60
	r.clearLocked(ctx, RestStart, RestEnd, RestPaused)
}

// Tick picks up changes persisted by other timers for the session,
// recomputes the remaining time and moves to Finished once the end time has
// passed.
func (r *RestTimer) Tick(ctx context.Context) RestSnapshot {
	r.mu.Lock()
	r.syncLocked(ctx)
	finished := r.state == RestStateRunning && r.advanceLocked(ctx, r.opts.now())
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if finished {
		r.publish()
	}
	return snap
}

// advanceLocked reports whether the countdown just finished.
func (r *RestTimer) advanceLocked(ctx context.Context, now time.Time) bool {
	r.remaining = secondsUntil(now, r.end)
	if r.remaining > 0 {
		return false
	}
	r.finishLocked(ctx)
	return true
}

// finishLocked clears the persisted anchors only while they still describe
// the countdown that just ran out.
func (r *RestTimer) finishLocked(ctx context.Context) {
	end := r.end
	r.state = RestStateFinished
	r.remaining = 0
	r.start = time.Time{}
	r.end = time.Time{}
	if raw, ok := r.getLocked(ctx, RestEnd); ok && raw != encodeTime(end) {
		slog.Info("rest countdown moved by another timer, keeping its anchors", "session_id", r.sessionID)
		return
	}
	r.clearLocked(ctx, RestStart, RestEnd, RestPaused)
}

// syncLocked adopts the persisted state, which may have been changed by
// another timer for the same session (a second terminal or server). It never
// writes. Read errors and unreadable anchors leave the timer as it is;
// Restore is the place that repairs them.
func (r *RestTimer) syncLocked(ctx context.Context) {
	get := func(kind Kind) (string, bool, bool) {
		v, ok, err := r.repo.Get(ctx, r.sessionID, kind)
		if err != nil {
			slog.Warn("failed to read rest timer state", "session_id", r.sessionID, "kind", kind, "err", err)
			return "", false, false
		}
		return v, ok, true
	}

	rawDuration, hasDuration, ok1 := get(RestDuration)
	rawStart, hasStart, ok2 := get(RestStart)
	rawEnd, hasEnd, ok3 := get(RestEnd)
	rawPaused, hasPaused, ok4 := get(RestPaused)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}

	if hasDuration {
		if m, err := decodeInt(rawDuration); err == nil && m >= MinRestMinutes && m <= MaxRestMinutes {
			r.minutes = int(m)
		}
	}

	if !hasStart && !hasEnd {
		// A finished countdown has no anchors either.
		if r.state != RestStateFinished {
			r.state = RestStateSetting
			r.start, r.end = time.Time{}, time.Time{}
			r.remaining = r.minutes * 60
		}
		return
	}
	start, errStart := decodeTime(rawStart)
	end, errEnd := decodeTime(rawEnd)
	if !hasStart || !hasEnd || errStart != nil || errEnd != nil {
		return
	}

	if hasPaused {
		secs, err := decodeInt(rawPaused)
		if err != nil || secs <= 0 {
			return
		}
		r.start, r.end = start, end
		r.state = RestStatePaused
		r.remaining = int(secs)
		return
	}
	r.start, r.end = start, end
	r.state = RestStateRunning
	r.remaining = secondsUntil(r.opts.now(), end)
}

// secondsUntil rounds up, so the display only reaches zero once the end
// time has actually passed.
func secondsUntil(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Restore rebuilds the timer from persisted anchors. Unreadable anchors
// put the timer back in Setting; an end time already in the past moves it
// straight to Finished.
func (r *RestTimer) Restore(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minutes = DefaultRestMinutes
	if raw, ok := r.getLocked(ctx, RestDuration); ok {
		if m, err := decodeInt(raw); err == nil && m >= MinRestMinutes && m <= MaxRestMinutes {
			r.minutes = int(m)
		} else {
			slog.Warn("discarding malformed rest duration", "session_id", r.sessionID, "value", raw)
		}
	}

	rawStart, hasStart := r.getLocked(ctx, RestStart)
	rawEnd, hasEnd := r.getLocked(ctx, RestEnd)
	if !hasStart && !hasEnd {
		r.state = RestStateSetting
		r.start, r.end = time.Time{}, time.Time{}
		r.remaining = r.minutes * 60
		return
	}
	start, errStart := decodeTime(rawStart)
	end, errEnd := decodeTime(rawEnd)
	if !hasStart || !hasEnd || errStart != nil || errEnd != nil {
		slog.Warn("discarding malformed rest anchors", "session_id", r.sessionID)
		r.resetLocked(ctx)
		return
	}

	r.start, r.end = start, end
	if raw, ok := r.getLocked(ctx, RestPaused); ok {
		if secs, err := decodeInt(raw); err == nil && secs > 0 {
			r.state = RestStatePaused
			r.remaining = int(secs)
			return
		}
		slog.Warn("discarding malformed rest pause", "session_id", r.sessionID, "value", raw)
		r.clearLocked(ctx, RestPaused)
	}

	r.state = RestStateRunning
	r.advanceLocked(ctx, r.opts.now())
}

func (r *RestTimer) Snapshot() RestSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *RestTimer) snapshotLocked() RestSnapshot {
	return RestSnapshot{
		SessionID: r.sessionID,
		State:     r.state,
		Minutes:   r.minutes,
		Remaining: r.remaining,
		StartedAt: r.start,
		EndsAt:    r.end,
	}
}

// Run ticks the countdown and calls fn while it is running, including the
// final Finished snapshot. Each tick re-reads the persisted state, so a pause
// or reset made elsewhere is followed. It returns once the timer finishes or
// is reset, or when ctx is done.
func (r *RestTimer) Run(ctx context.Context, interval time.Duration, fn func(RestSnapshot)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := r.Tick(ctx)
			switch snap.State {
			case RestStatePaused:
			case RestStateRunning:
				fn(snap)
			case RestStateFinished:
				fn(snap)
				return
			default:
				return
			}
		}
	}
}

func (r *RestTimer) getLocked(ctx context.Context, kind Kind) (string, bool) {
	v, ok, err := r.repo.Get(ctx, r.sessionID, kind)
	if err != nil {
		slog.Warn("failed to read rest timer state", "session_id", r.sessionID, "kind", kind, "err", err)
		return "", false
	}
	return v, ok
}

func (r *RestTimer) persistLocked(ctx context.Context, kind Kind, value string) {
	if err := r.repo.Set(ctx, r.sessionID, kind, value); err != nil {
		slog.Warn("failed to persist rest timer state", "session_id", r.sessionID, "kind", kind, "err", err)
	}
}

func (r *RestTimer) clearLocked(ctx context.Context, kinds ...Kind) {
	if err := r.repo.Clear(ctx, r.sessionID, kinds...); err != nil {
		slog.Warn("failed to clear rest timer state", "session_id", r.sessionID, "err", err)
	}
}

func (r *RestTimer) publish() {
	r.opts.bus.Publish(events.Event{
		Topic:     events.TimerUpdated,
		SessionID: r.sessionID,
		At:        r.opts.now(),
	})
}
