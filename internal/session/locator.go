package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cragcast/internal/events"
	"cragcast/internal/timer"
)

var errMalformedPointer = errors.New("malformed active session pointer")

// pointer is the persisted "currently active session" reference, stored
// under the user id so any process sharing the repository sees it.
type pointer struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Boundary  time.Time `json:"boundary"`
}

func writePointer(ctx context.Context, repo timer.Repository, s Session) error {
	b, err := json.Marshal(pointer{
		SessionID: s.ID,
		StartedAt: s.StartedAt.UTC(),
		Boundary:  Boundary(s.StartedAt),
	})
	if err != nil {
		return err
	}
	return repo.Set(ctx, s.UserID, timer.ActiveSession, string(b))
}

// readPointer reports ok=false when nothing is stored. A stored value that
// cannot be decoded comes back as an error.
func readPointer(ctx context.Context, repo timer.Repository, userID string) (pointer, bool, error) {
	raw, ok, err := repo.Get(ctx, userID, timer.ActiveSession)
	if err != nil || !ok {
		return pointer{}, false, err
	}
	var p pointer
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return pointer{}, true, err
	}
	if p.SessionID == "" || p.Boundary.IsZero() {
		return pointer{}, true, errMalformedPointer
	}
	return p, true, nil
}

type Status struct {
	Active    bool      `json:"active"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Session   *Session  `json:"session,omitempty"`
}

// Locator answers whether a user has a session in progress. It trusts a
// live local pointer first, then asks the remote store, which has the
// final word. Remote failures are logged and leave the last answer as is.
type Locator struct {
	userID string
	local  timer.Repository
	remote Remote
	bus    *events.Bus
	now    func() time.Time

	mu     sync.Mutex
	status Status
}

func NewLocator(userID string, local timer.Repository, remote Remote, bus *events.Bus) *Locator {
	return &Locator{
		userID: userID,
		local:  local,
		remote: remote,
		bus:    bus,
		now:    time.Now,
	}
}

func (l *Locator) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Check runs one reconciliation pass. report, if non-nil, is called with
// the local answer before the remote call and again with the final one.
func (l *Locator) Check(ctx context.Context, report func(Status)) Status {
	if st, changed := l.checkLocal(ctx); changed && report != nil {
		report(st)
	}

	sess, err := l.remote.ActiveSession(ctx, l.userID)
	if err != nil {
		slog.Warn("active session lookup failed", "user_id", l.userID, "err", err)
		st := l.Status()
		if report != nil {
			report(st)
		}
		return st
	}

	var st Status
	if sess != nil && sess.IsActive && l.now().Before(Boundary(sess.StartedAt)) {
		if err := writePointer(ctx, l.local, *sess); err != nil {
			slog.Warn("failed to persist active session pointer", "user_id", l.userID, "err", err)
		}
		st = Status{Active: true, SessionID: sess.ID, StartedAt: sess.StartedAt, Session: sess}
	} else {
		l.clearPointer(ctx)
	}

	l.mu.Lock()
	l.status = st
	l.mu.Unlock()
	if report != nil {
		report(st)
	}
	return st
}

func (l *Locator) checkLocal(ctx context.Context) (Status, bool) {
	p, ok, err := readPointer(ctx, l.local, l.userID)
	if !ok {
		if err != nil {
			slog.Warn("failed to read active session pointer", "user_id", l.userID, "err", err)
		}
		return Status{}, false
	}

	var st Status
	switch {
	case err != nil:
		slog.Warn("discarding unreadable active session pointer", "user_id", l.userID, "err", err)
		l.clearPointer(ctx)
	case !l.now().Before(p.Boundary):
		l.clearPointer(ctx)
	default:
		st = Status{Active: true, SessionID: p.SessionID, StartedAt: p.StartedAt}
	}

	l.mu.Lock()
	l.status = st
	l.mu.Unlock()
	return st, true
}

func (l *Locator) clearPointer(ctx context.Context) {
	if err := l.local.Clear(ctx, l.userID, timer.ActiveSession); err != nil {
		slog.Warn("failed to clear active session pointer", "user_id", l.userID, "err", err)
	}
}

// Run checks immediately, then on every interval and whenever a session
// for this user starts or ends. It returns when ctx is done.
func (l *Locator) Run(ctx context.Context, interval time.Duration, fn func(Status)) {
	wake := make(chan struct{}, 1)
	unsubscribe := func() {}
	if l.bus != nil {
		unsubscribe = l.bus.Subscribe(func(e events.Event) {
			if e.UserID != "" && e.UserID != l.userID {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}, events.SessionStarted, events.SessionEnded)
	}
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(l.Check(ctx, nil))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}
