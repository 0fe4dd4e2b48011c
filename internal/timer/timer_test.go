package timer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cragcast/internal/events"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSessionClockElapsed(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	c := NewSessionClock(NewMemoryRepository(), "s1", "u1", WithNow(clk.Now))

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(65 * time.Second)
	if got := c.Snapshot().Seconds(); got != 65 {
		t.Errorf("elapsed %d, want 65", got)
	}
	if err := c.Start(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Start: got %v, want ErrInvalidTransition", err)
	}
}

func TestSessionClockPauseExcludesPausedTime(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()
	c := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))

	c.Start(ctx)
	clk.Advance(100 * time.Second)
	if err := c.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clk.Advance(10 * time.Minute)
	if got := c.Snapshot().Seconds(); got != 100 {
		t.Errorf("paused elapsed %d, want 100", got)
	}
	if err := c.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clk.Advance(20 * time.Second)
	if got := c.Snapshot().Seconds(); got != 120 {
		t.Errorf("resumed elapsed %d, want 120", got)
	}
	if err := c.Resume(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Resume while running: got %v", err)
	}
}

func TestSessionClockRestore(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()

	first := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	first.Start(ctx)
	clk.Advance(90 * time.Second)

	reloaded := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	reloaded.Restore(ctx)
	snap := reloaded.Snapshot()
	if snap.State != ClockRunning || snap.Seconds() != 90 {
		t.Errorf("restored %+v, want running at 90s", snap)
	}

	reloaded.Pause(ctx)
	clk.Advance(time.Hour)
	again := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	again.Restore(ctx)
	if snap := again.Snapshot(); snap.State != ClockPaused || snap.Seconds() != 90 {
		t.Errorf("restored paused %+v, want paused at 90s", snap)
	}
}

func TestSessionClockRestoreMalformedStartsFresh(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()
	repo.Set(ctx, "s1", SessionStart, "yesterday-ish")

	c := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	c.Restore(ctx)
	if snap := c.Snapshot(); snap.State != ClockRunning || snap.Elapsed != 0 {
		t.Fatalf("got %+v, want running from zero", snap)
	}
	raw, ok, _ := repo.Get(ctx, "s1", SessionStart)
	if !ok || raw != encodeTime(clk.Now()) {
		t.Errorf("fresh start not persisted, got %q", raw)
	}

	missing := NewSessionClock(repo, "s2", "u1", WithNow(clk.Now))
	missing.Restore(ctx)
	if snap := missing.Snapshot(); snap.State != ClockRunning || snap.Elapsed != 0 {
		t.Errorf("missing start: got %+v", snap)
	}
}

func TestSessionClockEnd(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()
	bus := events.NewBus()
	var ended []events.Event
	bus.Subscribe(func(e events.Event) { ended = append(ended, e) }, events.SessionEnded)

	c := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now), WithBus(bus))
	c.Start(ctx)
	clk.Advance(30 * time.Second)

	storeErr := errors.New("store down")
	if err := c.End(ctx, func(context.Context, time.Time) error { return storeErr }); !errors.Is(err, storeErr) {
		t.Fatalf("End with failing store: got %v", err)
	}
	if c.Snapshot().State != ClockRunning {
		t.Fatal("failed End must leave the clock running")
	}

	var endedAt time.Time
	if err := c.End(ctx, func(_ context.Context, at time.Time) error { endedAt = at; return nil }); err != nil {
		t.Fatalf("End: %v", err)
	}
	if !endedAt.Equal(clk.Now()) {
		t.Errorf("endedAt %v, want %v", endedAt, clk.Now())
	}
	if _, ok, _ := repo.Get(ctx, "s1", SessionStart); ok {
		t.Error("session start should be cleared after End")
	}
	if len(ended) != 1 || ended[0].UserID != "u1" {
		t.Errorf("unexpected ended events %+v", ended)
	}
	clk.Advance(time.Minute)
	if got := c.Snapshot().Seconds(); got != 30 {
		t.Errorf("elapsed after end %d, want 30", got)
	}
	if err := c.End(ctx, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second End: got %v", err)
	}
}

func TestRestTimerCountdown(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()
	r := NewRestTimer(repo, "s1", WithNow(clk.Now))

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := r.Tick(ctx).Remaining; got != 180 {
		t.Errorf("remaining right after start %d, want 180", got)
	}
	clk.Advance(500 * time.Millisecond)
	if got := r.Tick(ctx).Remaining; got != 180 {
		t.Errorf("remaining after half a second %d, want 180", got)
	}
	clk.Advance(179*time.Second + 500*time.Millisecond)
	snap := r.Tick(ctx)
	if snap.State != RestStateFinished || snap.Remaining != 0 {
		t.Fatalf("got %+v, want finished at zero", snap)
	}
	for _, k := range []Kind{RestStart, RestEnd} {
		if _, ok, _ := repo.Get(ctx, "s1", k); ok {
			t.Errorf("%s should be cleared once finished", k)
		}
	}
	if err := r.Start(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start from finished: got %v", err)
	}
}

func TestRestTimerPauseResume(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	r := NewRestTimer(NewMemoryRepository(), "s1", WithNow(clk.Now))

	r.Configure(ctx, 2)
	r.Start(ctx)
	clk.Advance(20 * time.Second)
	if err := r.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := r.Snapshot().Remaining; got != 100 {
		t.Fatalf("remaining at pause %d, want 100", got)
	}
	clk.Advance(5 * time.Minute)
	if got := r.Tick(ctx).Remaining; got != 100 {
		t.Errorf("remaining while paused %d, want 100", got)
	}
	if err := r.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clk.Advance(40 * time.Second)
	if got := r.Tick(ctx).Remaining; got != 60 {
		t.Errorf("remaining after resume %d, want 60", got)
	}
	if _, err := r.Configure(ctx, 10); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Configure while running: got %v", err)
	}
}

func TestRestTimerConfigureClamps(t *testing.T) {
	ctx := context.Background()
	r := NewRestTimer(NewMemoryRepository(), "s1")
	tests := []struct{ in, want int }{{0, 1}, {-5, 1}, {1, 1}, {45, 45}, {60, 60}, {61, 60}}
	for _, tt := range tests {
		got, err := r.Configure(ctx, tt.in)
		if err != nil {
			t.Fatalf("Configure(%d): %v", tt.in, err)
		}
		if got != tt.want || r.Snapshot().Remaining != tt.want*60 {
			t.Errorf("Configure(%d) = %d, remaining %d", tt.in, got, r.Snapshot().Remaining)
		}
	}
}

func TestRestTimerResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()
	r := NewRestTimer(repo, "s1", WithNow(clk.Now))

	r.Configure(ctx, 5)
	r.Start(ctx)
	clk.Advance(time.Minute)
	r.Pause(ctx)

	r.Reset(ctx)
	first := r.Snapshot()
	r.Reset(ctx)
	second := r.Snapshot()
	if first != second {
		t.Errorf("reset not idempotent: %+v vs %+v", first, second)
	}
	if first.State != RestStateSetting || first.Remaining != 300 || !first.EndsAt.IsZero() {
		t.Errorf("unexpected state after reset %+v", first)
	}
	if _, ok, _ := repo.Get(ctx, "s1", RestPaused); ok {
		t.Error("pause marker should be cleared by reset")
	}
}

func TestRestTimerRestore(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()

	r := NewRestTimer(repo, "s1", WithNow(clk.Now))
	r.Configure(ctx, 4)
	r.Start(ctx)
	clk.Advance(30 * time.Second)

	running := NewRestTimer(repo, "s1", WithNow(clk.Now))
	running.Restore(ctx)
	if snap := running.Snapshot(); snap.State != RestStateRunning || snap.Remaining != 210 || snap.Minutes != 4 {
		t.Errorf("restored running %+v", snap)
	}

	running.Pause(ctx)
	clk.Advance(time.Hour)
	paused := NewRestTimer(repo, "s1", WithNow(clk.Now))
	paused.Restore(ctx)
	if snap := paused.Snapshot(); snap.State != RestStatePaused || snap.Remaining != 210 {
		t.Errorf("restored paused %+v", snap)
	}

	paused.Resume(ctx)
	clk.Advance(5 * time.Minute)
	expired := NewRestTimer(repo, "s1", WithNow(clk.Now))
	expired.Restore(ctx)
	if snap := expired.Snapshot(); snap.State != RestStateFinished || snap.Remaining != 0 {
		t.Errorf("restored expired %+v", snap)
	}
	if _, ok, _ := repo.Get(ctx, "s1", RestEnd); ok {
		t.Error("expired anchors should be cleared on restore")
	}
}

func TestRestTimerRestoreMalformed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.Set(ctx, "s1", RestStart, "not-a-time")
	repo.Set(ctx, "s1", RestEnd, "also-not")
	repo.Set(ctx, "s1", RestDuration, "999")

	r := NewRestTimer(repo, "s1")
	r.Restore(ctx)
	snap := r.Snapshot()
	if snap.State != RestStateSetting || snap.Minutes != DefaultRestMinutes || snap.Remaining != DefaultRestMinutes*60 {
		t.Errorf("got %+v, want default setting", snap)
	}
	if _, ok, _ := repo.Get(ctx, "s1", RestStart); ok {
		t.Error("malformed start should be cleared")
	}
}

func TestRestTimerPublishesUpdates(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	bus := events.NewBus()
	var n int
	bus.Subscribe(func(events.Event) { n++ }, events.TimerUpdated)

	r := NewRestTimer(NewMemoryRepository(), "s1", WithNow(clk.Now), WithBus(bus))
	r.Start(ctx)
	clk.Advance(10 * time.Minute)
	r.Tick(ctx)
	r.Tick(ctx)
	r.Reset(ctx)

	if n != 3 {
		t.Errorf("expected 3 updates (start, finish, reset), got %d", n)
	}
}

func TestRestTimerFollowsPauseFromAnotherTimer(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()

	watcher := NewRestTimer(repo, "s1", WithNow(clk.Now))
	watcher.Start(ctx)
	clk.Advance(80 * time.Second)

	other := NewRestTimer(repo, "s1", WithNow(clk.Now))
	other.Restore(ctx)
	if err := other.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := other.Snapshot().Remaining; got != 100 {
		t.Fatalf("other paused at %d, want 100", got)
	}

	clk.Advance(101 * time.Second)
	if snap := watcher.Tick(ctx); snap.State != RestStatePaused || snap.Remaining != 100 {
		t.Errorf("watcher after tick %+v, want paused at 100", snap)
	}

	reloaded := NewRestTimer(repo, "s1", WithNow(clk.Now))
	reloaded.Restore(ctx)
	if snap := reloaded.Snapshot(); snap.State != RestStatePaused || snap.Remaining != 100 {
		t.Errorf("after reload %+v, want paused at 100", snap)
	}

	other.Reset(ctx)
	if snap := watcher.Tick(ctx); snap.State != RestStateSetting {
		t.Errorf("watcher after reset elsewhere %+v, want setting", snap)
	}
}

func TestRestTimerFinishKeepsForeignAnchors(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()

	watcher := NewRestTimer(repo, "s1", WithNow(clk.Now))
	watcher.Start(ctx)
	clk.Advance(80 * time.Second)

	other := NewRestTimer(repo, "s1", WithNow(clk.Now))
	other.Restore(ctx)
	other.Pause(ctx)
	clk.Advance(20 * time.Second)
	other.Resume(ctx)
	clk.Advance(90 * time.Second)

	// The watcher still holds the original end time, which has passed.
	watcher.mu.Lock()
	finished := watcher.advanceLocked(ctx, clk.Now())
	watcher.mu.Unlock()
	if !finished {
		t.Fatal("stale countdown should have run out")
	}

	for _, k := range []Kind{RestStart, RestEnd} {
		if _, ok, _ := repo.Get(ctx, "s1", k); !ok {
			t.Errorf("%s written by the other timer was cleared", k)
		}
	}
	reloaded := NewRestTimer(repo, "s1", WithNow(clk.Now))
	reloaded.Restore(ctx)
	if snap := reloaded.Snapshot(); snap.State != RestStateRunning || snap.Remaining != 10 {
		t.Errorf("after reload %+v, want running with 10s left", snap)
	}
}

func TestSessionClockFollowsAnotherClock(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()

	watcher := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	watcher.Start(ctx)
	clk.Advance(30 * time.Second)

	other := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	other.Restore(ctx)
	other.Pause(ctx)
	clk.Advance(time.Minute)
	if snap := watcher.Tick(ctx); snap.State != ClockPaused || snap.Seconds() != 30 {
		t.Errorf("watcher after pause elsewhere %+v, want paused at 30s", snap)
	}
	if err := watcher.Pause(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause of a clock paused elsewhere: got %v", err)
	}

	other.Resume(ctx)
	clk.Advance(10 * time.Second)
	if snap := watcher.Tick(ctx); snap.State != ClockRunning || snap.Seconds() != 40 {
		t.Errorf("watcher after resume elsewhere %+v, want running at 40s", snap)
	}

	other.End(ctx, nil)
	if snap := watcher.Tick(ctx); snap.State != ClockEnded || snap.Seconds() != 40 {
		t.Errorf("watcher after end elsewhere %+v, want ended at 40s", snap)
	}
	if err := watcher.End(ctx, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("End of a clock ended elsewhere: got %v", err)
	}
}

func TestSessionClockRunStopsOnCancel(t *testing.T) {
	clk := newFakeClock()
	c := NewSessionClock(NewMemoryRepository(), "s1", "u1", WithNow(clk.Now))
	c.Start(context.Background())
	c.Pause(context.Background())

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond, func(ClockSnapshot) { calls.Add(1) })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("paused clock delivered %d snapshots", n)
	}
}

func TestSessionClockRunReturnsWhenEndedElsewhere(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	repo := NewMemoryRepository()
	watcher := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	watcher.Start(ctx)

	ticked := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		watcher.Run(ctx, time.Millisecond, func(ClockSnapshot) {
			select {
			case ticked <- struct{}{}:
			default:
			}
		})
		close(done)
	}()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("running clock delivered no snapshot")
	}
	other := NewSessionClock(repo, "s1", "u1", WithNow(clk.Now))
	other.Restore(ctx)
	if err := other.End(ctx, nil); err != nil {
		t.Fatalf("End: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the session ended")
	}
}

func TestRestTimerRunReturnsAfterFinish(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	r := NewRestTimer(NewMemoryRepository(), "s1", WithNow(clk.Now))
	r.Start(ctx)

	var states []RestState
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond, func(s RestSnapshot) {
			states = append(states, s.State)
			if len(states) == 1 {
				clk.Advance(3 * time.Minute)
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the countdown finished")
	}
	want := []RestState{RestStateRunning, RestStateFinished}
	if len(states) != len(want) || states[0] != want[0] || states[1] != want[1] {
		t.Errorf("delivered states %v, want %v", states, want)
	}
}

func TestRestTimerRunStopsOnCancel(t *testing.T) {
	clk := newFakeClock()
	r := NewRestTimer(NewMemoryRepository(), "s1", WithNow(clk.Now))
	r.Start(context.Background())
	r.Pause(context.Background())

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond, func(RestSnapshot) { calls.Add(1) })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("paused rest timer delivered %d snapshots", n)
	}
}

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00:00"}, {59, "00:00:59"}, {180, "00:03:00"}, {3661, "01:01:01"}, {-4, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FormatHMS(tt.in); got != tt.want {
			t.Errorf("FormatHMS(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
