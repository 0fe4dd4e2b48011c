package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cragcast/internal/session"
	"cragcast/internal/timer"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cragcast_test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, ok, err := s.Get(ctx, "s1", timer.SessionStart); err != nil || ok {
		t.Fatalf("expected empty get, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "s1", timer.SessionStart, "a"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "s1", timer.SessionStart, "b"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	s.Set(ctx, "s1", timer.RestEnd, "c")
	s.Set(ctx, "s2", timer.SessionStart, "d")

	v, ok, err := s.Get(ctx, "s1", timer.SessionStart)
	if err != nil || !ok || v != "b" {
		t.Fatalf("got %q ok=%v err=%v, want b", v, ok, err)
	}

	if err := s.Clear(ctx, "s1", timer.SessionStart, timer.RestEnd); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "s1", timer.RestEnd); ok {
		t.Error("rest end should be cleared")
	}
	if v, ok, _ := s.Get(ctx, "s2", timer.SessionStart); !ok || v != "d" {
		t.Errorf("other scope should be untouched, got %q", v)
	}
}

func TestRestTimerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	r := timer.NewRestTimer(s, "s1", timer.WithNow(clock))
	r.Configure(ctx, 2)
	r.Start(ctx)
	s.Close()

	now = now.Add(45 * time.Second)
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	restored := timer.NewRestTimer(s, "s1", timer.WithNow(clock))
	restored.Restore(ctx)
	snap := restored.Snapshot()
	if snap.State != timer.RestStateRunning || snap.Remaining != 75 {
		t.Errorf("got %+v, want running with 75s left", snap)
	}
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	started := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	sess := session.Session{ID: "s1", UserID: "u1", Location: "Rumney", EnergyLevel: 6, StartedAt: started, IsActive: true}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	active, err := s.ActiveSession(ctx, "u1")
	if err != nil || active == nil || active.ID != "s1" || !active.StartedAt.Equal(started) {
		t.Fatalf("ActiveSession = %+v, %v", active, err)
	}

	q := 3
	if err := s.EndSession(ctx, "s1", started.Add(2*time.Hour), session.EndDetails{Quality: &q, Notes: "greasy"}); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if active, _ := s.ActiveSession(ctx, "u1"); active != nil {
		t.Errorf("expected no active session, got %+v", active)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive || got.EndedAt == nil || got.Quality == nil || *got.Quality != 3 || got.Notes != "greasy" {
		t.Errorf("unexpected ended session %+v", got)
	}

	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.EndSession(ctx, "missing", started, session.EndDetails{}); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveSessionPicksLatestStart(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	whole := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	later := whole.Add(500 * time.Millisecond)
	for _, sess := range []session.Session{
		{ID: "later", UserID: "u1", StartedAt: later, IsActive: true},
		{ID: "whole", UserID: "u1", StartedAt: whole, IsActive: true},
	} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession(%s) failed: %v", sess.ID, err)
		}
	}

	active, err := s.ActiveSession(ctx, "u1")
	if err != nil || active == nil {
		t.Fatalf("ActiveSession = %+v, %v", active, err)
	}
	if active.ID != "later" || !active.StartedAt.Equal(later) {
		t.Errorf("got session %s started %v, want later at %v", active.ID, active.StartedAt, later)
	}
}

func TestSessionServiceOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	svc := session.NewService(s, s, nil)

	sess, _, err := svc.Start(ctx, "u2", "Joshua Tree", 8)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	st := svc.Locator("u2").Check(ctx, nil)
	if !st.Active || st.SessionID != sess.ID {
		t.Fatalf("locator status %+v", st)
	}
	if _, err := svc.End(ctx, sess.ID, session.EndDetails{}); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if st := svc.Locator("u2").Check(ctx, nil); st.Active {
		t.Errorf("expected inactive after end, got %+v", st)
	}
}
