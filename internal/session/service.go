package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cragcast/internal/events"
	"cragcast/internal/timer"
)

// Service starts and ends sessions and hands out the clock and rest timer
// belonging to each one. Timers are rebuilt from the repository the first
// time they are asked for, so a restarted process continues where the last
// one stopped.
type Service struct {
	store Store
	repo  timer.Repository
	bus   *events.Bus
	now   func() time.Time

	mu       sync.Mutex
	clocks   map[string]*timer.SessionClock
	rests    map[string]*timer.RestTimer
	locators map[string]*Locator
}

func NewService(store Store, repo timer.Repository, bus *events.Bus) *Service {
	return &Service{
		store:    store,
		repo:     repo,
		bus:      bus,
		now:      time.Now,
		clocks:   make(map[string]*timer.SessionClock),
		rests:    make(map[string]*timer.RestTimer),
		locators: make(map[string]*Locator),
	}
}

func (s *Service) timerOpts() []timer.Option {
	return []timer.Option{timer.WithNow(s.now), timer.WithBus(s.bus)}
}

func (s *Service) Start(ctx context.Context, userID, location string, energyLevel int) (Session, timer.ClockSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, timer.ClockSnapshot{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if energyLevel < 0 || energyLevel > 10 {
		return Session{}, timer.ClockSnapshot{}, fmt.Errorf("%w: energy_level must be between 0 and 10", ErrInvalidInput)
	}

	active, err := s.store.ActiveSession(ctx, userID)
	if err != nil {
		return Session{}, timer.ClockSnapshot{}, fmt.Errorf("check active session: %w", err)
	}
	if active != nil && s.now().Before(Boundary(active.StartedAt)) {
		return Session{}, timer.ClockSnapshot{}, ErrAlreadyActive
	}

	sess := Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Location:    strings.TrimSpace(location),
		EnergyLevel: energyLevel,
		StartedAt:   s.now().UTC(),
		IsActive:    true,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return Session{}, timer.ClockSnapshot{}, fmt.Errorf("create session: %w", err)
	}

	clock := timer.NewSessionClock(s.repo, sess.ID, sess.UserID, s.timerOpts()...)
	if err := writePointer(ctx, s.repo, sess); err != nil {
		slog.Warn("failed to persist active session pointer", "user_id", userID, "err", err)
	}
	if err := clock.Start(ctx); err != nil {
		return Session{}, timer.ClockSnapshot{}, err
	}

	s.mu.Lock()
	s.clocks[sess.ID] = clock
	s.mu.Unlock()

	slog.Info("session started", "session_id", sess.ID, "user_id", userID, "location", sess.Location)
	return sess, clock.Snapshot(), nil
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.store.GetSession(ctx, id)
}

func (s *Service) activeSession(ctx context.Context, id string) (Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.IsActive {
		return sess, ErrEnded
	}
	return sess, nil
}

// Clock returns the running clock for an active session.
func (s *Service) Clock(ctx context.Context, id string) (*timer.SessionClock, error) {
	s.mu.Lock()
	c, ok := s.clocks[id]
	s.mu.Unlock()
	if ok {
		return c, nil
	}

	sess, err := s.activeSession(ctx, id)
	if err != nil {
		return nil, err
	}
	c = timer.NewSessionClock(s.repo, sess.ID, sess.UserID, s.timerOpts()...)
	c.Restore(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.clocks[id]; ok {
		return existing, nil
	}
	s.clocks[id] = c
	return c, nil
}

// Rest returns the rest timer for an active session.
func (s *Service) Rest(ctx context.Context, id string) (*timer.RestTimer, error) {
	s.mu.Lock()
	r, ok := s.rests[id]
	s.mu.Unlock()
	if ok {
		return r, nil
	}

	if _, err := s.activeSession(ctx, id); err != nil {
		return nil, err
	}
	r = timer.NewRestTimer(s.repo, id, s.timerOpts()...)
	r.Restore(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rests[id]; ok {
		return existing, nil
	}
	s.rests[id] = r
	return r, nil
}

// End stops the session clock, records the end in the store and drops the
// session's timers along with the user's active pointer.
func (s *Service) End(ctx context.Context, id string, d EndDetails) (Session, error) {
	if err := d.validate(); err != nil {
		return Session{}, err
	}
	clock, err := s.Clock(ctx, id)
	if err != nil {
		return Session{}, err
	}

	err = clock.End(ctx, func(ctx context.Context, endedAt time.Time) error {
		return s.store.EndSession(ctx, id, endedAt.UTC(), d)
	})
	if errors.Is(err, timer.ErrInvalidTransition) {
		return Session{}, ErrEnded
	}
	if err != nil {
		return Session{}, fmt.Errorf("end session: %w", err)
	}

	s.mu.Lock()
	rest := s.rests[id]
	delete(s.clocks, id)
	delete(s.rests, id)
	s.mu.Unlock()

	if rest != nil {
		rest.Reset(ctx)
	}
	if err := s.repo.Clear(ctx, id, timer.RestStart, timer.RestEnd, timer.RestPaused, timer.RestDuration); err != nil {
		slog.Warn("failed to clear rest timer state", "session_id", id, "err", err)
	}

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if p, ok, _ := readPointer(ctx, s.repo, sess.UserID); ok && p.SessionID == id {
		if err := s.repo.Clear(ctx, sess.UserID, timer.ActiveSession); err != nil {
			slog.Warn("failed to clear active session pointer", "user_id", sess.UserID, "err", err)
		}
	}

	slog.Info("session ended", "session_id", id, "user_id", sess.UserID, "elapsed", clock.Elapsed().Round(time.Second))
	return sess, nil
}

// Locator returns the active-session locator for userID, backed by the
// same repository and store as the service. Locators are kept so the last
// known status survives a failed remote lookup.
func (s *Service) Locator(userID string) *Locator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locators[userID]; ok {
		return l
	}
	l := NewLocator(userID, s.repo, s.store, s.bus)
	l.now = s.now
	s.locators[userID] = l
	return l
}
