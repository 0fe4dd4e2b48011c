// Package session tracks climbing sessions: who is climbing where, the
// session clock and rest timer that belong to each session, and which
// session (if any) is currently in progress for a user.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrEnded         = errors.New("session already ended")
	ErrAlreadyActive = errors.New("user already has an active session")
	ErrInvalidInput  = errors.New("invalid session input")
)

type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Location    string     `json:"location"`
	EnergyLevel int        `json:"energy_level"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	Quality     *int       `json:"session_quality,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// EndDetails is what the climber reports when finishing a session.
type EndDetails struct {
	Quality *int
	Notes   string
}

func (d EndDetails) validate() error {
	if d.Quality != nil && (*d.Quality < 1 || *d.Quality > 5) {
		return fmt.Errorf("%w: session quality must be between 1 and 5", ErrInvalidInput)
	}
	return nil
}

// Remote is the authoritative answer to "is this user climbing right now".
type Remote interface {
	ActiveSession(ctx context.Context, userID string) (*Session, error)
}

type Store interface {
	Remote
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	EndSession(ctx context.Context, id string, endedAt time.Time, d EndDetails) error
}

// Boundary is the instant after which a session started at startedAt no
// longer counts as in progress: the end of that UTC calendar day.
func Boundary(startedAt time.Time) time.Time {
	y, m, d := startedAt.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
