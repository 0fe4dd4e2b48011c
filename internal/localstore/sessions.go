package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cragcast/internal/session"
)

var _ session.Store = (*Store)(nil)

// timeLayout has a fixed width so stored timestamps order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) CreateSession(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, user_id, location, energy_level, started_at, is_active) VALUES(?,?,?,?,?,?)`,
		sess.ID, sess.UserID, sess.Location, sess.EnergyLevel, sess.StartedAt.UTC().Format(timeLayout), sess.IsActive)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, location, energy_level, started_at, ended_at, is_active, session_quality, notes`

func scanSession(row interface{ Scan(...any) error }) (session.Session, error) {
	var (
		sess      session.Session
		startedAt string
		endedAt   sql.NullString
		quality   sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Location, &sess.EnergyLevel, &startedAt,
		&endedAt, &sess.IsActive, &quality, &sess.Notes); err != nil {
		return sess, err
	}
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return sess, fmt.Errorf("session %s: bad started_at: %w", sess.ID, err)
	}
	sess.StartedAt = t
	if endedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, endedAt.String); err == nil {
			sess.EndedAt = &t
		}
	}
	if quality.Valid {
		q := int(quality.Int64)
		sess.Quality = &q
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sess, session.ErrNotFound
	}
	if err != nil {
		return sess, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) ActiveSession(ctx context.Context, userID string) (*session.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND is_active = 1
		 ORDER BY started_at DESC LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return &sess, nil
}

func (s *Store) EndSession(ctx context.Context, id string, endedAt time.Time, d session.EndDetails) error {
	var quality any
	if d.Quality != nil {
		quality = *d.Quality
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0, ended_at = ?, session_quality = ?, notes = ? WHERE id = ?`,
		endedAt.UTC().Format(timeLayout), quality, d.Notes, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNotFound
	}
	return nil
}
