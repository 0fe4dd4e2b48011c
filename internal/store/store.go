package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cragcast/internal/session"
	"cragcast/internal/weather"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS climbing_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	energy_level INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	session_quality INTEGER,
	notes TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS climbing_sessions_active_idx
	ON climbing_sessions (user_id, started_at DESC) WHERE is_active;

CREATE TABLE IF NOT EXISTS forecast_days (
	grid_lat DOUBLE PRECISION NOT NULL,
	grid_lon DOUBLE PRECISION NOT NULL,
	forecast_for DATE NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	temp DOUBLE PRECISION NOT NULL,
	humidity INTEGER NOT NULL,
	precipitation INTEGER NOT NULL,
	description TEXT NOT NULL,
	icon TEXT NOT NULL,
	PRIMARY KEY (grid_lat, grid_lon, forecast_for)
);`

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertForecast replaces the stored days for a grid cell. Days older than
// the new forecast's first date are dropped.
func (s *Store) UpsertForecast(ctx context.Context, gridLat, gridLon float64, days []weather.ForecastDay, fetchedAt time.Time) error {
	if len(days) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range days {
		batch.Queue(
			`INSERT INTO forecast_days (grid_lat, grid_lon, forecast_for, fetched_at, temp, humidity, precipitation, description, icon)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (grid_lat, grid_lon, forecast_for) DO UPDATE SET
			   fetched_at = $4, temp = $5, humidity = $6, precipitation = $7, description = $8, icon = $9`,
			gridLat, gridLon, d.Date, fetchedAt, d.Temp, d.Humidity, d.Precipitation, d.Description, d.Icon,
		)
	}
	batch.Queue(
		`DELETE FROM forecast_days WHERE grid_lat = $1 AND grid_lon = $2 AND forecast_for < $3`,
		gridLat, gridLon, days[0].Date,
	)
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range days {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert forecast day: %w", err)
		}
	}
	if _, err := br.Exec(); err != nil {
		return fmt.Errorf("prune forecast days: %w", err)
	}
	return nil
}

// GetForecast returns the stored days for a grid cell in date order, with
// the oldest fetch time among them.
func (s *Store) GetForecast(ctx context.Context, gridLat, gridLon float64) ([]weather.ForecastDay, time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT forecast_for, fetched_at, temp, humidity, precipitation, description, icon
		 FROM forecast_days
		 WHERE grid_lat = $1 AND grid_lon = $2
		 ORDER BY forecast_for
		 LIMIT 16`,
		gridLat, gridLon,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get forecast: %w", err)
	}
	defer rows.Close()

	var (
		result    []weather.ForecastDay
		fetchedAt time.Time
	)
	for rows.Next() {
		var (
			d  weather.ForecastDay
			at time.Time
		)
		if err := rows.Scan(&d.Date, &at, &d.Temp, &d.Humidity, &d.Precipitation, &d.Description, &d.Icon); err != nil {
			return nil, time.Time{}, err
		}
		if fetchedAt.IsZero() || at.Before(fetchedAt) {
			fetchedAt = at
		}
		result = append(result, d)
	}
	return result, fetchedAt, rows.Err()
}

func (s *Store) CreateSession(ctx context.Context, sess session.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO climbing_sessions (id, user_id, location, energy_level, started_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.UserID, sess.Location, sess.EnergyLevel, sess.StartedAt, sess.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, location, energy_level, started_at, ended_at, is_active, session_quality, notes`

func scanSession(row pgx.Row) (session.Session, error) {
	var sess session.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Location, &sess.EnergyLevel, &sess.StartedAt,
		&sess.EndedAt, &sess.IsActive, &sess.Quality, &sess.Notes)
	return sess, err
}

func (s *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM climbing_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return sess, session.ErrNotFound
	}
	if err != nil {
		return sess, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ActiveSession returns the user's most recent active session, or nil.
func (s *Store) ActiveSession(ctx context.Context, userID string) (*session.Session, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM climbing_sessions
		 WHERE user_id = $1 AND is_active
		 ORDER BY started_at DESC
		 LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return &sess, nil
}

func (s *Store) EndSession(ctx context.Context, id string, endedAt time.Time, d session.EndDetails) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE climbing_sessions
		 SET is_active = FALSE, ended_at = $2, session_quality = $3, notes = $4
		 WHERE id = $1`,
		id, endedAt, d.Quality, d.Notes,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}
