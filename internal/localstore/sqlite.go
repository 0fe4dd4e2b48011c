// Package localstore keeps timer anchors, the active-session pointer and,
// when no PostgreSQL database is configured, the sessions themselves in a
// SQLite file so they survive restarts of the CLI or server.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cragcast/internal/timer"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ timer.Repository = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		slog.Warn("could not set WAL mode", "err", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS timer_state (
		scope TEXT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, kind)
	);
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		location TEXT NOT NULL,
		energy_level INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		is_active INTEGER NOT NULL,
		session_quality INTEGER,
		notes TEXT NOT NULL DEFAULT ''
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, scope string, kind timer.Kind) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM timer_state WHERE scope = ? AND kind = ?`, scope, string(kind)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", scope, kind, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, scope string, kind timer.Kind, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO timer_state(scope, kind, value, updated_at) VALUES(?,?,?,?)`,
		scope, string(kind), value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", scope, kind, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, scope string, kinds ...timer.Kind) error {
	if len(kinds) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range kinds {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM timer_state WHERE scope = ? AND kind = ?`, scope, string(k)); err != nil {
			return fmt.Errorf("clear %s/%s: %w", scope, k, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
