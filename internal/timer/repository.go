// Package timer implements the session clock and the rest countdown.
// Both keep their anchors in a Repository so a reload, another tab or a
// later CLI run picks up where the previous one stopped.
package timer

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Kind names one persisted value within a scope (a session id, or a user
// id for the active-session pointer).
type Kind string

const (
	SessionStart  Kind = "session_start"
	SessionPaused Kind = "session_paused"
	RestStart     Kind = "rest_start"
	RestEnd       Kind = "rest_end"
	RestPaused    Kind = "rest_paused"
	RestDuration  Kind = "rest_duration"
	ActiveSession Kind = "active_session"
)

type Repository interface {
	Get(ctx context.Context, scope string, kind Kind) (value string, ok bool, err error)
	Set(ctx context.Context, scope string, kind Kind, value string) error
	Clear(ctx context.Context, scope string, kinds ...Kind) error
}

type repoKey struct {
	scope string
	kind  Kind
}

// MemoryRepository keeps values for the life of the process.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[repoKey]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[repoKey]string)}
}

func (r *MemoryRepository) Get(ctx context.Context, scope string, kind Kind) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[repoKey{scope, kind}]
	return v, ok, nil
}

func (r *MemoryRepository) Set(ctx context.Context, scope string, kind Kind, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[repoKey{scope, kind}] = value
	return nil
}

func (r *MemoryRepository) Clear(ctx context.Context, scope string, kinds ...Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		delete(r.m, repoKey{scope, k})
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func encodeInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func decodeInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
