package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a Store that lives for the life of the process. Tests use
// it in place of PostgreSQL or the local SQLite database.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) CreateSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ActiveSession(ctx context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *Session
	for _, s := range m.sessions {
		if s.UserID != userID || !s.IsActive {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) {
			s := s
			latest = &s
		}
	}
	return latest, nil
}

func (m *MemoryStore) EndSession(ctx context.Context, id string, endedAt time.Time, d EndDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.IsActive = false
	s.EndedAt = &endedAt
	s.Quality = d.Quality
	s.Notes = d.Notes
	m.sessions[id] = s
	return nil
}
