package session

import (
	"context"
	"fmt"
	"sync"

	"tictacroom/internal/storage"
)

// Store is the authoritative in-memory registry of active sessions.
// It is a container only; sessions are mutated through the Coordinator.
type Store struct {
	gateway  storage.Gateway
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewStore creates an empty Store backed by the given gateway.
func NewStore(gateway storage.Gateway) *Store {
	return &Store{
		gateway:  gateway,
		sessions: make(map[string]*Session),
	}
}

// Create persists a waiting record and registers an empty session under its id.
// Nothing is registered when the gateway write fails.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	id, err := s.gateway.CreateRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	sess := newSession(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
	return sess, nil
}

// Get retrieves a session by id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Remove evicts a session. Removing an absent id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of sessions in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// All returns the sessions currently in memory.
func (s *Store) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}
