package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/repository"
)

var _ repository.SessionRepository = (*SessionStore)(nil)

// SessionStore is a sync.Mutex-guarded in-memory session store.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

// Create implements repository.SessionRepository.
func (s *SessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionID]; ok {
		return domain.NewAlreadyExistsError("session", session.SessionID)
	}
	s.sessions[session.SessionID] = session
	return nil
}

// Get implements repository.SessionRepository.
func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Expired(time.Now().UTC()) {
		return nil, domain.NewNotFoundError("session", sessionID)
	}
	cp := sess
	return &cp, nil
}

// Touch implements repository.SessionRepository.
func (s *SessionStore) Touch(_ context.Context, sessionID string, newExpiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.NewNotFoundError("session", sessionID)
	}
	sess.ExpiresAt = newExpiresAt
	s.sessions[sessionID] = sess
	return nil
}

// Delete implements repository.SessionRepository.
func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// DeleteExpired implements repository.SessionRepository.
func (s *SessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
