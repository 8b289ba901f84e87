package memory

import (
	"sync"

	"readquest-service/internal/app"
)

// SessionStore is the in-memory implementation of app.SessionRepository.
// Quiz sessions are ephemeral and single-owner, so a process-local map is all
// that is ever needed.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.QuizSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*app.QuizSession)}
}

func (s *SessionStore) Put(key string, session *app.QuizSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = session
}

func (s *SessionStore) Get(key string) (*app.QuizSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	return session, ok
}

func (s *SessionStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}
