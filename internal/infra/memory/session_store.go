package memory

import (
	"context"
	"sync"

	"survey-flow-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Answers live inside the sessions themselves, so SaveAnswer has nothing
// extra to do; idle sessions with answers are kept around for resumption.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(_ context.Context, surveyID, sessionID string) (*app.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session, false, nil
	}
	session := app.NewSession(sessionID, surveyID)
	s.sessions[sessionID] = session
	return session, true, nil
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) SaveAnswer(_ context.Context, _ *app.Session, _ string, _ any) error {
	return nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *SessionStore) DeleteIfEmpty(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	if session.IsEmpty() {
		delete(s.sessions, sessionID)
	}
}
