package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
)

// SessionStore is a Redis-backed implementation of app.SessionRepository.
// Notes:
//   - It keeps a local in-memory map of sessions to reuse the in-process
//     broadcast logic; Redis holds the answers.
//   - A participant who disconnects and returns later (or lands on another
//     instance) gets their answers rehydrated from the hash.
//   - For live cross-instance fanout you'd pair this with a pub/sub
//     projector that routes state updates between instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(ctx context.Context, surveyID, sessionID string) (*app.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session, false, nil
	}

	stored, err := s.client.HGetAll(ctx, s.answersKey(sessionID)).Result()
	if err != nil {
		return nil, false, err
	}

	session := app.NewSession(sessionID, surveyID)
	if len(stored) > 0 {
		session.Restore(decodeAnswers(stored))
	}
	s.sessions[sessionID] = session
	return session, len(stored) == 0, nil
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) SaveAnswer(ctx context.Context, session *app.Session, questionID string, value any) error {
	key := s.answersKey(session.ID())
	if value == nil {
		return s.client.HDel(ctx, key, questionID).Err()
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, questionID, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	_ = s.client.Del(ctx, s.answersKey(sessionID)).Err()
}

func (s *SessionStore) DeleteIfEmpty(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	if !session.Idle() {
		return
	}
	// Only the in-process state is released; answers stay in Redis so
	// the participant can resume.
	delete(s.sessions, sessionID)
	if session.IsEmpty() {
		_ = s.client.Del(ctx, s.answersKey(sessionID)).Err()
	}
}

func (s *SessionStore) answersKey(sessionID string) string {
	return "session:" + sessionID + ":answers"
}

func decodeAnswers(stored map[string]string) domain.AnswerSnapshot {
	answers := make(domain.AnswerSnapshot, len(stored))
	for questionID, raw := range stored {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			continue
		}
		answers[questionID] = value
	}
	return answers
}
