package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/metrics"
)

// SessionRepository abstracts how response sessions are stored
// (in-memory, Redis, etc).
type SessionRepository interface {
	// GetOrCreate returns the session with the given id, creating and
	// binding it to surveyID when it does not exist yet. The second
	// result reports whether the session was created by this call.
	GetOrCreate(ctx context.Context, surveyID, sessionID string) (*Session, bool, error)
	Get(sessionID string) (*Session, bool)
	// SaveAnswer persists one answer for later resumption. A nil value
	// removes the stored answer.
	SaveAnswer(ctx context.Context, session *Session, questionID string, value any) error
	// Delete drops the session and any persisted answers.
	Delete(ctx context.Context, sessionID string)
	// DeleteIfEmpty releases an idle session. Stores that persist answers
	// keep them so the participant can resume later.
	DeleteIfEmpty(ctx context.Context, sessionID string)
}

// SurveyRepository loads survey definitions (from cache/backing store).
type SurveyRepository interface {
	GetSurvey(ctx context.Context, surveyID string) (domain.Survey, error)
}

// ResponseArchiver stores completed responses.
type ResponseArchiver interface {
	ArchiveResponse(ctx context.Context, resp domain.Response) error
}

// SessionEvent describes a session lifecycle change for downstream
// consumers.
type SessionEvent struct {
	SurveyID   string    `json:"surveyId"`
	SessionID  string    `json:"sessionId"`
	Answered   int       `json:"answered"`
	Total      int       `json:"total"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventSink receives session lifecycle notifications. Implementations
// must be safe for concurrent use.
type EventSink interface {
	SessionStarted(ctx context.Context, ev SessionEvent)
	SessionCompleted(ctx context.Context, ev SessionEvent)
}

// SessionService contains the core response-session use cases.
type SessionService struct {
	sessions SessionRepository
	surveys  SurveyRepository
	archive  ResponseArchiver
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*SessionService)

// WithEvents publishes lifecycle events to sink.
func WithEvents(sink EventSink) Option {
	return func(s *SessionService) { s.events = sink }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *SessionService) { s.logger = logger }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func NewSessionService(surveys SurveyRepository, store SessionRepository, archive ResponseArchiver, opts ...Option) *SessionService {
	s := &SessionService{
		sessions: store,
		surveys:  surveys,
		archive:  archive,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, surveyID string) *Session {
	return newSession(id, surveyID)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id, surveyID string, now func() time.Time) *Session {
	return newSessionWithClock(id, surveyID, now)
}

// Join attaches a participant to a session, creating it on first contact.
// Participants cannot join unknown surveys. The returned state is the
// current view, including any answers restored from a previous visit.
func (s *SessionService) Join(ctx context.Context, surveyID, sessionID string) (RenderState, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return RenderState{}, err
	}

	session, created, err := s.sessions.GetOrCreate(ctx, surveyID, sessionID)
	if err != nil {
		return RenderState{}, err
	}

	state := session.attach(survey)
	if created {
		metrics.SessionsStarted.Inc()
		if s.events != nil {
			s.events.SessionStarted(ctx, s.eventFromState(state))
		}
	}
	return state, nil
}

// SetAnswer records an answer and returns the re-evaluated state. The
// answer is kept even if a rule later hides its question.
func (s *SessionService) SetAnswer(ctx context.Context, sessionID, questionID string, value any) (RenderState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return RenderState{}, domain.ErrSessionNotFound
	}

	survey, err := s.surveys.GetSurvey(ctx, session.SurveyID())
	if err != nil {
		return RenderState{}, err
	}
	if _, ok := survey.Question(questionID); !ok {
		return RenderState{}, domain.ErrQuestionNotFound
	}

	normalized, err := normalizeAnswer(value)
	if err != nil {
		return RenderState{}, err
	}

	start := time.Now()
	state := session.applyAnswer(survey, questionID, normalized)
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	metrics.AnswersRecorded.Inc()

	if err := s.sessions.SaveAnswer(ctx, session, questionID, normalized); err != nil {
		s.logger.Warn("persist answer failed",
			"sessionId", sessionID, "questionId", questionID, "error", err)
	}
	return state, nil
}

// Subscribe returns a channel that receives state updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan RenderState, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Complete validates that every visible required question is answered,
// archives the response, and retires the session. On missing answers it
// returns a domain.IncompleteError listing the question ids.
func (s *SessionService) Complete(ctx context.Context, sessionID string) (RenderState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return RenderState{}, domain.ErrSessionNotFound
	}

	survey, err := s.surveys.GetSurvey(ctx, session.SurveyID())
	if err != nil {
		return RenderState{}, err
	}

	answers := session.Snapshot()
	if missing := missingRequired(survey, answers); len(missing) > 0 {
		return RenderState{}, &domain.IncompleteError{Missing: missing}
	}

	if s.archive != nil {
		resp := domain.Response{
			ID:          uuid.NewString(),
			SurveyID:    survey.ID,
			SessionID:   sessionID,
			Answers:     answers,
			CompletedAt: s.now(),
		}
		if err := s.archive.ArchiveResponse(ctx, resp); err != nil {
			return RenderState{}, fmt.Errorf("archive response: %w", err)
		}
	}

	state := session.finish(survey)
	s.sessions.Delete(ctx, sessionID)
	metrics.SessionsCompleted.Inc()
	if s.events != nil {
		s.events.SessionCompleted(ctx, s.eventFromState(state))
	}
	return state, nil
}

// Leave detaches a participant and releases the session once nobody is
// connected. Stored answers survive so the session can be resumed.
func (s *SessionService) Leave(ctx context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.detach()
	if session.Idle() {
		s.sessions.DeleteIfEmpty(ctx, sessionID)
	}
}

func (s *SessionService) eventFromState(state RenderState) SessionEvent {
	return SessionEvent{
		SurveyID:   state.SurveyID,
		SessionID:  state.SessionID,
		Answered:   state.Answered,
		Total:      state.Total,
		OccurredAt: s.now(),
	}
}

// normalizeAnswer restricts answers to the shapes the rule engine
// understands: strings, booleans, numbers (widened to float64, matching
// JSON decoding), and flat lists of scalars. A nil value clears the
// answer.
func normalizeAnswer(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool, float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		items := make([]any, 0, len(v))
		for _, item := range v {
			switch item.(type) {
			case []any, []string, map[string]any, nil:
				return nil, domain.ErrAnswerInvalid
			}
			normalized, err := normalizeAnswer(item)
			if err != nil {
				return nil, err
			}
			items = append(items, normalized)
		}
		return items, nil
	}
	return nil, domain.ErrAnswerInvalid
}

// Session is the in-memory state of one participant's pass through a
// survey. Answers are the source of truth while connections are live;
// stores persist them on the side for resumption.
type Session struct {
	id          string
	surveyID    string
	createdAt   time.Time
	now         func() time.Time
	mu          sync.RWMutex
	answers     domain.AnswerSnapshot
	conns       int
	lastState   *RenderState
	subscribers map[chan RenderState]struct{}
}

func newSession(id, surveyID string) *Session {
	return newSessionWithClock(id, surveyID, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id, surveyID string, now func() time.Time) *Session {
	return &Session{
		id:          id,
		surveyID:    surveyID,
		createdAt:   now(),
		now:         now,
		answers:     make(domain.AnswerSnapshot),
		subscribers: make(map[chan RenderState]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) SurveyID() string {
	return s.surveyID
}

// Restore seeds answers persisted by an earlier visit. Meant to run while
// rehydrating, before the session is handed out.
func (s *Session) Restore(answers domain.AnswerSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, value := range answers {
		s.answers[id] = value
	}
}

// Snapshot returns a copy of the current answers.
func (s *Session) Snapshot() domain.AnswerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers.Clone()
}

// Idle reports whether no participant is attached.
func (s *Session) Idle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns == 0
}

// IsEmpty reports whether the session has no connections and no answers.
func (s *Session) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns == 0 && len(s.answers) == 0
}

func (s *Session) attach(survey domain.Survey) RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns++
	return s.renderLocked(survey, false)
}

func (s *Session) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns > 0 {
		s.conns--
	}
}

func (s *Session) applyAnswer(survey domain.Survey, questionID string, value any) RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.answers, questionID)
	} else {
		s.answers[questionID] = value
	}
	return s.renderLocked(survey, false)
}

func (s *Session) finish(survey domain.Survey) RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked(survey, true)
}

// renderLocked recomputes the state, caches it for late subscribers, and
// broadcasts it.
func (s *Session) renderLocked(survey domain.Survey, complete bool) RenderState {
	state := buildRenderState(survey, s.id, s.answers, s.now())
	state.Complete = complete
	s.lastState = &state
	s.broadcastLocked(state)
	return state
}

func (s *Session) subscribe() (<-chan RenderState, func()) {
	ch := make(chan RenderState, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.lastState
	s.mu.Unlock()

	if initial != nil {
		ch <- *initial
	}

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(state RenderState) {
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// Slow readers only ever need the latest state; replace the
			// stale one instead of blocking the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}
