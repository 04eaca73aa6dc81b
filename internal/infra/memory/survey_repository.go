package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"survey-flow-service/internal/domain"
)

// SurveyLoader fetches survey definitions from a backing store (e.g., Postgres).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, surveyID string) (domain.Survey, error)
}

// SurveyRepository caches survey definitions with TTL to avoid repeated DB
// hits. Definitions change rarely while sessions evaluate them on every
// answer, so a short TTL is plenty.
type SurveyRepository struct {
	loader SurveyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSurvey
}

type cachedSurvey struct {
	survey    domain.Survey
	expiresAt time.Time
}

func NewSurveyRepository(loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSurvey),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID string) (domain.Survey, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[surveyID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.survey, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(surveyID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[surveyID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.survey, nil
		}
		r.mu.RUnlock()

		survey, err := r.loader.LoadSurvey(ctx, surveyID)
		if err != nil {
			return domain.Survey{}, err
		}

		r.mu.Lock()
		r.cache[surveyID] = cachedSurvey{
			survey:    survey,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// StaticSurveyLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticSurveyLoader struct {
	surveys map[string]domain.Survey
}

func NewStaticSurveyLoader(surveys map[string]domain.Survey) *StaticSurveyLoader {
	return &StaticSurveyLoader{surveys: surveys}
}

func (l *StaticSurveyLoader) LoadSurvey(_ context.Context, surveyID string) (domain.Survey, error) {
	if survey, ok := l.surveys[surveyID]; ok {
		return survey, nil
	}
	return domain.Survey{}, domain.ErrSurveyNotFound
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
