package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"survey-flow-service/internal/domain"
)

// SurveyLoader fetches survey definitions from a backing store (e.g., Postgres).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, surveyID string) (domain.Survey, error)
}

// SurveyRepository caches survey definitions in Redis and falls back to a
// loader on cache miss. The whole definition is cached, rules included,
// because every answer re-evaluates the full rule set.
// Definitions are stored as: SET survey:{surveyID}:def {json}
type SurveyRepository struct {
	client *redis.Client
	loader SurveyLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewSurveyRepository(client *redis.Client, loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID string) (domain.Survey, error) {
	key := r.defKey(surveyID)

	if survey, ok := r.fromCache(ctx, key); ok {
		return survey, nil
	}

	result, err, _ := r.sf.Do(surveyID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if survey, ok := r.fromCache(ctx, key); ok {
			return survey, nil
		}

		survey, err := r.loader.LoadSurvey(ctx, surveyID)
		if err != nil {
			return domain.Survey{}, err
		}

		if raw, err := json.Marshal(survey); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

func (r *SurveyRepository) fromCache(ctx context.Context, key string) (domain.Survey, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return domain.Survey{}, false
	}
	var survey domain.Survey
	if err := json.Unmarshal(raw, &survey); err != nil {
		// Corrupt entry; reload from the backing store.
		return domain.Survey{}, false
	}
	return survey, true
}

func (r *SurveyRepository) defKey(surveyID string) string {
	return "survey:" + surveyID + ":def"
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
