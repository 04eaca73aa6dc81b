package memory

import (
	"context"
	"sync"

	"survey-flow-service/internal/domain"
)

// ResponseArchive keeps completed responses in memory. It backs the demo
// deployment and tests; production runs use the Postgres archiver.
type ResponseArchive struct {
	mu        sync.RWMutex
	responses []domain.Response
}

func NewResponseArchive() *ResponseArchive {
	return &ResponseArchive{}
}

func (a *ResponseArchive) ArchiveResponse(_ context.Context, resp domain.Response) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses = append(a.responses, resp)
	return nil
}

// Responses returns the archived responses for a survey, oldest first.
func (a *ResponseArchive) Responses(surveyID string) []domain.Response {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []domain.Response
	for _, resp := range a.responses {
		if resp.SurveyID == surveyID {
			out = append(out, resp)
		}
	}
	return out
}
