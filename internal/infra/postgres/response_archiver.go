package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"survey-flow-service/internal/domain"
)

// ResponseArchiver stores completed responses as JSONB rows.
type ResponseArchiver struct {
	pool *pgxpool.Pool
}

func NewResponseArchiver(pool *pgxpool.Pool) *ResponseArchiver {
	return &ResponseArchiver{pool: pool}
}

func (a *ResponseArchiver) ArchiveResponse(ctx context.Context, resp domain.Response) error {
	raw, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO responses (id, survey_id, session_id, data, completed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		resp.ID, resp.SurveyID, resp.SessionID, raw, resp.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}
