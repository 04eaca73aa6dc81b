package app

import (
	"time"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/logic"
	"survey-flow-service/internal/piping"
)

// RenderState is what a participant sees at one moment of a session: the
// visible questions with references substituted, jump hints for questions
// a matched rule skipped past, and progress counters. It is recomputed in
// full from the survey definition and the answers, never patched.
type RenderState struct {
	SurveyID  string             `json:"surveyId"`
	SessionID string             `json:"sessionId"`
	Questions []RenderedQuestion `json:"questions"`
	Jumps     []JumpHint         `json:"jumps,omitempty"`
	Answered  int                `json:"answered"`
	Total     int                `json:"total"`
	Percent   int                `json:"percent"`
	Complete  bool               `json:"complete"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// RenderedQuestion is a visible question with its prompt and description
// already piped. Hidden questions never appear here, even when they hold
// retained answers.
type RenderedQuestion struct {
	ID          string              `json:"id"`
	Type        domain.QuestionType `json:"type"`
	Prompt      string              `json:"prompt"`
	Description string              `json:"description,omitempty"`
	Required    bool                `json:"required"`
	Options     []domain.Option     `json:"options,omitempty"`
	Answer      any                 `json:"answer,omitempty"`
	Answered    bool                `json:"answered"`
}

// JumpHint records that a matched jump rule hid From and points the flow
// at To. Hints are advisory; question order itself never changes.
type JumpHint struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// buildRenderState evaluates every question's rules against the answers
// and assembles the participant view. Progress counts visible questions
// only, so hiding an answered question lowers both Answered and Total.
func buildRenderState(survey domain.Survey, sessionID string, answers domain.AnswerSnapshot, now time.Time) RenderState {
	order := survey.QuestionOrder()
	questions := make([]RenderedQuestion, 0, len(survey.Questions))
	var jumps []JumpHint
	answered := 0

	for _, q := range survey.Questions {
		decision := logic.Resolve(q.Logic, q.ID, answers)
		if !decision.Visible {
			if decision.JumpTarget != "" {
				jumps = append(jumps, JumpHint{From: q.ID, To: decision.JumpTarget})
			}
			continue
		}

		pipeCtx := piping.Context{Answers: answers, Order: order, Current: q.ID}
		value, has := answers[q.ID]
		hasAnswer := has && !logic.IsEmptyValue(value)
		if hasAnswer {
			answered++
		}

		rq := RenderedQuestion{
			ID:          q.ID,
			Type:        q.Type,
			Prompt:      piping.Apply(q.Prompt, pipeCtx),
			Description: piping.Apply(q.Description, pipeCtx),
			Required:    q.Required,
			Options:     q.Options,
			Answered:    hasAnswer,
		}
		if has {
			rq.Answer = value
		}
		questions = append(questions, rq)
	}

	total := len(questions)
	percent := 100
	if total > 0 {
		percent = answered * 100 / total
	}

	return RenderState{
		SurveyID:  survey.ID,
		SessionID: sessionID,
		Questions: questions,
		Jumps:     jumps,
		Answered:  answered,
		Total:     total,
		Percent:   percent,
		UpdatedAt: now,
	}
}

// missingRequired lists visible required questions that are still
// unanswered. Answers held by hidden questions are retained but never
// satisfy or trigger a requirement.
func missingRequired(survey domain.Survey, answers domain.AnswerSnapshot) []string {
	var missing []string
	for _, q := range survey.Questions {
		if !q.Required {
			continue
		}
		if !logic.IsVisible(q.Logic, q.ID, answers) {
			continue
		}
		if logic.IsEmptyValue(answers[q.ID]) {
			missing = append(missing, q.ID)
		}
	}
	return missing
}
