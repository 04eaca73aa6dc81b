package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/infra/memory"
)

func TestJoinRendersInitialState(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	state, err := service.Join(ctx, "survey-1", "sess-1")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if state.SurveyID != "survey-1" || state.SessionID != "sess-1" {
		t.Fatalf("unexpected identity: %+v", state)
	}
	// Only color and final are visible before any answers; red_detail
	// hides on is_empty and the jump rule has not matched.
	if ids := questionIDs(state); len(ids) != 2 || ids[0] != "color" || ids[1] != "final" {
		t.Fatalf("visible questions = %v", ids)
	}
	if state.Answered != 0 || state.Total != 2 || state.Percent != 0 {
		t.Fatalf("progress = %d/%d (%d%%)", state.Answered, state.Total, state.Percent)
	}
	// The pipe into final cannot resolve yet.
	if q := findQuestion(t, state, "final"); q.Prompt != "You picked . Anything else?" {
		t.Fatalf("final prompt = %q", q.Prompt)
	}
}

func TestJoinUnknownSurvey(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Join(context.Background(), "survey-404", "sess-1")
	if !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected ErrSurveyNotFound, got %v", err)
	}
}

func TestSetAnswerReevaluatesVisibility(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	mustJoin(t, service, "sess-1")

	state, err := service.SetAnswer(ctx, "sess-1", "color", "red")
	if err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if ids := questionIDs(state); len(ids) != 3 || ids[1] != "red_detail" {
		t.Fatalf("red must reveal red_detail, got %v", ids)
	}
	if q := findQuestion(t, state, "red_detail"); q.Prompt != "Why red?" {
		t.Fatalf("red_detail prompt = %q", q.Prompt)
	}
	if q := findQuestion(t, state, "final"); q.Prompt != "You picked red. Anything else?" {
		t.Fatalf("piped prompt = %q", q.Prompt)
	}
	if state.Answered != 1 || state.Total != 3 {
		t.Fatalf("progress = %d/%d", state.Answered, state.Total)
	}

	// Switching to blue hides red_detail again and triggers the jump
	// past the final question. The red_detail answer is retained but the
	// question no longer renders or counts.
	if _, err := service.SetAnswer(ctx, "sess-1", "red_detail", "because"); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	state, err = service.SetAnswer(ctx, "sess-1", "color", "blue")
	if err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if ids := questionIDs(state); len(ids) != 2 || ids[0] != "color" || ids[1] != "final" {
		t.Fatalf("blue must hide red_detail, got %v", ids)
	}
	if len(state.Jumps) != 1 || state.Jumps[0] != (app.JumpHint{From: "jumpy", To: "final"}) {
		t.Fatalf("jump hints = %v", state.Jumps)
	}

	// And back: the retained answer resurfaces with the question.
	state, err = service.SetAnswer(ctx, "sess-1", "color", "red")
	if err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if q := findQuestion(t, state, "red_detail"); q.Answer != "because" || !q.Answered {
		t.Fatalf("retained answer lost: %+v", q)
	}
	if state.Answered != 2 || state.Total != 3 {
		t.Fatalf("progress = %d/%d", state.Answered, state.Total)
	}
}

func TestSetAnswerValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.SetAnswer(ctx, "sess-404", "color", "red"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	mustJoin(t, service, "sess-1")
	if _, err := service.SetAnswer(ctx, "sess-1", "ghost", "x"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if _, err := service.SetAnswer(ctx, "sess-1", "color", map[string]any{"r": 255}); !errors.Is(err, domain.ErrAnswerInvalid) {
		t.Fatalf("expected ErrAnswerInvalid, got %v", err)
	}
	if _, err := service.SetAnswer(ctx, "sess-1", "color", []any{[]any{"nested"}}); !errors.Is(err, domain.ErrAnswerInvalid) {
		t.Fatalf("expected ErrAnswerInvalid for nested list, got %v", err)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	mustJoin(t, service, "sess-1")

	ch, cancel, err := service.Subscribe(ctx, "sess-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Total != 2 {
		t.Fatalf("initial state total = %d", initial.Total)
	}

	if _, err := service.SetAnswer(ctx, "sess-1", "color", "red"); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	update := <-ch
	if update.Answered != 1 || update.Total != 3 {
		t.Fatalf("expected update after answer, got %+v", update)
	}
}

func TestCompleteRequiresAnswers(t *testing.T) {
	ctx := context.Background()
	service, archive := newTestService()
	mustJoin(t, service, "sess-1")

	_, err := service.Complete(ctx, "sess-1")
	var incomplete *domain.IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != "color" {
		t.Fatalf("missing = %v", incomplete.Missing)
	}
	if len(archive.Responses("survey-1")) != 0 {
		t.Fatalf("incomplete session must not archive")
	}
}

func TestCompleteArchivesAndRetires(t *testing.T) {
	ctx := context.Background()
	service, archive := newTestService()
	mustJoin(t, service, "sess-1")

	if _, err := service.SetAnswer(ctx, "sess-1", "color", "red"); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	// red_detail became visible and required.
	if _, err := service.Complete(ctx, "sess-1"); err == nil {
		t.Fatalf("expected missing red_detail")
	}
	if _, err := service.SetAnswer(ctx, "sess-1", "red_detail", "warm"); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	state, err := service.Complete(ctx, "sess-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !state.Complete || state.Percent != 66 {
		t.Fatalf("final state = %+v", state)
	}

	responses := archive.Responses("survey-1")
	if len(responses) != 1 {
		t.Fatalf("expected one archived response, got %d", len(responses))
	}
	resp := responses[0]
	if resp.ID == "" || resp.SessionID != "sess-1" {
		t.Fatalf("response identity: %+v", resp)
	}
	if resp.Answers["color"] != "red" || resp.Answers["red_detail"] != "warm" {
		t.Fatalf("archived answers: %v", resp.Answers)
	}

	// The session is retired; further writes need a new join.
	if _, err := service.SetAnswer(ctx, "sess-1", "color", "blue"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected retired session, got %v", err)
	}
}

func TestLeaveKeepsAnswersForResume(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	mustJoin(t, service, "sess-1")

	if _, err := service.SetAnswer(ctx, "sess-1", "color", "red"); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	service.Leave(ctx, "sess-1")

	state, err := service.Join(ctx, "survey-1", "sess-1")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if q := findQuestion(t, state, "color"); q.Answer != "red" {
		t.Fatalf("resume lost the answer: %+v", q)
	}
}

func TestLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	store := memory.NewSessionStore()
	repo := memory.NewSurveyRepository(memory.NewStaticSurveyLoader(map[string]domain.Survey{
		"survey-1": testSurvey(),
	}), 5*time.Minute)
	service := app.NewSessionService(repo, store, memory.NewResponseArchive(), app.WithEvents(sink))

	mustJoin(t, service, "sess-1")
	mustJoin(t, service, "sess-1") // rejoin is not a new start
	if _, err := service.SetAnswer(ctx, "sess-1", "color", "blue"); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if _, err := service.Complete(ctx, "sess-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	started, completed := sink.counts()
	if started != 1 || completed != 1 {
		t.Fatalf("events = %d started, %d completed", started, completed)
	}
	if sink.lastCompleted.SurveyID != "survey-1" || sink.lastCompleted.Answered != 1 {
		t.Fatalf("completed event = %+v", sink.lastCompleted)
	}
}

func TestEmptySurveyIsTriviallyComplete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	repo := memory.NewSurveyRepository(memory.NewStaticSurveyLoader(map[string]domain.Survey{
		"blank": {ID: "blank"},
	}), 5*time.Minute)
	service := app.NewSessionService(repo, store, memory.NewResponseArchive())

	state, err := service.Join(ctx, "blank", "sess-1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if state.Total != 0 || state.Percent != 100 {
		t.Fatalf("empty survey state = %+v", state)
	}
	if _, err := service.Complete(ctx, "sess-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func newTestService() (*app.SessionService, *memory.ResponseArchive) {
	store := memory.NewSessionStore()
	repo := memory.NewSurveyRepository(memory.NewStaticSurveyLoader(map[string]domain.Survey{
		"survey-1": testSurvey(),
	}), 5*time.Minute)
	archive := memory.NewResponseArchive()
	return app.NewSessionService(repo, store, archive), archive
}

// testSurvey exercises the three rule shapes: red_detail hides until color
// is answered "red", jumpy jumps to final when color is "blue", and final
// pipes the color back into its prompt.
func testSurvey() domain.Survey {
	return domain.Survey{
		ID:    "survey-1",
		Title: "Color preferences",
		Questions: []domain.Question{
			{
				ID: "color", Type: domain.TypeSingleChoice, Prompt: "Favorite color?", Required: true,
				Options: []domain.Option{{ID: "red", Label: "Red"}, {ID: "blue", Label: "Blue"}},
			},
			{
				ID: "red_detail", Type: domain.TypeShortText, Prompt: "Why red?", Required: true,
				Logic: &domain.LogicRuleSet{Rules: []domain.Rule{
					{
						ID:        "hide-until-answered",
						Condition: &domain.Condition{QuestionID: "color", Operator: domain.OpIsEmpty},
						Action:    domain.Action{Type: domain.ActionHide},
					},
					{
						ID:        "hide-unless-red",
						Condition: &domain.Condition{QuestionID: "color", Operator: domain.OpNotEquals, Value: "red"},
						Action:    domain.Action{Type: domain.ActionHide},
					},
				}},
			},
			{
				ID: "jumpy", Type: domain.TypeShortText, Prompt: "Blue trivia",
				Logic: &domain.LogicRuleSet{Rules: []domain.Rule{
					{
						ID:        "skip-when-blue",
						Condition: &domain.Condition{QuestionID: "color", Operator: domain.OpEquals, Value: "blue"},
						Action:    domain.Action{Type: domain.ActionJump, TargetQuestionID: "final"},
					},
					{
						ID:        "hide-otherwise",
						Condition: &domain.Condition{QuestionID: "color", Operator: domain.OpNotEquals, Value: "blue"},
						Action:    domain.Action{Type: domain.ActionHide},
					},
					{
						ID:        "hide-while-empty",
						Condition: &domain.Condition{QuestionID: "color", Operator: domain.OpIsEmpty},
						Action:    domain.Action{Type: domain.ActionHide},
					},
				}},
			},
			{
				ID: "final", Type: domain.TypeLongText, Prompt: "You picked {{color}}. Anything else?",
			},
		},
	}
}

func mustJoin(t *testing.T, service *app.SessionService, sessionID string) {
	t.Helper()
	if _, err := service.Join(context.Background(), "survey-1", sessionID); err != nil {
		t.Fatalf("join failed: %v", err)
	}
}

func questionIDs(state app.RenderState) []string {
	ids := make([]string, 0, len(state.Questions))
	for _, q := range state.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func findQuestion(t *testing.T, state app.RenderState, id string) app.RenderedQuestion {
	t.Helper()
	for _, q := range state.Questions {
		if q.ID == id {
			return q
		}
	}
	t.Fatalf("question %q not visible in %v", id, questionIDs(state))
	return app.RenderedQuestion{}
}

type recordingSink struct {
	mu            sync.Mutex
	started       int
	completed     int
	lastCompleted app.SessionEvent
}

func (r *recordingSink) SessionStarted(_ context.Context, _ app.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingSink) SessionCompleted(_ context.Context, ev app.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.lastCompleted = ev
}

func (r *recordingSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, r.completed
}
