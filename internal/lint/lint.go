// Package lint checks surveys for authoring mistakes before they are
// published. The runtime engine deliberately tolerates broken rules by
// treating them as non-matching; lint is where those problems surface.
package lint

import (
	"fmt"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/piping"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding. Code is stable and machine-matchable;
// Message is for humans.
type Issue struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	QuestionID string   `json:"questionId,omitempty"`
	RuleID     string   `json:"ruleId,omitempty"`
	Message    string   `json:"message"`
}

// Survey validates a survey definition and returns every finding, in
// question order rather than by severity.
func Survey(s domain.Survey) []Issue {
	var issues []Issue

	position := make(map[string]int, len(s.Questions))
	for i, q := range s.Questions {
		if q.ID == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     "empty_question_id",
				Message:  fmt.Sprintf("question at position %d has no id", i),
			})
			continue
		}
		if _, dup := position[q.ID]; dup {
			issues = append(issues, Issue{
				Severity:   SeverityError,
				Code:       "duplicate_question_id",
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question id %q is used more than once", q.ID),
			})
			continue
		}
		position[q.ID] = i
	}

	for i, q := range s.Questions {
		if q.ID != "" && !q.Type.Valid() {
			issues = append(issues, Issue{
				Severity:   SeverityError,
				Code:       "unknown_question_type",
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %q has unknown type %q", q.ID, q.Type),
			})
		}
		issues = append(issues, lintRules(q, i, position)...)
		issues = append(issues, lintPiping(q, i, position)...)
	}
	return issues
}

// HasErrors reports whether any finding is severe enough to block
// publishing.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

func lintRules(q domain.Question, pos int, position map[string]int) []Issue {
	if q.Logic == nil {
		return nil
	}
	var issues []Issue
	for _, r := range q.Logic.Rules {
		if r.ID == "" {
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				Code:       "empty_rule_id",
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %q has a rule without an id", q.ID),
			})
		}
		issues = append(issues, lintCondition(q, r, position)...)
		issues = append(issues, lintAction(q, r, pos, position)...)
	}
	return issues
}

func lintCondition(q domain.Question, r domain.Rule, position map[string]int) []Issue {
	var issues []Issue
	c := r.Condition
	if c == nil || c.QuestionID == "" {
		return append(issues, Issue{
			Severity:   SeverityError,
			Code:       "missing_condition",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("rule on question %q has no condition source", q.ID),
		})
	}
	if c.QuestionID == q.ID {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       "self_reference",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("rule on question %q references its own answer", q.ID),
		})
	} else if _, known := position[c.QuestionID]; !known {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       "unknown_condition_source",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("rule on question %q references unknown question %q", q.ID, c.QuestionID),
		})
	}
	if !c.Operator.Valid() {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       "unknown_operator",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("rule on question %q uses unknown operator %q", q.ID, c.Operator),
		})
	} else if c.Operator.RequiresValue() && c.Value == nil {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       "missing_comparison_value",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("rule on question %q uses %q without a comparison value", q.ID, c.Operator),
		})
	}
	return issues
}

func lintAction(q domain.Question, r domain.Rule, pos int, position map[string]int) []Issue {
	var issues []Issue
	if !r.Action.Type.Valid() {
		return append(issues, Issue{
			Severity:   SeverityError,
			Code:       "unknown_action",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("rule on question %q uses unknown action %q", q.ID, r.Action.Type),
		})
	}
	if r.Action.Type != domain.ActionJump {
		return nil
	}
	target := r.Action.TargetQuestionID
	if target == "" {
		return append(issues, Issue{
			Severity:   SeverityError,
			Code:       "missing_jump_target",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("jump rule on question %q has no target", q.ID),
		})
	}
	targetPos, known := position[target]
	if !known {
		return append(issues, Issue{
			Severity:   SeverityError,
			Code:       "unknown_jump_target",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("jump rule on question %q targets unknown question %q", q.ID, target),
		})
	}
	if targetPos <= pos {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Code:       "backward_jump",
			QuestionID: q.ID,
			RuleID:     r.ID,
			Message:    fmt.Sprintf("jump rule on question %q targets %q, which does not come after it", q.ID, target),
		})
	}
	return issues
}

func lintPiping(q domain.Question, pos int, position map[string]int) []Issue {
	var issues []Issue
	for _, text := range []string{q.Prompt, q.Description} {
		for _, ref := range piping.References(text) {
			refPos, known := position[ref]
			switch {
			case !known:
				issues = append(issues, Issue{
					Severity:   SeverityWarning,
					Code:       "unknown_reference",
					QuestionID: q.ID,
					Message:    fmt.Sprintf("question %q pipes unknown question %q", q.ID, ref),
				})
			case refPos >= pos:
				issues = append(issues, Issue{
					Severity:   SeverityWarning,
					Code:       "forward_reference",
					QuestionID: q.ID,
					Message:    fmt.Sprintf("question %q pipes %q, which is not answered before it", q.ID, ref),
				})
			}
		}
	}
	return issues
}
