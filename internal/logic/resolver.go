package logic

import (
	"strings"

	"survey-flow-service/internal/domain"
)

// Decision is the outcome of evaluating a question's rule set against the
// current answers. JumpTarget is only set when a jump rule matched; the
// question itself is hidden and the target id is surfaced so callers can
// hint where the flow lands next. Evaluation never reorders questions.
type Decision struct {
	Visible    bool
	JumpTarget string
}

// Resolve evaluates rules in declaration order and stops at the first rule
// whose condition matches. Questions with no rules, a nil rule set, or no
// matching rule are visible. ownerID is the id of the question the rule
// set belongs to; rules that reference it never match.
//
// Resolve is pure: same rules and answers always produce the same Decision,
// and answers is never mutated.
func Resolve(rs *domain.LogicRuleSet, ownerID string, answers domain.AnswerSnapshot) Decision {
	if rs == nil || len(rs.Rules) == 0 {
		return Decision{Visible: true}
	}
	for _, rule := range rs.Rules {
		if !conditionMatches(rule.Condition, ownerID, answers) {
			continue
		}
		switch rule.Action.Type {
		case domain.ActionShow:
			return Decision{Visible: true}
		case domain.ActionHide:
			return Decision{Visible: false}
		case domain.ActionJump:
			return Decision{Visible: false, JumpTarget: rule.Action.TargetQuestionID}
		default:
			// Unknown action: the rule contributes nothing, keep scanning.
			continue
		}
	}
	return Decision{Visible: true}
}

// IsVisible is Resolve reduced to the visibility bit.
func IsVisible(rs *domain.LogicRuleSet, ownerID string, answers domain.AnswerSnapshot) bool {
	return Resolve(rs, ownerID, answers).Visible
}

// conditionMatches reports whether a single condition holds. Malformed
// conditions never match and never panic; a broken rule must not take a
// whole survey down.
func conditionMatches(c *domain.Condition, ownerID string, answers domain.AnswerSnapshot) bool {
	if c == nil || c.QuestionID == "" {
		return false
	}
	if c.QuestionID == ownerID {
		// Self-referential rules would read the answer of a question
		// whose visibility is still being decided.
		return false
	}

	value, answered := answers[c.QuestionID]
	if !answered {
		value = nil
	}

	switch c.Operator {
	case domain.OpIsEmpty:
		return IsEmptyValue(value)
	case domain.OpIsNotEmpty:
		return !IsEmptyValue(value)
	}

	// Everything below compares against an actual answer.
	if value == nil {
		return false
	}

	switch c.Operator {
	case domain.OpEquals:
		return equalValues(value, c.Value)
	case domain.OpNotEquals:
		return !equalValues(value, c.Value)
	case domain.OpContains:
		return containsValue(value, c.Value)
	case domain.OpNotContains:
		return !containsValue(value, c.Value)
	case domain.OpGreaterThan:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a > b })
	case domain.OpLessThan:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a < b })
	case domain.OpGreaterThanOrEqual:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a >= b })
	case domain.OpLessThanOrEqual:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a <= b })
	}
	return false
}

// equalValues compares answer and condition value as strings, except when
// the answer is itself a number: then the condition value may be a number
// or a numeric string, so that a rating of 7 matches "7". A string answer
// of "7.0" stays a string and does not match "7".
func equalValues(got, want any) bool {
	if n, ok := numericValue(got); ok {
		if m, ok := toNumber(want); ok {
			return n == m
		}
		return false
	}
	gs, ok := toString(got)
	if !ok {
		return false
	}
	ws, ok := toString(want)
	if !ok {
		return false
	}
	return gs == ws
}

// containsValue is element membership for list answers and case-sensitive
// substring search for string answers. Exact element match only: selecting
// "blue-green" does not contain "blue".
func containsValue(got, want any) bool {
	ws, ok := toString(want)
	if !ok {
		return false
	}
	if items, ok := toList(got); ok {
		for _, item := range items {
			if item == ws {
				return true
			}
		}
		return false
	}
	if gs, ok := got.(string); ok {
		return strings.Contains(gs, ws)
	}
	return false
}

// compareNumbers applies cmp when both sides parse as numbers and returns
// false otherwise. Ordering over non-numeric values is undefined, so it
// fails closed rather than guessing a lexicographic order.
func compareNumbers(got, want any, cmp func(a, b float64) bool) bool {
	a, ok := toNumber(got)
	if !ok {
		return false
	}
	b, ok := toNumber(want)
	if !ok {
		return false
	}
	return cmp(a, b)
}
