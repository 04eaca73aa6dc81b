package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSurveyNotFound indicates the survey definition could not be loaded.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrSessionNotFound is returned when a response session has not been started.
	ErrSessionNotFound = errors.New("response session not found")
	// ErrQuestionNotFound indicates a submitted question id is not declared by the survey.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerInvalid indicates an answer value with an unsupported shape.
	ErrAnswerInvalid = errors.New("answer value has an unsupported shape")
	// ErrIncompleteResponse is returned when completion is attempted while a
	// visible required question is still unanswered.
	ErrIncompleteResponse = errors.New("required questions unanswered")
)

// IncompleteError carries the ids of the visible required questions that are
// still unanswered. It unwraps to ErrIncompleteResponse.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	if e == nil || len(e.Missing) == 0 {
		return ErrIncompleteResponse.Error()
	}
	return fmt.Sprintf("%s: %s", ErrIncompleteResponse.Error(), strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Unwrap() error { return ErrIncompleteResponse }
