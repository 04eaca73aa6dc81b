package domain

import "time"

// QuestionType is the declared input type of a question. The evaluation
// engines do not branch on it, but stores and clients rely on the fixed set.
type QuestionType string

const (
	TypeShortText      QuestionType = "short_text"
	TypeLongText       QuestionType = "long_text"
	TypeNumber         QuestionType = "number"
	TypeEmail          QuestionType = "email"
	TypePhone          QuestionType = "phone"
	TypeSingleChoice   QuestionType = "single_choice"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeDropdown       QuestionType = "dropdown"
	TypeRating         QuestionType = "rating"
	TypeScale          QuestionType = "scale"
	TypeDate           QuestionType = "date"
	TypeTime           QuestionType = "time"
	TypeDateTime       QuestionType = "datetime"
	TypeFileUpload     QuestionType = "file_upload"
	TypeLocation       QuestionType = "location"
	TypeSignature      QuestionType = "signature"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeShortText, TypeLongText, TypeNumber, TypeEmail, TypePhone,
		TypeSingleChoice, TypeMultipleChoice, TypeDropdown, TypeRating,
		TypeScale, TypeDate, TypeTime, TypeDateTime, TypeFileUpload,
		TypeLocation, TypeSignature:
		return true
	}
	return false
}

// Operator compares a source question's answer against a rule's value.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpGreaterThan,
		OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual, OpIsEmpty,
		OpIsNotEmpty:
		return true
	}
	return false
}

// RequiresValue reports whether op needs a comparison value to be meaningful.
// The emptiness operators inspect the answer alone.
func (op Operator) RequiresValue() bool {
	return op != OpIsEmpty && op != OpIsNotEmpty
}

// ActionType is what a matched rule does to its owning question.
type ActionType string

const (
	ActionShow ActionType = "show"
	ActionHide ActionType = "hide"
	ActionJump ActionType = "jump"
)

// Valid reports whether a is a supported action type.
func (a ActionType) Valid() bool {
	return a == ActionShow || a == ActionHide || a == ActionJump
}

// Condition references another question's answer and a comparison on it.
// QuestionID must differ from the owning question's id; self-references are
// never evaluated.
type Condition struct {
	QuestionID string   `json:"questionId" yaml:"questionId"`
	Operator   Operator `json:"operator" yaml:"operator"`
	Value      any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Action is the consequence of a matched condition. TargetQuestionID is only
// meaningful for jump actions.
type Action struct {
	Type             ActionType `json:"type" yaml:"type"`
	TargetQuestionID string     `json:"targetQuestionId,omitempty" yaml:"targetQuestionId,omitempty"`
}

// Rule pairs one condition with one action inside a rule-set.
type Rule struct {
	ID        string     `json:"id" yaml:"id"`
	Condition *Condition `json:"condition" yaml:"condition"`
	Action    Action     `json:"action" yaml:"action"`
}

// LogicRuleSet is the ordered rule list attached to a question. Order is
// significant: the first rule whose condition matches decides visibility and
// later rules are not evaluated.
type LogicRuleSet struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// Option is one selectable choice for choice-type questions.
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Question is a single survey item. Immutable during an evaluation pass.
type Question struct {
	ID          string        `json:"id" yaml:"id"`
	Type        QuestionType  `json:"type" yaml:"type"`
	Prompt      string        `json:"prompt" yaml:"prompt"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Options     []Option      `json:"options,omitempty" yaml:"options,omitempty"`
	Logic       *LogicRuleSet `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// Survey is an ordered question list. Declaration order doubles as the
// piping order: a question may only reference answers of earlier questions.
type Survey struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title,omitempty" yaml:"title,omitempty"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Question returns the question with the given id, if declared.
func (s Survey) Question(id string) (Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return s.Questions[i], true
		}
	}
	return Question{}, false
}

// QuestionOrder returns the question ids in declaration order.
func (s Survey) QuestionOrder() []string {
	order := make([]string, len(s.Questions))
	for i := range s.Questions {
		order[i] = s.Questions[i].ID
	}
	return order
}

// AnswerSnapshot maps question id to the current in-progress answer value.
// Value shapes are string, float64, bool, []string, or nil/absent for
// unanswered. The engines treat it as read-only.
type AnswerSnapshot map[string]any

// Clone returns a shallow copy so an evaluation pass sees a stable view even
// while the session keeps accepting writes.
func (a AnswerSnapshot) Clone() AnswerSnapshot {
	if a == nil {
		return AnswerSnapshot{}
	}
	out := make(AnswerSnapshot, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Response is a completed session's final answer set, as archived.
type Response struct {
	ID          string         `json:"id"`
	SurveyID    string         `json:"surveyId"`
	SessionID   string         `json:"sessionId"`
	Answers     AnswerSnapshot `json:"answers"`
	CompletedAt time.Time      `json:"completedAt"`
}
