// Package piping substitutes answer references in question prompts.
// A prompt like "Nice to meet you, {{name}}!" renders with the answer
// previously given to the question with id "name". Substitution is plain
// text only; there is no expression language and nothing is evaluated.
package piping

import (
	"regexp"
	"strconv"
	"strings"

	"survey-flow-service/internal/domain"
)

// tokenPattern matches {{ questionId }} with optional inner whitespace.
// Ids are limited to the characters question ids are built from; anything
// else is not a token and passes through verbatim.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\s*\}\}`)

// Context carries what Apply needs to resolve references: the answers so
// far, the survey's question order, and the id of the question whose text
// is being rendered. Only questions strictly earlier in Order than Current
// resolve; references to Current itself, later questions, or unknown ids
// render as the empty string.
type Context struct {
	Answers domain.AnswerSnapshot
	Order   []string
	Current string
}

// Apply renders template, replacing each well-formed token with the
// formatted answer of the referenced question. Unresolvable references
// become empty strings so prompts degrade to readable text rather than
// leaking raw tokens.
func Apply(template string, ctx Context) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	allowed := ctx.allowedIDs()
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		id := tokenPattern.FindStringSubmatch(token)[1]
		if !allowed[id] {
			return ""
		}
		value, ok := ctx.Answers[id]
		if !ok {
			return ""
		}
		return FormatValue(value)
	})
}

// allowedIDs is the set of question ids Current may reference. An empty
// Current means the text is not bound to a position (confirmation pages,
// previews) and every known question is fair game. A Current that is not
// in Order resolves nothing.
func (ctx Context) allowedIDs() map[string]bool {
	allowed := make(map[string]bool, len(ctx.Order))
	if ctx.Current == "" {
		for _, id := range ctx.Order {
			allowed[id] = true
		}
		return allowed
	}
	for _, id := range ctx.Order {
		if id == ctx.Current {
			return allowed
		}
		allowed[id] = true
	}
	// Current not found: no earlier-than relation exists.
	return map[string]bool{}
}

// FormatValue renders an answer for display inside prose. Lists read as
// natural enumerations, numbers drop trailing zeros, and anything with no
// sensible text form disappears.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	}
	return ""
}

// References lists the question ids a template mentions, in order of first
// appearance. Used by survey linting to flag forward references.
func References(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		refs = append(refs, m[1])
	}
	return refs
}
