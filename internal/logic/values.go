package logic

import (
	"strconv"
	"strings"
)

// Value normalization shared by every operator branch. Keeping the
// coercions in one place is what keeps equals, contains, and the ordering
// operators consistent with each other across answer shapes.

// IsEmptyValue reports whether v counts as unanswered: nil, the empty
// string, or an empty list. Zero numbers and false are answers.
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []string:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}

// numericValue extracts a number from values that are numbers already.
// Numeric-looking strings are deliberately excluded; see equalValues.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// toNumber parses numbers and numeric strings. Anything else fails, which
// makes the ordering operators fail closed.
func toNumber(v any) (float64, bool) {
	if n, ok := numericValue(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// toString renders a scalar or list as its comparison string form. Lists
// join with "," so that a single-element selection compares equal to its
// sole element. Structured values have no string form and fail.
func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case []string:
		return strings.Join(val, ","), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := scalarString(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	}
	return scalarString(v)
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	}
	if n, ok := numericValue(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// toList extracts the element list of a multi-select answer. Scalars are
// not lists; contains falls back to substring matching for them.
func toList(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := scalarString(item)
			if !ok {
				return nil, false
			}
			items = append(items, s)
		}
		return items, true
	}
	return nil, false
}
