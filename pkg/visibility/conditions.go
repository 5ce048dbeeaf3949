package visibility

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

// IsVisible evaluates the field's conditional logic against answers.
//
// A field without logic, with logic disabled, or with an empty trigger is
// always visible. Unknown conditions fail open.
func IsVisible(field model.Field, answers model.Answers) bool {
	logic := field.Logic
	if logic == nil || !logic.Enabled {
		return true
	}
	trigger := strings.TrimSpace(logic.TriggerFieldID)
	if trigger == "" {
		return true
	}

	value, ok := answers[trigger]
	if !ok {
		value = nil
	}

	switch logic.Condition {
	case model.ConditionEquals:
		return equals(value, logic.Value)
	case model.ConditionNotEquals:
		return !equals(value, logic.Value)
	case model.ConditionContains:
		return contains(value, logic.Value)
	case model.ConditionIsEmpty:
		return model.IsEmpty(value)
	case model.ConditionIsNotEmpty:
		return !model.IsEmpty(value)
	default:
		return true
	}
}

// equals compares raw values first and then their string forms, so a numeric
// 3 matches "3". Whitespace and case are significant. A missing answer only
// equals a missing expected value.
func equals(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if rawEqual(actual, expected) {
		return true
	}
	return model.StringOf(actual) == model.StringOf(expected)
}

func rawEqual(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func contains(actual, expected any) bool {
	haystack := strings.ToLower(model.StringOf(actual))
	needle := strings.ToLower(model.StringOf(expected))
	return strings.Contains(haystack, needle)
}
