package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Answers maps field ids to answer values. During a session it is only ever
// appended to or overwritten.
type Answers map[string]any

// Clone returns a shallow copy with list values copied.
func (a Answers) Clone() Answers {
	if a == nil {
		return Answers{}
	}
	out := make(Answers, len(a))
	for key, value := range a {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case []string:
		return append([]string(nil), typed...)
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = cloneValue(v)
		}
		return clone
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = cloneValue(v)
		}
		return clone
	default:
		return typed
	}
}

// DateRange is the answer of a date_range field.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FileValue is the metadata of an uploaded file.
type FileValue struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// PaymentValue records the outcome of a payment authorisation.
type PaymentValue struct {
	IntentID string  `json:"intentId"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PaymentSucceeded is the status reported for a confirmed payment.
const PaymentSucceeded = "succeeded"

// ColorValue is the answer of a color_selector field.
type ColorValue struct {
	Hex         string `json:"hex,omitempty"`
	PantoneCode string `json:"pantoneCode,omitempty"`
	Label       string `json:"label,omitempty"`
	IsCustom    bool   `json:"isCustom"`
}

// IsEmpty reports whether value counts as "no answer": nil, the empty string
// or an empty list. Structured answers are never empty here; NormalizeValue
// turns a structured answer that carries nothing into nil instead.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// IsList reports whether value is a list answer.
func IsList(value any) bool {
	switch value.(type) {
	case []string, []any:
		return true
	}
	if value == nil {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

// StringOf returns the string form of an answer value: strings as-is, numbers
// in their shortest decimal form, booleans as true/false, lists joined with
// commas and structures as JSON. Nil yields the empty string.
func StringOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case json.Number:
		return v.String()
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = StringOf(item)
		}
		return strings.Join(parts, ",")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

// Float64Of coerces numeric answers and numeric strings to float64.
func Float64Of(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// StringsOf returns the elements of a list answer in their string form.
func StringsOf(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = StringOf(item)
		}
		return out
	default:
		return []string{StringOf(v)}
	}
}

// NormalizeValue restores the typed representation of a value for the given
// field. Structured answers that went through JSON (draft restore, pre-fill,
// HTTP) come back as map[string]any and are decoded into their struct types;
// lists of strings become []string. Values that cannot be decoded are
// returned unchanged.
func NormalizeValue(field Field, value any) any {
	if value == nil {
		return nil
	}
	switch field.Type {
	case FieldTypeDateRange:
		if v, ok := decodeInto[DateRange](value); ok {
			return blankToNil(v, v.Start == "" && v.End == "")
		}
	case FieldTypeFileUpload:
		if v, ok := decodeInto[FileValue](value); ok {
			return blankToNil(v, v.URL == "" && v.Name == "")
		}
	case FieldTypePayment:
		if v, ok := decodeInto[PaymentValue](value); ok {
			return blankToNil(v, v.IntentID == "" && v.Status == "")
		}
	case FieldTypeColorSelector:
		if v, ok := decodeInto[ColorValue](value); ok {
			return blankToNil(v, v.Hex == "" && v.PantoneCode == "" && v.Label == "")
		}
	case FieldTypeMatrix:
		if v, ok := value.(map[string]any); ok && len(v) == 0 {
			return nil
		}
	}
	if field.Type.Traits().List {
		switch value.(type) {
		case []any, []string:
			return dropBlank(StringsOf(value))
		}
	}
	return value
}

func blankToNil(value any, blank bool) any {
	if blank {
		return nil
	}
	return value
}

// dropBlank removes whitespace-only entries, keeping a non-nil slice.
func dropBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// NormalizeAnswers applies NormalizeValue to every answer that belongs to a
// field of form. Answers for unknown ids are dropped.
func NormalizeAnswers(form FormDefinition, answers Answers) Answers {
	out := make(Answers, len(answers))
	for _, field := range form.Fields {
		value, ok := answers[field.ID]
		if !ok || !field.Type.Traits().Answerable {
			continue
		}
		out[field.ID] = NormalizeValue(field, value)
	}
	return out
}

func decodeInto[T any](value any) (T, bool) {
	var zero T
	switch v := value.(type) {
	case T:
		return v, true
	case *T:
		if v == nil {
			return zero, false
		}
		return *v, true
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return zero, false
		}
		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return zero, false
		}
		return out, true
	default:
		return zero, false
	}
}
