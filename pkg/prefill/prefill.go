// Package prefill converts query-string style key/value pairs into typed
// answers for a form.
package prefill

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

// FromValues coerces values keyed by field id according to each field's type.
// Unknown ids, sections and blank values are ignored. Values that cannot be
// coerced are skipped rather than stored in a shape the field cannot hold.
func FromValues(form model.FormDefinition, values url.Values) model.Answers {
	answers := model.Answers{}
	if len(values) == 0 {
		return answers
	}
	for _, field := range form.Fields {
		if !field.Type.Traits().Answerable {
			continue
		}
		raw, ok := values[field.ID]
		if !ok || len(raw) == 0 {
			continue
		}
		if value, ok := Coerce(field, raw); ok {
			answers[field.ID] = value
		}
	}
	return answers
}

// Coerce converts the raw values supplied for one field. Repeated keys and
// comma-separated values both produce list entries for list types; other
// types use the last non-blank value.
func Coerce(field model.Field, raw []string) (any, bool) {
	traits := field.Type.Traits()
	if traits.List {
		var items []string
		for _, entry := range raw {
			for _, part := range strings.Split(entry, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
		}
		return items, len(items) > 0
	}

	value := lastNonBlank(raw)
	if value == "" {
		return nil, false
	}

	switch field.Type {
	case model.FieldTypeYesNo:
		return parseBool(value)
	case model.FieldTypeNumber, model.FieldTypeRating, model.FieldTypeOpinionScale:
		number, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, false
		}
		return number, true
	case model.FieldTypeDateRange:
		start, end, found := strings.Cut(value, ",")
		if !found {
			return nil, false
		}
		return model.DateRange{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}, true
	case model.FieldTypeColorSelector:
		return colorValue(value), true
	case model.FieldTypeFileUpload, model.FieldTypePayment, model.FieldTypeMatrix:
		return nil, false
	default:
		return value, true
	}
}

func lastNonBlank(raw []string) string {
	for i := len(raw) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(raw[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseBool(value string) (any, bool) {
	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, false
	}
	return parsed, true
}

func colorValue(value string) model.ColorValue {
	if strings.HasPrefix(value, "#") {
		return model.ColorValue{Hex: value, IsCustom: true}
	}
	return model.ColorValue{PantoneCode: value, IsCustom: true}
}
