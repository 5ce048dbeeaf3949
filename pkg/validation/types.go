package validation

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

const (
	msgDate      = "Please enter a valid date"
	msgDateOrder = "End date must be on or after the start date"
	msgScale     = "Must be between %d and %d"
	msgOption    = "Please choose one of the available options"
	msgFileSize  = "File must be at most %d bytes"
	msgFileType  = "This file type is not allowed"
	msgPayment   = "Payment has not been completed"
)

var layouts = map[model.FieldType][]string{
	model.FieldTypeDate:     {"2006-01-02"},
	model.FieldTypeTime:     {"15:04", "15:04:05"},
	model.FieldTypeDateTime: {time.RFC3339, "2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04"},
}

func parseAny(fieldType model.FieldType, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range layouts[fieldType] {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func validateDate(field model.Field, value any) *FieldError {
	if _, ok := parseAny(field.Type, model.StringOf(value)); !ok {
		return fail(field, RuleDate, msgDate)
	}
	return nil
}

func validateDateRange(field model.Field, value any) *FieldError {
	rng, ok := value.(model.DateRange)
	if !ok {
		return fail(field, RuleDateRange, msgDate)
	}
	start, okStart := parseAny(model.FieldTypeDate, rng.Start)
	end, okEnd := parseAny(model.FieldTypeDate, rng.End)
	if !okStart || !okEnd {
		return fail(field, RuleDateRange, msgDate)
	}
	if end.Before(start) {
		return fail(field, RuleDateRange, msgDateOrder)
	}
	return nil
}

// validateScale bounds rating answers to 1..scale and opinion answers to
// 0..scale.
func validateScale(field model.Field, value any) *FieldError {
	lower, upper := field.ScaleBounds()
	number, ok := model.Float64Of(value)
	if !ok {
		return fail(field, RuleNumber, msgNumber)
	}
	if number < float64(lower) || number > float64(upper) {
		return fail(field, RuleScale, fmt.Sprintf(msgScale, lower, upper))
	}
	return nil
}

func validateOption(field model.Field, value any) *FieldError {
	if len(field.Options) == 0 {
		return nil
	}
	if !hasOption(field.Options, model.StringOf(value)) {
		return fail(field, RuleOption, msgOption)
	}
	return nil
}

func validateOptions(field model.Field, value any) *FieldError {
	if len(field.Options) == 0 {
		return nil
	}
	for _, item := range model.StringsOf(value) {
		if !hasOption(field.Options, item) {
			return fail(field, RuleOption, msgOption)
		}
	}
	return nil
}

func hasOption(options []model.Option, candidate string) bool {
	for _, option := range options {
		if model.StringOf(option.Value) == candidate {
			return true
		}
	}
	return false
}

func validateFile(field model.Field, value any) *FieldError {
	file, ok := value.(model.FileValue)
	if !ok {
		return nil
	}
	if limit := field.Rules.MaxFileSize; limit != nil && *limit > 0 && file.Size > *limit {
		return fail(field, RuleFileSize, fmt.Sprintf(msgFileSize, *limit))
	}
	if len(field.Rules.AllowedTypes) > 0 && !allowedType(field.Rules.AllowedTypes, file) {
		return fail(field, RuleFileType, msgFileType)
	}
	return nil
}

// allowedType accepts exact media types, wildcard families such as image/*
// and file extensions such as .pdf.
func allowedType(allowed []string, file model.FileValue) bool {
	mediaType := strings.ToLower(strings.TrimSpace(file.Type))
	ext := strings.ToLower(path.Ext(file.Name))
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
			continue
		case strings.HasPrefix(entry, "."):
			if ext == entry {
				return true
			}
		case strings.HasSuffix(entry, "/*"):
			if strings.HasPrefix(mediaType, strings.TrimSuffix(entry, "*")) {
				return true
			}
		case entry == mediaType:
			return true
		}
	}
	return false
}

func validatePayment(field model.Field, value any) *FieldError {
	payment, ok := value.(model.PaymentValue)
	if !ok || payment.Status != model.PaymentSucceeded {
		return fail(field, RulePayment, msgPayment)
	}
	return nil
}

// colorSatisfied accepts a pantone code, a hex value or a pre-selected
// (non-custom) palette entry.
func colorSatisfied(value any) bool {
	switch color := value.(type) {
	case model.ColorValue:
		if strings.TrimSpace(color.PantoneCode) != "" || strings.TrimSpace(color.Hex) != "" {
			return true
		}
		return !color.IsCustom && strings.TrimSpace(color.Label) != ""
	case string:
		return strings.TrimSpace(color) != ""
	default:
		return false
	}
}
