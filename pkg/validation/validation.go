// Package validation checks a single answer against its field's rules.
//
// Validation is pure: it never mutates answers and never talks to a backend.
// Rules run in a fixed order and the first failure wins. The generic rules
// (required, length, pattern, number bounds, email, url) apply to every type;
// a per-type table adds the checks that only make sense for one kind of
// question.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/goliatone/go-formflow/pkg/model"
)

const (
	msgRequired  = "This field is required"
	msgMinLength = "Must be at least %d characters"
	msgMaxLength = "Must be at most %d characters"
	msgPattern   = "Invalid format"
	msgNumber    = "Please enter a valid number"
	msgMin       = "Must be at least %s"
	msgMax       = "Must be at most %s"
	msgEmail     = "Please enter a valid email address"
	msgURL       = "Please enter a valid URL"
	msgColor     = "Color selection requires either a Pantone code or hex color"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// typeValidator runs the checks specific to one field type. It receives a
// non-empty, normalised value.
type typeValidator func(field model.Field, value any) *FieldError

var typeValidators = map[model.FieldType]typeValidator{
	model.FieldTypeNumber:         validateNumber,
	model.FieldTypeEmail:          validateEmail,
	model.FieldTypeURL:            validateURL,
	model.FieldTypeDate:           validateDate,
	model.FieldTypeTime:           validateDate,
	model.FieldTypeDateTime:       validateDate,
	model.FieldTypeDateRange:      validateDateRange,
	model.FieldTypeRating:         validateScale,
	model.FieldTypeOpinionScale:   validateScale,
	model.FieldTypeDropdown:       validateOption,
	model.FieldTypeMultipleChoice: validateOption,
	model.FieldTypeCheckbox:       validateOptions,
	model.FieldTypeFileUpload:     validateFile,
	model.FieldTypePayment:        validatePayment,
}

// Validate checks value against field and returns nil when it passes.
func Validate(field model.Field, value any) *FieldError {
	if !field.Type.Traits().Answerable {
		return nil
	}
	value = model.NormalizeValue(field, value)

	if field.Type == model.FieldTypeColorSelector {
		if field.Required && !colorSatisfied(value) {
			return fail(field, RuleColor, msgColor)
		}
		return nil
	}

	if model.IsEmpty(value) {
		if field.Required {
			return fail(field, RuleRequired, msgRequired)
		}
		return nil
	}

	if err := validateGeneric(field, value); err != nil {
		return err
	}
	if check, ok := typeValidators[field.Type]; ok {
		return check(field, value)
	}
	return nil
}

// ValidateAll validates each field against answers and collects the failures.
func ValidateAll(fields []model.Field, answers model.Answers) ValidationErrors {
	var errs ValidationErrors
	for _, field := range fields {
		if err := Validate(field, answers[field.ID]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateGeneric(field model.Field, value any) *FieldError {
	rules := field.Rules
	text := model.StringOf(value)

	length := utf8.RuneCountInString(text)
	if rules.MinLength != nil && length < *rules.MinLength {
		return fail(field, RuleMinLength, fmt.Sprintf(msgMinLength, *rules.MinLength))
	}
	if rules.MaxLength != nil && length > *rules.MaxLength {
		return fail(field, RuleMaxLength, fmt.Sprintf(msgMaxLength, *rules.MaxLength))
	}
	if rules.Pattern != "" {
		if re, ok := compilePattern(rules.Pattern); ok && !re.MatchString(text) {
			return fail(field, RulePattern, msgPattern)
		}
	}
	return nil
}

func validateNumber(field model.Field, value any) *FieldError {
	number, ok := model.Float64Of(value)
	if !ok {
		return fail(field, RuleNumber, msgNumber)
	}
	if lower := field.Rules.Min; lower != nil && number < *lower {
		return fail(field, RuleMin, fmt.Sprintf(msgMin, model.StringOf(*lower)))
	}
	if upper := field.Rules.Max; upper != nil && number > *upper {
		return fail(field, RuleMax, fmt.Sprintf(msgMax, model.StringOf(*upper)))
	}
	return nil
}

func validateEmail(field model.Field, value any) *FieldError {
	if !emailPattern.MatchString(model.StringOf(value)) {
		return fail(field, RuleEmail, msgEmail)
	}
	return nil
}

func validateURL(field model.Field, value any) *FieldError {
	parsed, err := url.Parse(strings.TrimSpace(model.StringOf(value)))
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return fail(field, RuleURL, msgURL)
	}
	return nil
}

func fail(field model.Field, rule, message string) *FieldError {
	if custom := strings.TrimSpace(field.Rules.ErrorMessage); custom != "" {
		message = custom
	}
	return &FieldError{FieldID: field.ID, Rule: rule, Message: message}
}

var patternCache sync.Map

// compilePattern caches compiled patterns. Malformed patterns are remembered
// as such and skipped by the caller.
func compilePattern(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := patternCache.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)
		return re, re != nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		patternCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil, false
	}
	patternCache.Store(pattern, re)
	return re, true
}
