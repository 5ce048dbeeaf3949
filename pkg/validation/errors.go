package validation

import (
	"fmt"
	"strings"
)

// Rule names reported in FieldError.Rule.
const (
	RuleRequired  = "required"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
	RuleNumber    = "number"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleEmail     = "email"
	RuleURL       = "url"
	RuleColor     = "color"
	RuleDate      = "date"
	RuleDateRange = "dateRange"
	RuleScale     = "scale"
	RuleOption    = "option"
	RuleFileSize  = "fileSize"
	RuleFileType  = "fileType"
	RulePayment   = "payment"
)

// FieldError is a validation failure for a single field. Message is meant for
// respondents; a configured error message replaces every default.
type FieldError struct {
	FieldID string `json:"fieldId"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.FieldID, e.Message)
}

// ValidationErrors collects field errors for a group of questions, in
// question order.
type ValidationErrors []*FieldError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.FieldID+": "+err.Message)
	}
	return "validation: " + strings.Join(parts, "; ")
}

// Field returns the error recorded for fieldID.
func (errs ValidationErrors) Field(fieldID string) (*FieldError, bool) {
	for _, err := range errs {
		if err.FieldID == fieldID {
			return err, true
		}
	}
	return nil, false
}

// Messages maps field ids to their message.
func (errs ValidationErrors) Messages() map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, err := range errs {
		out[err.FieldID] = err.Message
	}
	return out
}
