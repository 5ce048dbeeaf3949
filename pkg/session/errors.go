package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned by operations that need a loaded form.
	ErrNotLoaded = errors.New("session: form not loaded")
	// ErrSessionBound is returned when Load is called with a different slug
	// than the one the session already serves.
	ErrSessionBound = errors.New("session: bound to another form")
	// ErrAtStart is returned by Previous on the first question.
	ErrAtStart = errors.New("session: already at the first question")
	// ErrInvalidPhase signals an operation that the current phase does not
	// allow.
	ErrInvalidPhase = errors.New("session: operation not allowed in this phase")
	// ErrVerificationRequired blocks submit until a fresh verification token
	// is supplied.
	ErrVerificationRequired = errors.New("session: human verification required")
	// ErrIdentityRequired blocks submit on forms that require the respondent
	// to identify themselves.
	ErrIdentityRequired = errors.New("session: respondent identity required")
	// ErrUnknownField is returned for field ids the form does not declare.
	ErrUnknownField = errors.New("session: unknown field")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("session: closed")
)

// SchemaLoadError reports a form that could not be fetched. It is terminal
// for the session.
type SchemaLoadError struct {
	Slug string
	Err  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("session: load form %q: %v", e.Slug, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// PasswordError reports a rejected or unverifiable password. The respondent
// may try again.
type PasswordError struct {
	Err error
}

func (e *PasswordError) Error() string {
	if e.Err == nil {
		return "session: incorrect password"
	}
	return fmt.Sprintf("session: verify password: %v", e.Err)
}

func (e *PasswordError) Unwrap() error { return e.Err }

// UploadError is a field-local upload failure. It never blocks submission of
// the rest of the form.
type UploadError struct {
	FieldID string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("session: upload %s: %v", e.FieldID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PaymentError is a field-local payment authorisation failure.
type PaymentError struct {
	FieldID string
	Status  string
	Err     error
}

func (e *PaymentError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("session: payment %s: %v", e.FieldID, e.Err)
	case e.Status != "":
		return fmt.Sprintf("session: payment %s: status %s", e.FieldID, e.Status)
	default:
		return fmt.Sprintf("session: payment %s failed", e.FieldID)
	}
}

func (e *PaymentError) Unwrap() error { return e.Err }

// SubmissionError reports a failed submit. Answers are preserved and the
// respondent may retry.
type SubmissionError struct {
	FormID string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("session: submit form %s: %v", e.FormID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
