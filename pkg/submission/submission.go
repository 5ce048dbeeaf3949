// Package submission turns a finished answer set into the wire payload sent
// to the backend.
package submission

import (
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Option customises an assembled payload.
type Option func(*model.SubmissionPayload)

// WithIdentity attaches the respondent identity. Empty identities are
// ignored.
func WithIdentity(identity *model.Identity) Option {
	return func(p *model.SubmissionPayload) {
		if identity.Empty() {
			return
		}
		clone := model.Identity{
			Name:  strings.TrimSpace(identity.Name),
			Email: strings.TrimSpace(identity.Email),
		}
		p.SubmitterIdentity = &clone
	}
}

// Assemble builds the payload from the answers that belong to form. Records
// follow field declaration order; unanswered and empty fields are omitted and
// sections never produce a record.
func Assemble(form model.FormDefinition, answers model.Answers, startedAt, now time.Time, opts ...Option) model.SubmissionPayload {
	payload := model.SubmissionPayload{
		FormID:           form.ID,
		StartedAt:        startedAt,
		TimeSpentSeconds: elapsedSeconds(startedAt, now),
		Status:           model.SubmissionStatusCompleted,
		Answers:          make([]model.AnswerRecord, 0, len(answers)),
	}

	for _, field := range form.Fields {
		if !field.Type.Traits().Answerable {
			continue
		}
		value, ok := answers[field.ID]
		if !ok {
			continue
		}
		value = model.NormalizeValue(field, value)
		if model.IsEmpty(value) {
			continue
		}
		record := Record(field, value)
		if record.AnswerText == "" {
			continue
		}
		payload.Answers = append(payload.Answers, record)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&payload)
		}
	}
	return payload
}

// Record builds the answer record for a single non-empty value.
func Record(field model.Field, value any) model.AnswerRecord {
	value = model.NormalizeValue(field, value)
	return model.AnswerRecord{
		FieldID:     field.ID,
		AnswerText:  model.StringOf(value),
		AnswerValue: structuredValue(value),
	}
}

// structuredValue wraps scalars and lists as {"value": v}; structured answers
// are carried as they are.
func structuredValue(value any) any {
	switch value.(type) {
	case model.DateRange, model.FileValue, model.PaymentValue, model.ColorValue, map[string]any:
		return value
	}
	return map[string]any{"value": value}
}

func elapsedSeconds(startedAt, now time.Time) int64 {
	if startedAt.IsZero() || now.Before(startedAt) {
		return 0
	}
	return int64(now.Sub(startedAt) / time.Second)
}
