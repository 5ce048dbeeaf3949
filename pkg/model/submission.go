package model

import (
	"io"
	"time"
)

// SubmissionStatusCompleted marks a payload assembled from a finished session.
const SubmissionStatusCompleted = "completed"

// Draft is the persisted in-progress state of one respondent for one form.
type Draft struct {
	FormID               string    `json:"formId"`
	Answers              Answers   `json:"answers"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	SavedAt              time.Time `json:"savedAt"`
}

// Identity is the optional respondent identity captured with a submission.
type Identity struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Empty reports whether no identity detail was provided.
func (i *Identity) Empty() bool {
	return i == nil || (i.Name == "" && i.Email == "")
}

// AnswerRecord is one answered field inside a submission payload.
type AnswerRecord struct {
	FieldID     string `json:"fieldId"`
	AnswerText  string `json:"answerText"`
	AnswerValue any    `json:"answerValue"`
}

// SubmissionPayload is the immutable wire payload sent on submit.
type SubmissionPayload struct {
	FormID            string         `json:"formId"`
	StartedAt         time.Time      `json:"startedAt"`
	TimeSpentSeconds  int64          `json:"timeSpentSeconds"`
	Status            string         `json:"status"`
	SubmitterIdentity *Identity      `json:"submitterIdentity,omitempty"`
	Answers           []AnswerRecord `json:"answers"`
}

// Answer returns the record for fieldID.
func (p SubmissionPayload) Answer(fieldID string) (AnswerRecord, bool) {
	for _, record := range p.Answers {
		if record.FieldID == fieldID {
			return record, true
		}
	}
	return AnswerRecord{}, false
}

// Upload is a file handed to the backend for a file_upload field.
type Upload struct {
	Name    string
	Type    string
	Size    int64
	Content io.Reader
}

// PaymentIntent is the handle returned when a payment is initiated.
type PaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"intentId"`
}
