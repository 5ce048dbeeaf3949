package session

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Backend is the set of remote collaborators a session depends on.
type Backend interface {
	GetFormBySlug(ctx context.Context, slug string) (model.FormDefinition, error)
	VerifyFormPassword(ctx context.Context, slug, password string) (bool, error)
	// GetPreviousSubmission returns nil without error when the respondent has
	// not submitted the form before.
	GetPreviousSubmission(ctx context.Context, formID string) (*model.SubmissionPayload, error)
	UploadFile(ctx context.Context, formID string, upload model.Upload) (model.FileValue, error)
	CreatePaymentIntent(ctx context.Context, formID string, amount float64, currency string) (model.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, intentID string) (string, error)
	SubmitForm(ctx context.Context, formID string, payload model.SubmissionPayload) error
}
