package client

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/goliatone/go-formflow/pkg/model"
)

// ErrOffline is returned for operations that need a live backend.
var ErrOffline = errors.New("client: not available offline")

// OfflineOption configures an Offline backend.
type OfflineOption func(*Offline)

// WithPassword sets the password that opens a protected form.
func WithPassword(password string) OfflineOption {
	return func(o *Offline) {
		o.password = password
	}
}

// Offline serves a single local definition and writes each accepted payload
// to out as one JSON document per line.
type Offline struct {
	form     model.FormDefinition
	out      io.Writer
	password string

	mu          sync.Mutex
	submissions []model.SubmissionPayload
}

// NewOffline returns an Offline backend for form. A nil out discards
// payloads.
func NewOffline(form model.FormDefinition, out io.Writer, opts ...OfflineOption) *Offline {
	if out == nil {
		out = io.Discard
	}
	offline := &Offline{form: form, out: out}
	for _, opt := range opts {
		if opt != nil {
			opt(offline)
		}
	}
	return offline
}

// GetFormBySlug returns the form when slug matches its slug or id.
func (o *Offline) GetFormBySlug(_ context.Context, slug string) (model.FormDefinition, error) {
	if slug != o.form.Slug && slug != o.form.ID {
		return model.FormDefinition{}, fmt.Errorf("%w: form %q", ErrNotFound, slug)
	}
	return o.form, nil
}

func (o *Offline) VerifyFormPassword(_ context.Context, _ string, password string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(password), []byte(o.password)) == 1, nil
}

// GetPreviousSubmission reports the first submission made through this
// backend.
func (o *Offline) GetPreviousSubmission(_ context.Context, formID string) (*model.SubmissionPayload, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, payload := range o.submissions {
		if payload.FormID == formID {
			found := payload
			return &found, nil
		}
	}
	return nil, nil
}

// UploadFile consumes the content and records its metadata only.
func (o *Offline) UploadFile(_ context.Context, _ string, upload model.Upload) (model.FileValue, error) {
	size := upload.Size
	if upload.Content != nil {
		n, err := io.Copy(io.Discard, upload.Content)
		if err != nil {
			return model.FileValue{}, fmt.Errorf("client: read upload: %w", err)
		}
		size = n
	}
	return model.FileValue{
		URL:  "offline://uploads/" + upload.Name,
		Name: upload.Name,
		Size: size,
		Type: upload.Type,
	}, nil
}

func (o *Offline) CreatePaymentIntent(context.Context, string, float64, string) (model.PaymentIntent, error) {
	return model.PaymentIntent{}, ErrOffline
}

func (o *Offline) ConfirmPayment(context.Context, string) (string, error) {
	return "", ErrOffline
}

// SubmitForm writes payload to the output.
func (o *Offline) SubmitForm(_ context.Context, formID string, payload model.SubmissionPayload) error {
	if formID != o.form.ID {
		return fmt.Errorf("%w: form %q", ErrNotFound, formID)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := sonic.ConfigStd.NewEncoder(o.out).Encode(payload); err != nil {
		return fmt.Errorf("client: write submission: %w", err)
	}
	o.submissions = append(o.submissions, payload)
	return nil
}

// Submissions returns the payloads accepted so far.
func (o *Offline) Submissions() []model.SubmissionPayload {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.SubmissionPayload(nil), o.submissions...)
}
