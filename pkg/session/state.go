package session

import (
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/pages"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// Progress summarises the respondent's position.
type Progress struct {
	Index     int
	Total     int
	Page      int
	PageCount int
}

// Percent returns the share of questions already behind the respondent.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Index * 100 / p.Total
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPhase()
}

// LoadState returns the state of the load guard.
func (s *Session) LoadState() LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadState(s.guard.Current())
}

// Err returns the load failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Form returns the loaded definition.
func (s *Session) Form() model.FormDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Answers returns a copy of the current answers.
func (s *Session) Answers() model.Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}

// Answer returns the current answer for fieldID.
func (s *Session) Answer(fieldID string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.answers[fieldID]
	return value, ok
}

// Index returns the absolute index of the current question.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// CurrentQuestion returns the question at the current index.
func (s *Session) CurrentQuestion() (model.Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentField()
}

// Questions returns the currently visible questions in order.
func (s *Session) Questions() []model.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pages.Questions(s.pages)
}

// Pages returns the current page partition.
func (s *Session) Pages() []pages.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pages.Page(nil), s.pages...)
}

// CurrentPage returns the page holding the current question and its
// position.
func (s *Session) CurrentPage() (pages.Page, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, _, ok := pages.Locate(s.pages, s.index)
	if !ok {
		return pages.Page{}, 0, false
	}
	return s.pages[page], page, true
}

// Progress reports the position of the respondent.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, _, _ := pages.Locate(s.pages, s.index)
	progress := Progress{
		Index:     s.index,
		Total:     pages.Count(s.pages),
		Page:      page,
		PageCount: len(s.pages),
	}
	if phase := s.currentPhase(); phase == PhaseSubmitting || phase == PhaseSubmitted {
		progress.Index = progress.Total
	}
	return progress
}

// FieldError returns the inline validation error for fieldID.
func (s *Session) FieldError(fieldID string) *validation.FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldErrors[fieldID]
}

// UploadError returns the last upload failure for fieldID.
func (s *Session) UploadError(fieldID string) *UploadError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadErrors[fieldID]
}

// PaymentError returns the last payment failure for fieldID.
func (s *Session) PaymentError(fieldID string) *PaymentError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentErrors[fieldID]
}

// PreviousSubmission returns the recorded submission that put the session
// in PhasePreviousSubmission.
func (s *Session) PreviousSubmission() *model.SubmissionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous
}

// Payload returns the payload accepted by the backend once submitted.
func (s *Session) Payload() *model.SubmissionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// Identity returns the identity recorded with SetIdentity.
func (s *Session) Identity() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

// StartedAt returns when the form was loaded.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}
