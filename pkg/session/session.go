// Package session drives one respondent through a form: load, password gate,
// welcome screen, question-by-question or page-by-page navigation, side
// effects such as uploads and payments, and the final submit.
//
// A Session is safe for concurrent use. Mutations are serialised under one
// mutex; backend calls run outside it and their results are applied only
// while the session is still active. Subscribers are notified after the lock
// is released.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/draft"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/pages"
	"github.com/goliatone/go-formflow/pkg/prefill"
	"github.com/goliatone/go-formflow/pkg/submission"
	"github.com/goliatone/go-formflow/pkg/validation"
	"github.com/goliatone/go-formflow/pkg/visibility"
)

// DefaultCurrency is used for payment fields that do not configure one.
const DefaultCurrency = "usd"

// Option configures a Session.
type Option func(*Session)

// WithDrafts sets the draft store. Sessions without one keep drafts in
// memory.
func WithDrafts(store *draft.Store) Option {
	return func(s *Session) {
		if store != nil {
			s.drafts = store
		}
	}
}

// WithLogger injects the logger used for non-fatal failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Session) {
		s.logger = logging.Or(logger)
	}
}

// WithEvaluator overrides the visibility evaluator.
func WithEvaluator(eval visibility.Evaluator) Option {
	return func(s *Session) {
		s.eval = visibility.Or(eval)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is the navigation state machine for one respondent and one form.
type Session struct {
	backend Backend
	drafts  *draft.Store
	eval    visibility.Evaluator
	logger  logrus.FieldLogger
	now     func() time.Time

	mu      sync.Mutex
	phase   *fsm.FSM
	guard   *fsm.FSM
	slug    string
	loadErr error
	closed  bool
	busy    bool

	form      model.FormDefinition
	answers   model.Answers
	pages     []pages.Page
	index     int
	startedAt time.Time

	fieldErrors   map[string]*validation.FieldError
	uploadErrors  map[string]*UploadError
	paymentErrors map[string]*PaymentError

	passwordVerified bool
	welcomeDismissed bool
	identity         *model.Identity
	token            string
	tokenExpiry      time.Time

	previous *model.SubmissionPayload
	payload  *model.SubmissionPayload

	subscribers []subscriber
	nextSub     int
	pending     []Event
}

type subscriber struct {
	id int
	fn func(Event)
}

// New returns an idle session backed by backend.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:       backend,
		eval:          visibility.Default(),
		logger:        logging.Discard(),
		now:           time.Now,
		answers:       model.Answers{},
		guard:         newLoadGuard(),
		fieldErrors:   map[string]*validation.FieldError{},
		uploadErrors:  map[string]*UploadError{},
		paymentErrors: map[string]*PaymentError{},
	}
	s.phase = newPhaseMachine(s.onPhase)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.drafts == nil {
		s.drafts = draft.NewStore(nil, draft.WithLogger(s.logger))
	}
	return s
}

// Load fetches the form published under slug and seeds the session. Pre-fill
// values take precedence over, and suppress, draft restoration.
//
// Load runs at most once per session: repeated or concurrent calls for the
// same slug return without fetching again, and calls for another slug fail
// with ErrSessionBound.
func (s *Session) Load(ctx context.Context, slug string, values url.Values) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return &SchemaLoadError{Slug: slug, Err: errors.New("slug is required")}
	}

	s.mu.Lock()
	if s.closed {
		s.unlock()
		return ErrClosed
	}
	if LoadState(s.guard.Current()) != LoadIdle {
		bound, loadErr := s.slug, s.loadErr
		s.unlock()
		if bound != slug {
			return ErrSessionBound
		}
		return loadErr
	}
	s.slug = slug
	s.advanceGuard(evLoad)
	s.unlock()

	if s.backend == nil {
		return s.failLoad(slug, errors.New("no backend configured"))
	}
	form, err := s.backend.GetFormBySlug(ctx, slug)
	if err != nil {
		return s.failLoad(slug, err)
	}
	log := s.logger.WithFields(logrus.Fields{"slug": slug, "form_id": form.ID})

	previous, err := s.backend.GetPreviousSubmission(ctx, form.ID)
	if err != nil {
		log.WithError(err).Warn("previous submission lookup failed")
		previous = nil
	}

	answers := prefill.FromValues(form, values)
	index := 0
	switch {
	case previous != nil:
	case len(answers) > 0:
		log.WithField("answers", len(answers)).Debug("seeded from pre-fill values")
	default:
		if record, ok := s.drafts.Restore(ctx, form.ID); ok {
			answers = model.NormalizeAnswers(form, record.Answers)
			index = record.CurrentQuestionIndex
			log.WithField("index", index).Debug("draft restored")
		}
	}

	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return ErrClosed
	}
	s.form = form
	s.answers = answers
	s.startedAt = s.now()
	s.repaginate()
	s.index, _ = pages.Reconcile(s.pages, index)
	s.advanceGuard(evLoaded)

	if previous != nil {
		s.previous = previous
		s.fire(evShowPrevious)
		return nil
	}
	s.enterForm()
	return nil
}

func (s *Session) failLoad(slug string, cause error) error {
	loadErr := &SchemaLoadError{Slug: slug, Err: cause}

	s.mu.Lock()
	defer s.unlock()
	s.loadErr = loadErr
	s.advanceGuard(evFailed)
	s.fire(evFail)
	s.logger.WithField("slug", slug).WithError(cause).Error("form load failed")
	return loadErr
}

// enterForm moves from the load, password or welcome phase to the next
// applicable one.
func (s *Session) enterForm() {
	switch {
	case s.form.Settings.PasswordProtected && !s.passwordVerified:
		s.fire(evRequirePassword)
	case !s.form.Welcome.Empty() && !s.welcomeDismissed:
		s.fire(evWelcome)
	default:
		s.fire(evStart)
		if pages.Count(s.pages) == 0 {
			s.fire(evReview)
		}
	}
}

// VerifyPassword checks password with the backend. A rejection keeps the
// session at the password gate.
func (s *Session) VerifyPassword(ctx context.Context, password string) error {
	s.mu.Lock()
	if err := s.expect(PhasePasswordGate); err != nil {
		s.unlock()
		return err
	}
	slug := s.slug
	s.unlock()

	ok, verifyErr := s.backend.VerifyFormPassword(ctx, slug, password)

	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhasePasswordGate); err != nil {
		return err
	}
	if verifyErr != nil {
		s.logger.WithField("slug", slug).WithError(verifyErr).Warn("password verification failed")
		return &PasswordError{Err: verifyErr}
	}
	if !ok {
		return &PasswordError{}
	}
	s.passwordVerified = true
	s.enterForm()
	return nil
}

// DismissWelcome leaves the welcome screen.
func (s *Session) DismissWelcome() error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhaseWelcome); err != nil {
		return err
	}
	s.welcomeDismissed = true
	s.enterForm()
	return nil
}

// Outcome describes the effect of SetAnswer.
type Outcome struct {
	FieldID string
	// Error is the inline validation error for the new value, if any.
	Error *validation.FieldError
	// AutoAdvance is set when the presentation layer may call Next on its
	// own after AutoAdvanceDelay.
	AutoAdvance bool
}

// SetAnswer stores value for fieldID, validates it, recomputes visibility and
// saves a draft.
func (s *Session) SetAnswer(fieldID string, value any) (Outcome, error) {
	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhaseQuestion); err != nil {
		return Outcome{}, err
	}
	field, err := s.answerable(fieldID)
	if err != nil {
		return Outcome{}, err
	}

	value = model.NormalizeValue(field, value)
	s.answers[field.ID] = value
	delete(s.uploadErrors, field.ID)
	delete(s.paymentErrors, field.ID)

	outcome := Outcome{FieldID: field.ID, Error: s.check(field, value)}
	outcome.AutoAdvance = outcome.Error == nil &&
		field.Type.Traits().AutoAdvance &&
		!model.IsEmpty(value)

	s.afterMutation()
	s.emit(Event{Kind: EventAnswer, FieldID: field.ID, AutoAdvance: outcome.AutoAdvance})
	return outcome, nil
}

// ClearAnswer removes the answer for fieldID.
func (s *Session) ClearAnswer(fieldID string) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhaseQuestion); err != nil {
		return err
	}
	field, err := s.answerable(fieldID)
	if err != nil {
		return err
	}
	delete(s.answers, field.ID)
	delete(s.fieldErrors, field.ID)
	delete(s.uploadErrors, field.ID)
	delete(s.paymentErrors, field.ID)
	s.afterMutation()
	s.emit(Event{Kind: EventAnswer, FieldID: field.ID})
	return nil
}

// Next validates the current question and advances. From the last question
// it moves to the submitting phase. A validation failure is returned as a
// *validation.FieldError and the index does not move.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhaseQuestion); err != nil {
		return err
	}
	field, ok := s.currentField()
	if ok {
		if fieldErr := s.check(field, s.answers[field.ID]); fieldErr != nil {
			return fieldErr
		}
	}
	if !ok || s.index >= pages.Count(s.pages)-1 {
		s.fire(evReview)
	} else {
		s.setIndex(s.index + 1)
	}
	s.saveDraft()
	return nil
}

// Previous moves back one question without validating. From the submitting
// phase it returns to the last question.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhaseQuestion, PhaseSubmitting); err != nil {
		return err
	}
	total := pages.Count(s.pages)
	if s.currentPhase() == PhaseSubmitting {
		if total == 0 {
			return ErrAtStart
		}
		s.setIndex(total - 1)
		s.fire(evResume)
		s.saveDraft()
		return nil
	}
	if s.index <= 0 {
		return ErrAtStart
	}
	s.setIndex(s.index - 1)
	s.saveDraft()
	return nil
}

// NextPage validates every question on the current page and moves to the
// first question of the next page, or to the submitting phase from the last
// page. Failures come back as validation.ValidationErrors.
func (s *Session) NextPage() error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhaseQuestion); err != nil {
		return err
	}
	page, _, ok := pages.Locate(s.pages, s.index)
	if !ok {
		s.fire(evReview)
		s.saveDraft()
		return nil
	}

	var errs validation.ValidationErrors
	for _, field := range s.pages[page].Fields {
		if fieldErr := s.check(field, s.answers[field.ID]); fieldErr != nil {
			errs = append(errs, fieldErr)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if page == len(s.pages)-1 {
		s.setIndex(pages.Count(s.pages) - 1)
		s.fire(evReview)
	} else {
		s.setIndex(pages.FirstIndex(s.pages, page+1))
	}
	s.saveDraft()
	return nil
}

// PreviousPage moves to the first question of the current page, or of the
// page before when already there. From the submitting phase it returns to the
// start of the last page.
func (s *Session) PreviousPage() error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.expect(PhaseQuestion, PhaseSubmitting); err != nil {
		return err
	}
	if s.currentPhase() == PhaseSubmitting {
		if pages.Count(s.pages) == 0 {
			return ErrAtStart
		}
		s.setIndex(pages.FirstIndex(s.pages, len(s.pages)-1))
		s.fire(evResume)
		s.saveDraft()
		return nil
	}

	page, offset, ok := pages.Locate(s.pages, s.index)
	switch {
	case !ok || (page == 0 && offset == 0):
		return ErrAtStart
	case offset > 0:
		s.setIndex(pages.FirstIndex(s.pages, page))
	default:
		s.setIndex(pages.FirstIndex(s.pages, page-1))
	}
	s.saveDraft()
	return nil
}

// Upload sends upload to the backend and stores the returned file metadata
// as the answer for fieldID. Failures are recorded as field-local upload
// errors and never block submission of the other fields.
func (s *Session) Upload(ctx context.Context, fieldID string, upload model.Upload) error {
	s.mu.Lock()
	if err := s.expect(PhaseQuestion, PhaseSubmitting); err != nil {
		s.unlock()
		return err
	}
	field, err := s.answerable(fieldID)
	if err == nil && field.Type != model.FieldTypeFileUpload {
		err = fmt.Errorf("session: field %s does not accept uploads", field.ID)
	}
	formID := s.form.ID
	s.unlock()
	if err != nil {
		return err
	}

	file, uploadErr := s.backend.UploadFile(ctx, formID, upload)
	if uploadErr == nil {
		uploadErr = ctx.Err()
	}

	s.mu.Lock()
	defer s.unlock()
	if err := s.active(); err != nil {
		return err
	}
	if uploadErr != nil {
		failure := &UploadError{FieldID: field.ID, Err: uploadErr}
		s.uploadErrors[field.ID] = failure
		s.logger.WithFields(logrus.Fields{"form_id": formID, "field_id": field.ID}).
			WithError(uploadErr).Warn("upload failed")
		s.emit(Event{Kind: EventAnswer, FieldID: field.ID})
		return failure
	}

	delete(s.uploadErrors, field.ID)
	s.answers[field.ID] = file
	s.check(field, file)
	s.afterMutation()
	s.emit(Event{Kind: EventAnswer, FieldID: field.ID})
	return nil
}

// AuthorizePayment creates and confirms a payment intent for the amount and
// currency configured on fieldID. Only a succeeded payment is stored as an
// answer; anything else is a field-local PaymentError.
func (s *Session) AuthorizePayment(ctx context.Context, fieldID string) error {
	s.mu.Lock()
	if err := s.expect(PhaseQuestion, PhaseSubmitting); err != nil {
		s.unlock()
		return err
	}
	field, err := s.answerable(fieldID)
	if err == nil && field.Type != model.FieldTypePayment {
		err = fmt.Errorf("session: field %s is not a payment field", field.ID)
	}
	if err != nil {
		s.unlock()
		return err
	}
	if field.Rules.Amount == nil || *field.Rules.Amount <= 0 {
		failure := &PaymentError{FieldID: field.ID, Err: errors.New("no amount configured")}
		s.paymentErrors[field.ID] = failure
		s.unlock()
		return failure
	}
	amount := *field.Rules.Amount
	currency := strings.ToLower(strings.TrimSpace(field.Rules.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	formID := s.form.ID
	s.unlock()

	var status string
	intent, payErr := s.backend.CreatePaymentIntent(ctx, formID, amount, currency)
	if payErr == nil {
		status, payErr = s.backend.ConfirmPayment(ctx, intent.IntentID)
	}
	if payErr == nil {
		payErr = ctx.Err()
	}

	s.mu.Lock()
	defer s.unlock()
	if err := s.active(); err != nil {
		return err
	}
	log := s.logger.WithFields(logrus.Fields{"form_id": formID, "field_id": field.ID})
	if payErr != nil || status != model.PaymentSucceeded {
		failure := &PaymentError{FieldID: field.ID, Status: status, Err: payErr}
		s.paymentErrors[field.ID] = failure
		log.WithError(failure).Warn("payment not authorised")
		s.emit(Event{Kind: EventAnswer, FieldID: field.ID})
		return failure
	}

	value := model.PaymentValue{
		IntentID: intent.IntentID,
		Status:   status,
		Amount:   amount,
		Currency: currency,
	}
	delete(s.paymentErrors, field.ID)
	s.answers[field.ID] = value
	s.check(field, value)
	s.afterMutation()
	s.emit(Event{Kind: EventAnswer, FieldID: field.ID})
	return nil
}

// SetVerificationToken stores a human-verification token. A zero expiresAt
// never expires.
func (s *Session) SetVerificationToken(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.unlock()
	s.token = strings.TrimSpace(token)
	s.tokenExpiry = expiresAt
}

// InvalidateVerification drops the current verification token.
func (s *Session) InvalidateVerification() {
	s.mu.Lock()
	defer s.unlock()
	s.invalidateVerification()
}

func (s *Session) invalidateVerification() {
	s.token = ""
	s.tokenExpiry = time.Time{}
}

// VerificationValid reports whether a non-expired token is held.
func (s *Session) VerificationValid() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.verificationValid()
}

func (s *Session) verificationValid() bool {
	if s.token == "" {
		return false
	}
	return s.tokenExpiry.IsZero() || s.now().Before(s.tokenExpiry)
}

// SetIdentity records who is answering. It is only sent on forms that
// capture identity.
func (s *Session) SetIdentity(identity model.Identity) {
	s.mu.Lock()
	defer s.unlock()
	identity.Name = strings.TrimSpace(identity.Name)
	identity.Email = strings.TrimSpace(identity.Email)
	if identity.Empty() {
		s.identity = nil
		return
	}
	s.identity = &identity
}

// Submit validates the visible answers, assembles the payload and sends it.
// It is allowed from the last question or from the submitting phase. On
// failure the session returns to the last question with every answer intact
// and the verification token dropped so a fresh one is obtained before the
// retry.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if err := s.expect(PhaseQuestion, PhaseSubmitting); err != nil {
		s.unlock()
		return err
	}
	if err := s.readyToSubmit(); err != nil {
		s.unlock()
		return err
	}
	if s.currentPhase() == PhaseQuestion {
		s.fire(evReview)
	}

	var opts []submission.Option
	if s.form.Settings.Identity != model.IdentityNone {
		opts = append(opts, submission.WithIdentity(s.identity))
	}
	payload := submission.Assemble(s.form, s.answers, s.startedAt, s.now(), opts...)
	formID := s.form.ID
	s.busy = true
	s.unlock()

	submitErr := s.backend.SubmitForm(ctx, formID, payload)

	s.mu.Lock()
	defer s.unlock()
	s.busy = false
	log := s.logger.WithField("form_id", formID)
	if submitErr != nil {
		failure := &SubmissionError{FormID: formID, Err: submitErr}
		if s.closed {
			return failure
		}
		s.invalidateVerification()
		if total := pages.Count(s.pages); total > 0 {
			s.setIndex(total - 1)
		}
		s.fire(evResume)
		log.WithError(submitErr).Warn("submission failed")
		return failure
	}
	if s.closed {
		return nil
	}

	s.payload = &payload
	s.fire(evComplete)
	s.drafts.Clear(context.WithoutCancel(ctx), formID)
	log.WithField("answers", len(payload.Answers)).Info("form submitted")
	return nil
}

func (s *Session) readyToSubmit() error {
	total := pages.Count(s.pages)
	if s.currentPhase() == PhaseQuestion {
		if total > 0 && s.index != total-1 {
			return ErrInvalidPhase
		}
		if field, ok := s.currentField(); ok {
			if fieldErr := s.check(field, s.answers[field.ID]); fieldErr != nil {
				return fieldErr
			}
		}
	}

	var errs validation.ValidationErrors
	for _, field := range pages.Questions(s.pages) {
		if fieldErr := s.check(field, s.answers[field.ID]); fieldErr != nil {
			errs = append(errs, fieldErr)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if s.form.Settings.Identity == model.IdentityRequired && s.identity.Empty() {
		return ErrIdentityRequired
	}
	if s.form.Settings.RequireVerification && !s.verificationValid() {
		s.invalidateVerification()
		return ErrVerificationRequired
	}
	return nil
}

// Close detaches the session. Pending backend results are discarded and
// subscribers are dropped. Queued draft writes are flushed so the last
// draft survives; the draft store itself stays open for its owner.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.subscribers = nil
	s.pending = nil
	drafts := s.drafts
	s.mu.Unlock()

	drafts.Flush()
	return nil
}

// expect checks that the session is loaded, open and in one of phases.
func (s *Session) expect(phases ...Phase) error {
	if s.closed {
		return ErrClosed
	}
	if LoadState(s.guard.Current()) != LoadLoaded {
		return ErrNotLoaded
	}
	if s.busy {
		return ErrInvalidPhase
	}
	current := s.currentPhase()
	for _, phase := range phases {
		if current == phase {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidPhase, current)
}

// active checks that a backend result may still be applied.
func (s *Session) active() error {
	if s.closed {
		return ErrClosed
	}
	if s.currentPhase().Terminal() {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, s.currentPhase())
	}
	return nil
}

func (s *Session) answerable(fieldID string) (model.Field, error) {
	field, ok := s.form.Field(fieldID)
	if !ok {
		return model.Field{}, fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	if !field.Type.Traits().Answerable {
		return model.Field{}, fmt.Errorf("session: field %s does not take answers", fieldID)
	}
	return field, nil
}

// check validates value and records or clears the inline error.
func (s *Session) check(field model.Field, value any) *validation.FieldError {
	fieldErr := validation.Validate(field, value)
	if fieldErr != nil {
		s.fieldErrors[field.ID] = fieldErr
	} else {
		delete(s.fieldErrors, field.ID)
	}
	return fieldErr
}

func (s *Session) repaginate() {
	s.pages = pages.Partition(s.form.Fields, s.answers, s.eval)
}

// afterMutation recomputes pages, keeps the absolute question index (back
// to the start when it fell out of range) and saves a draft.
func (s *Session) afterMutation() {
	s.repaginate()
	index, _ := pages.Reconcile(s.pages, s.index)
	s.setIndex(index)
	s.saveDraft()
}

func (s *Session) saveDraft() {
	s.drafts.Save(context.Background(), s.form.ID, s.answers, s.index)
}

func (s *Session) currentField() (model.Field, bool) {
	questions := pages.Questions(s.pages)
	if s.index < 0 || s.index >= len(questions) {
		return model.Field{}, false
	}
	return questions[s.index], true
}

func (s *Session) setIndex(index int) {
	if index == s.index {
		return
	}
	s.index = index
	page, _, _ := pages.Locate(s.pages, index)
	s.emit(Event{Kind: EventPosition, Index: index, Page: page})
}

func (s *Session) currentPhase() Phase {
	return Phase(s.phase.Current())
}

func (s *Session) fire(event string) {
	if err := s.phase.Event(context.Background(), event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"phase": s.currentPhase(),
			"event": event,
		}).WithError(err).Error("phase transition rejected")
	}
}

func (s *Session) advanceGuard(event string) {
	if err := s.guard.Event(context.Background(), event); err != nil {
		s.logger.WithField("event", event).WithError(err).Error("load guard transition rejected")
	}
}
