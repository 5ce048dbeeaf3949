// Package tui runs a form session in the terminal, one question (or one page)
// at a time, on top of survey prompts.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/screens"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// DefaultVerificationTTL bounds verification codes typed at the prompt.
const DefaultVerificationTTL = 5 * time.Minute

// FileOpener turns a path typed by the respondent into an upload. The closer
// is released once the upload returns.
type FileOpener func(path string) (model.Upload, io.Closer, error)

// Verifier obtains a human-verification token for submission.
type Verifier func(ctx context.Context) (token string, expiresAt time.Time, err error)

// Runner drives a loaded session through terminal prompts until the form is
// submitted, was already answered, or fails.
type Runner struct {
	driver      PromptDriver
	screens     *screens.Renderer
	theme       Theme
	delay       time.Duration
	pageMode    bool
	open        FileOpener
	verify      Verifier
	backKeyword string
}

// New returns a Runner using the survey driver on the process terminal.
func New(opts ...Option) *Runner {
	r := &Runner{
		driver:      NewSurveyDriver(nil),
		screens:     screens.New(),
		theme:       DefaultTheme,
		delay:       session.AutoAdvanceDelay,
		open:        OpenFile,
		backKeyword: DefaultBackKeyword,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run prompts until sess reaches a terminal phase. It returns nil once the
// form was submitted or a previous submission was found, the load error when
// the session failed, and ErrAborted when the respondent interrupts.
func (r *Runner) Run(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return errors.New("tui: session is nil")
	}
	lastPage := -1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch sess.Phase() {
		case session.PhaseIdle:
			return ErrNotLoaded
		case session.PhasePasswordGate:
			err = r.passwordGate(ctx, sess)
		case session.PhaseWelcome:
			err = r.welcome(ctx, sess)
		case session.PhaseQuestion:
			r.pageHeader(ctx, sess, &lastPage)
			if r.pageMode {
				err = r.page(ctx, sess)
			} else {
				err = r.question(ctx, sess)
			}
		case session.PhaseSubmitting:
			lastPage = -1
			err = r.review(ctx, sess)
		case session.PhaseSubmitted:
			return r.thankYou(ctx, sess)
		case session.PhasePreviousSubmission:
			return r.info(ctx, "You have already responded to this form.")
		default:
			if loadErr := sess.Err(); loadErr != nil {
				return loadErr
			}
			return fmt.Errorf("tui: session ended in phase %s", sess.Phase())
		}
		if err != nil {
			return err
		}
	}
}

func (r *Runner) passwordGate(ctx context.Context, sess *session.Session) error {
	password, err := r.driver.Password(ctx, InputConfig{Message: "This form is protected. Password"})
	if err != nil {
		return err
	}
	err = sess.VerifyPassword(ctx, password)
	var rejected *session.PasswordError
	if !errors.As(err, &rejected) {
		return err
	}
	if rejected.Err != nil {
		return r.fail(ctx, fmt.Sprintf("Could not check the password: %v", rejected.Err))
	}
	return r.fail(ctx, "Incorrect password, try again.")
}

func (r *Runner) welcome(ctx context.Context, sess *session.Session) error {
	form := sess.Form()
	rendered, _ := r.screens.Render(form.Welcome, form, sess.Answers())
	if err := r.showScreen(ctx, rendered); err != nil {
		return err
	}
	button := rendered.ButtonText
	if button == "" {
		button = "Start"
	}
	start, err := r.driver.Confirm(ctx, ConfirmConfig{Message: button + "?", Default: true})
	if err != nil {
		return err
	}
	if !start {
		return ErrAborted
	}
	return sess.DismissWelcome()
}

func (r *Runner) pageHeader(ctx context.Context, sess *session.Session, last *int) {
	page, index, ok := sess.CurrentPage()
	if !ok || index == *last {
		return
	}
	*last = index
	if title := page.Title(); title != "" {
		_ = r.info(ctx, "\n== "+title+" ==")
	}
}

func (r *Runner) question(ctx context.Context, sess *session.Session) error {
	field, ok := sess.CurrentQuestion()
	if !ok {
		return sess.Next()
	}
	progress := sess.Progress()
	next, err := r.ask(ctx, sess, field, progress)
	if err != nil {
		return err
	}

	switch next {
	case stepRetry:
		return nil
	case stepBack:
		if err := sess.Previous(); errors.Is(err, session.ErrAtStart) {
			return r.fail(ctx, "This is the first question.")
		} else if err != nil {
			return err
		}
		return nil
	case stepAuto:
		if err := r.pause(ctx); err != nil {
			return err
		}
	}

	err = sess.Next()
	var invalid *validation.FieldError
	if errors.As(err, &invalid) {
		return r.fail(ctx, invalid.Message)
	}
	return err
}

func (r *Runner) page(ctx context.Context, sess *session.Session) error {
	_, start, ok := sess.CurrentPage()
	if !ok {
		return sess.NextPage()
	}

	asked := make(map[string]bool)
	for {
		page, current, ok := sess.CurrentPage()
		if !ok || current != start {
			break
		}
		field, found := nextUnasked(page.Fields, asked)
		if !found {
			break
		}
		asked[field.ID] = true

		next, err := r.ask(ctx, sess, field, sess.Progress())
		if err != nil {
			return err
		}
		switch next {
		case stepBack:
			if err := sess.PreviousPage(); errors.Is(err, session.ErrAtStart) {
				return r.fail(ctx, "This is the first page.")
			} else if err != nil {
				return err
			}
			return nil
		case stepRetry:
			delete(asked, field.ID)
		}
	}

	err := sess.NextPage()
	var invalid validation.ValidationErrors
	if errors.As(err, &invalid) {
		for _, fieldErr := range invalid {
			label := fieldErr.FieldID
			if field, ok := sess.Form().Field(fieldErr.FieldID); ok {
				label = field.DisplayLabel()
			}
			if err := r.fail(ctx, label+": "+fieldErr.Message); err != nil {
				return err
			}
		}
		return nil
	}
	return err
}

func nextUnasked(fields []model.Field, asked map[string]bool) (model.Field, bool) {
	for _, field := range fields {
		if !asked[field.ID] {
			return field, true
		}
	}
	return model.Field{}, false
}

func (r *Runner) review(ctx context.Context, sess *session.Session) error {
	answers := sess.Answers()
	if err := r.info(ctx, "\nReview your answers:"); err != nil {
		return err
	}
	for _, field := range sess.Questions() {
		text := "-"
		if value, ok := answers[field.ID]; ok && !model.IsEmpty(value) {
			text = model.StringOf(value)
		}
		if err := r.info(ctx, fmt.Sprintf("  %s: %s", field.DisplayLabel(), text)); err != nil {
			return err
		}
	}

	submit, err := r.driver.Confirm(ctx, ConfirmConfig{Message: "Submit your answers?", Default: true})
	if err != nil {
		return err
	}
	if !submit {
		return r.back(sess)
	}

	form := sess.Form()
	if err := r.identify(ctx, sess, form.Settings.Identity); err != nil {
		return err
	}
	if form.Settings.RequireVerification && !sess.VerificationValid() {
		if err := r.obtainVerification(ctx, sess); err != nil {
			return err
		}
	}

	err = sess.Submit(ctx)
	var (
		failed  *session.SubmissionError
		invalid validation.ValidationErrors
		field   *validation.FieldError
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrIdentityRequired):
		return r.fail(ctx, "Please tell us your name or email.")
	case errors.Is(err, session.ErrVerificationRequired):
		return r.fail(ctx, "Verification expired, please verify again.")
	case errors.As(err, &failed):
		return r.fail(ctx, fmt.Sprintf("Submission failed: %v. Your answers are kept, try again.", failed.Err))
	case errors.As(err, &invalid):
		for _, fieldErr := range invalid {
			_ = r.fail(ctx, fieldErr.FieldID+": "+fieldErr.Message)
		}
		return r.back(sess)
	case errors.As(err, &field):
		_ = r.fail(ctx, field.Message)
		return r.back(sess)
	default:
		return err
	}
}

// back leaves the review for the last question. An empty form has nowhere to
// go back to, so the review is simply shown again.
func (r *Runner) back(sess *session.Session) error {
	if err := sess.Previous(); err != nil && !errors.Is(err, session.ErrAtStart) {
		return err
	}
	return nil
}

func (r *Runner) identify(ctx context.Context, sess *session.Session, mode model.IdentityMode) error {
	if mode == "" || mode == model.IdentityNone || !sess.Identity().Empty() {
		return nil
	}
	suffix := ""
	if mode == model.IdentityOptional {
		suffix = " (optional)"
	}
	name, err := r.driver.Input(ctx, InputConfig{Message: "Your name" + suffix})
	if err != nil {
		return err
	}
	email, err := r.driver.Input(ctx, InputConfig{Message: "Your email" + suffix})
	if err != nil {
		return err
	}
	sess.SetIdentity(model.Identity{Name: name, Email: email})
	return nil
}

func (r *Runner) obtainVerification(ctx context.Context, sess *session.Session) error {
	if r.verify != nil {
		token, expiresAt, err := r.verify(ctx)
		if err != nil {
			return fmt.Errorf("tui: verification: %w", err)
		}
		sess.SetVerificationToken(token, expiresAt)
		return nil
	}
	code, err := r.driver.Input(ctx, InputConfig{
		Message: "Verification code",
		Help:    "Enter the code you received to confirm you are human.",
	})
	if err != nil {
		return err
	}
	sess.SetVerificationToken(code, time.Now().Add(DefaultVerificationTTL))
	return nil
}

func (r *Runner) thankYou(ctx context.Context, sess *session.Session) error {
	rendered, _ := r.screens.ThankYou(sess.Form(), sess.Answers())
	return r.showScreen(ctx, rendered)
}

func (r *Runner) showScreen(ctx context.Context, screen screens.Rendered) error {
	for _, text := range []string{screen.Title, screen.Body} {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := r.info(ctx, text); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) pause(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) info(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.InfoPrefix+msg)
}

func (r *Runner) fail(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.ErrorPrefix+msg)
}

// OpenFile is the default FileOpener. The content type is guessed from the
// file extension.
func OpenFile(path string) (model.Upload, io.Closer, error) {
	path = strings.TrimSpace(path)
	file, err := os.Open(path)
	if err != nil {
		return model.Upload{}, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return model.Upload{}, nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return model.Upload{}, nil, fmt.Errorf("%s is a directory", path)
	}
	return model.Upload{
		Name:    filepath.Base(path),
		Type:    mime.TypeByExtension(filepath.Ext(path)),
		Size:    info.Size(),
		Content: file,
	}, file, nil
}
