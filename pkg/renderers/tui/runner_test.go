package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/client"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/session"
)

type stubDriver struct {
	inputs    []string
	passwords []string
	confirm   []bool
	selectIdx []int
	multiIdx  [][]int
	textAreas []string

	inputPos   int
	passPos    int
	confirmPos int
	selectPos  int
	multiPos   int
	textPos    int

	selects []SelectConfig
	infos   []string
	err     error
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Password(_ context.Context, _ InputConfig) (string, error) {
	if s.passPos >= len(s.passwords) {
		return "", errors.New("no password scripted")
	}
	val := s.passwords[s.passPos]
	s.passPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.selects = append(s.selects, cfg)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, _ SelectConfig) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infos = append(s.infos, msg)
	return nil
}

func (s *stubDriver) said(text string) bool {
	for _, msg := range s.infos {
		if strings.Contains(msg, text) {
			return true
		}
	}
	return false
}

func loadSession(t *testing.T, backend session.Backend, slug string) *session.Session {
	t.Helper()
	sess := session.New(backend)
	if err := sess.Load(context.Background(), slug, nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	return sess
}

func answerTexts(payload model.SubmissionPayload) map[string]string {
	out := make(map[string]string, len(payload.Answers))
	for _, record := range payload.Answers {
		out[record.FieldID] = record.AnswerText
	}
	return out
}

func submitted(t *testing.T, offline *client.Offline) model.SubmissionPayload {
	t.Helper()
	subs := offline.Submissions()
	if len(subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs))
	}
	return subs[0]
}

func contactForm() model.FormDefinition {
	return model.FormDefinition{
		ID:   "f-1",
		Slug: "contact",
		Fields: []model.Field{
			{ID: "name", Type: model.FieldTypeText, Label: "Name", Required: true},
			{ID: "topic", Type: model.FieldTypeMultipleChoice, Label: "Topic", Options: []model.Option{
				{Value: "sales", Label: "Sales"},
				{Value: "support", Label: "Support"},
			}},
			{ID: "ticket", Type: model.FieldTypeNumber, Label: "Ticket", Logic: &model.ConditionalLogic{
				Enabled: true, TriggerFieldID: "topic", Condition: model.ConditionEquals, Value: "support",
			}},
			{ID: "ok", Type: model.FieldTypeYesNo, Label: "Happy?"},
		},
		Welcome:  &model.Screen{Title: "Hello", Body: "Tell us about you"},
		ThankYou: &model.Screen{Title: "Thanks {{ answers.name }}"},
	}
}

func TestRunner_QuestionFlow(t *testing.T) {
	offline := client.NewOffline(contactForm(), nil)
	sess := loadSession(t, offline, "contact")
	driver := &stubDriver{
		inputs:    []string{"", "Ada", "7"},
		selectIdx: []int{1},
		confirm:   []bool{true, true, true},
	}

	r := New(WithPromptDriver(driver), WithAutoAdvanceDelay(0))
	if err := r.Run(context.Background(), sess); err != nil {
		t.Fatalf("run: %v", err)
	}

	if sess.Phase() != session.PhaseSubmitted {
		t.Fatalf("expected submitted, got %s", sess.Phase())
	}
	want := map[string]string{"name": "Ada", "topic": "support", "ticket": "7", "ok": "true"}
	if diff := cmp.Diff(want, answerTexts(submitted(t, offline))); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
	for _, text := range []string{"Hello", "! This field is required", "Thanks Ada"} {
		if !driver.said(text) {
			t.Fatalf("expected message %q in %v", text, driver.infos)
		}
	}
	if got := driver.selects[0].Options; !cmp.Equal(got, []string{"Sales", "Support", backOption}) {
		t.Fatalf("unexpected select options %v", got)
	}
}

func TestRunner_BackNavigationAndReview(t *testing.T) {
	form := model.FormDefinition{ID: "f-2", Slug: "two", Fields: []model.Field{
		{ID: "a", Type: model.FieldTypeText},
		{ID: "b", Type: model.FieldTypeText},
	}}
	offline := client.NewOffline(form, nil)
	sess := loadSession(t, offline, "two")
	driver := &stubDriver{
		inputs:  []string{"x", DefaultBackKeyword, "y", "z", "z2"},
		confirm: []bool{false, true},
	}

	if err := New(WithPromptDriver(driver)).Run(context.Background(), sess); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := map[string]string{"a": "y", "b": "z2"}
	if diff := cmp.Diff(want, answerTexts(submitted(t, offline))); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestRunner_PageMode(t *testing.T) {
	scale := 3
	form := model.FormDefinition{ID: "f-3", Slug: "paged", Fields: []model.Field{
		{ID: "s1", Type: model.FieldTypeSection, Label: "First"},
		{ID: "f1", Type: model.FieldTypeText, Label: "One", Required: true},
		{ID: "f2", Type: model.FieldTypeText, Label: "Two"},
		{ID: "s2", Type: model.FieldTypeSection, Label: "Second"},
		{ID: "f3", Type: model.FieldTypeRating, Label: "Three", Rules: model.ValidationRules{Scale: &scale}},
	}}
	offline := client.NewOffline(form, nil)
	sess := loadSession(t, offline, "paged")
	driver := &stubDriver{
		inputs:    []string{"", "b", "a", "b"},
		selectIdx: []int{2},
		confirm:   []bool{true},
	}

	if err := New(WithPromptDriver(driver), WithPageMode(true)).Run(context.Background(), sess); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := map[string]string{"f1": "a", "f2": "b", "f3": "3"}
	if diff := cmp.Diff(want, answerTexts(submitted(t, offline))); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
	for _, text := range []string{"== First ==", "== Second ==", "One: This field is required"} {
		if !driver.said(text) {
			t.Fatalf("expected message %q in %v", text, driver.infos)
		}
	}
	if got := driver.selects[0].Options; !cmp.Equal(got, []string{"1", "2", "3", backOption}) {
		t.Fatalf("unexpected scale options %v", got)
	}
}

func TestRunner_PasswordAndIdentity(t *testing.T) {
	form := model.FormDefinition{
		ID:   "f-4",
		Slug: "private",
		Fields: []model.Field{
			{ID: "note", Type: model.FieldTypeTextarea},
		},
		Settings: model.Settings{PasswordProtected: true, Identity: model.IdentityRequired},
	}
	offline := client.NewOffline(form, nil, client.WithPassword("pw"))
	sess := loadSession(t, offline, "private")
	driver := &stubDriver{
		passwords: []string{"nope", "pw"},
		textAreas: []string{"hi"},
		inputs:    []string{"Ada", ""},
		confirm:   []bool{true},
	}

	if err := New(WithPromptDriver(driver)).Run(context.Background(), sess); err != nil {
		t.Fatalf("run: %v", err)
	}
	payload := submitted(t, offline)
	if diff := cmp.Diff(&model.Identity{Name: "Ada"}, payload.SubmitterIdentity); diff != "" {
		t.Fatalf("identity mismatch (-want +got):\n%s", diff)
	}
	if !driver.said("Incorrect password") {
		t.Fatalf("expected password rejection, got %v", driver.infos)
	}
}

type flakyBackend struct {
	*client.Offline
	failures int
}

func (f *flakyBackend) SubmitForm(ctx context.Context, formID string, payload model.SubmissionPayload) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("gateway timeout")
	}
	return f.Offline.SubmitForm(ctx, formID, payload)
}

func TestRunner_SubmitFailureRetriesWithFreshVerification(t *testing.T) {
	form := model.FormDefinition{
		ID:       "f-5",
		Slug:     "verified",
		Fields:   []model.Field{{ID: "a", Type: model.FieldTypeText}},
		Settings: model.Settings{RequireVerification: true},
	}
	backend := &flakyBackend{Offline: client.NewOffline(form, nil), failures: 1}
	sess := loadSession(t, backend, "verified")
	driver := &stubDriver{
		inputs:  []string{"x", "x"},
		confirm: []bool{true, true},
	}
	tokens := 0
	verifier := func(context.Context) (string, time.Time, error) {
		tokens++
		return "token", time.Now().Add(time.Hour), nil
	}

	if err := New(WithPromptDriver(driver), WithVerifier(verifier)).Run(context.Background(), sess); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tokens != 2 {
		t.Fatalf("expected a fresh token per attempt, got %d", tokens)
	}
	if !driver.said("Submission failed") {
		t.Fatalf("expected failure message, got %v", driver.infos)
	}
	submitted(t, backend.Offline)
}

func TestRunner_Upload(t *testing.T) {
	form := model.FormDefinition{ID: "f-6", Slug: "files", Fields: []model.Field{
		{ID: "cv", Type: model.FieldTypeFileUpload, Required: true},
	}}
	offline := client.NewOffline(form, nil)
	sess := loadSession(t, offline, "files")
	driver := &stubDriver{
		inputs:  []string{"missing.pdf", "cv.txt"},
		confirm: []bool{true},
	}
	opener := func(path string) (model.Upload, io.Closer, error) {
		if path != "cv.txt" {
			return model.Upload{}, nil, errors.New("no such file")
		}
		return model.Upload{Name: path, Type: "text/plain", Content: strings.NewReader("hello")}, io.NopCloser(nil), nil
	}

	if err := New(WithPromptDriver(driver), WithFileOpener(opener)).Run(context.Background(), sess); err != nil {
		t.Fatalf("run: %v", err)
	}
	record, ok := submitted(t, offline).Answer("cv")
	if !ok {
		t.Fatalf("expected cv answer")
	}
	if record.AnswerText == "" || !strings.Contains(record.AnswerText, "offline://uploads/cv.txt") {
		t.Fatalf("unexpected upload record %+v", record)
	}
	if !driver.said("Cannot open file") {
		t.Fatalf("expected open failure message, got %v", driver.infos)
	}
}

func TestRunner_PreviousSubmission(t *testing.T) {
	form := contactForm()
	offline := client.NewOffline(form, nil)
	if err := offline.SubmitForm(context.Background(), form.ID, model.SubmissionPayload{FormID: form.ID}); err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	sess := loadSession(t, offline, "contact")
	driver := &stubDriver{}

	if err := New(WithPromptDriver(driver)).Run(context.Background(), sess); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !driver.said("already responded") {
		t.Fatalf("expected previous submission notice, got %v", driver.infos)
	}
}

func TestRunner_Errors(t *testing.T) {
	offline := client.NewOffline(contactForm(), nil)

	err := New(WithPromptDriver(&stubDriver{})).Run(context.Background(), session.New(offline))
	if !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}

	failed := session.New(offline)
	loadErr := failed.Load(context.Background(), "unknown", nil)
	err = New(WithPromptDriver(&stubDriver{})).Run(context.Background(), failed)
	if err == nil || !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}

	sess := loadSession(t, offline, "contact")
	driver := &stubDriver{confirm: []bool{true}, err: ErrAborted}
	if err := New(WithPromptDriver(driver)).Run(context.Background(), sess); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestWritePayload(t *testing.T) {
	payload := model.SubmissionPayload{
		FormID:            "f-1",
		Status:            model.SubmissionStatusCompleted,
		TimeSpentSeconds:  12,
		SubmitterIdentity: &model.Identity{Name: "Ada", Email: "ada@example.com"},
		Answers: []model.AnswerRecord{
			{FieldID: "name", AnswerText: "Ada Lovelace"},
			{FieldID: "topics", AnswerText: "a, b"},
		},
	}

	var form bytes.Buffer
	if err := WritePayload(&form, payload, OutputFormatFormURLEncoded); err != nil {
		t.Fatalf("form: %v", err)
	}
	if got := strings.TrimSpace(form.String()); got != "name=Ada+Lovelace&topics=a%2C+b" {
		t.Fatalf("unexpected form output %q", got)
	}

	var pretty bytes.Buffer
	if err := WritePayload(&pretty, payload, OutputFormatPrettyText); err != nil {
		t.Fatalf("pretty: %v", err)
	}
	if !strings.Contains(pretty.String(), "Respondent: Ada <ada@example.com>") {
		t.Fatalf("unexpected pretty output %q", pretty.String())
	}

	var js bytes.Buffer
	if err := WritePayload(&js, payload, OutputFormatJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(js.String(), `"formId": "f-1"`) {
		t.Fatalf("unexpected json output %q", js.String())
	}

	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if format, _ := ParseOutputFormat(" Pretty "); format != OutputFormatPrettyText {
		t.Fatalf("unexpected format %q", format)
	}
}
