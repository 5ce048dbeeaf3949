package devserver

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/pages"
	"github.com/goliatone/go-formflow/pkg/validation"
)

var errAlreadySubmitted = errors.New("devserver: already submitted")

type formSummary struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

func (s *Server) listForms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms := s.catalog.List()
		out := make([]formSummary, 0, len(forms))
		for _, form := range forms {
			out = append(out, formSummary{ID: form.ID, Slug: form.Slug, Title: form.Title})
		}
		render.JSON(w, r, out)
	}
}

func (s *Server) getForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "form")
		form, ok := s.catalog.BySlug(slug)
		if !ok {
			s.logNotFound(w, r, "get_form", slug)
			return
		}
		render.JSON(w, r, form)
	}
}

type passwordRequest struct {
	Password string `json:"password"`
}

type passwordResponse struct {
	Valid bool `json:"valid"`
}

func (s *Server) verifyPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "form")
		form, ok := s.catalog.BySlug(slug)
		if !ok {
			s.logNotFound(w, r, "verify_password", slug)
			return
		}

		var body passwordRequest
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			s.logStatus(w, r, http.StatusBadRequest, logrus.DebugLevel, "verify_password.decode", "invalid request body")
			return
		}
		if !form.Settings.PasswordProtected {
			render.JSON(w, r, passwordResponse{Valid: true})
			return
		}
		if subtle.ConstantTimeCompare([]byte(body.Password), []byte(s.password(slug))) != 1 {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, passwordResponse{Valid: false})
			return
		}
		render.JSON(w, r, passwordResponse{Valid: true})
	}
}

func (s *Server) previousSubmission() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := s.catalog.ByID(chi.URLParam(r, "form"))
		if !ok {
			s.logNotFound(w, r, "previous_submission.form", chi.URLParam(r, "form"))
			return
		}
		sub, ok := s.previous(form.ID, respondentOf(r))
		if !ok {
			s.logNotFound(w, r, "previous_submission", form.ID)
			return
		}
		render.JSON(w, r, sub.Payload)
	}
}

type submitResponse struct {
	ID string `json:"id"`
}

func (s *Server) submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := s.catalog.ByID(chi.URLParam(r, "form"))
		if !ok {
			s.logNotFound(w, r, "submit.form", chi.URLParam(r, "form"))
			return
		}

		var payload model.SubmissionPayload
		if err := render.DecodeJSON(r.Body, &payload); err != nil {
			s.logStatus(w, r, http.StatusBadRequest, logrus.DebugLevel, "submit.decode", "invalid request body")
			return
		}
		if payload.FormID == "" {
			payload.FormID = form.ID
		}
		if payload.FormID != form.ID {
			s.logStatus(w, r, http.StatusUnprocessableEntity, logrus.DebugLevel, "submit.form_id", "formId does not match the form")
			return
		}

		if problems := checkPayload(form, payload); len(problems) > 0 {
			s.logger.WithFields(logrus.Fields{"form_id": form.ID, "problems": len(problems)}).Debug("submission rejected")
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, errorBody{Error: "submission is invalid", Errors: problems})
			return
		}

		sub := Submission{
			ID:         uuid.NewString(),
			Respondent: respondentOf(r),
			ReceivedAt: s.now().UTC(),
			Payload:    payload,
		}
		if err := s.record(sub); errors.Is(err, errAlreadySubmitted) {
			s.logStatus(w, r, http.StatusConflict, logrus.InfoLevel, "submit.duplicate", "form already submitted by this respondent")
			return
		} else if err != nil {
			s.logInternalError(w, r, "submit.record", err)
			return
		}

		s.logger.WithFields(logrus.Fields{
			"form_id":    form.ID,
			"submission": sub.ID,
			"answers":    len(payload.Answers),
		}).Info("submission accepted")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, submitResponse{ID: sub.ID})
	}
}

// checkPayload validates the answers against the questions that are visible
// given those same answers. Problems are keyed by answer path.
func checkPayload(form model.FormDefinition, payload model.SubmissionPayload) map[string][]string {
	problems := make(map[string][]string)
	answers := make(model.Answers, len(payload.Answers))
	for _, record := range payload.Answers {
		field, ok := form.Field(record.FieldID)
		if !ok || !field.Type.Traits().Answerable {
			problems["answers."+record.FieldID] = append(problems["answers."+record.FieldID], "unknown field")
			continue
		}
		answers[field.ID] = model.NormalizeValue(field, unwrap(record.AnswerValue))
	}

	questions := pages.Questions(pages.Partition(form.Fields, answers, nil))
	for _, err := range validation.ValidateAll(questions, answers) {
		key := "answers." + err.FieldID
		problems[key] = append(problems[key], err.Message)
	}

	identity := payload.SubmitterIdentity
	if form.Settings.Identity == model.IdentityRequired && identity.Empty() {
		problems["submitterIdentity"] = []string{"name or email is required"}
	}
	return problems
}

// unwrap undoes the {"value": v} envelope around scalar and list answers.
func unwrap(value any) any {
	if envelope, ok := value.(map[string]any); ok && len(envelope) == 1 {
		if inner, ok := envelope["value"]; ok {
			return inner
		}
	}
	return value
}

func (s *Server) upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := s.catalog.ByID(chi.URLParam(r, "form"))
		if !ok {
			s.logNotFound(w, r, "upload.form", chi.URLParam(r, "form"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			s.logStatus(w, r, http.StatusBadRequest, logrus.DebugLevel, "upload.form_file", "missing file part")
			return
		}
		defer func() {
			_ = file.Close()
		}()

		data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
		if err != nil {
			s.logInternalError(w, r, "upload.read", err)
			return
		}
		if len(data) > MaxUploadBytes {
			s.logStatus(w, r, http.StatusRequestEntityTooLarge, logrus.InfoLevel, "upload.size", "file is too large")
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		id := uuid.NewString()
		s.mu.Lock()
		s.uploads[id] = storedUpload{name: header.Filename, contentType: contentType, data: data}
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{"form_id": form.ID, "upload": id, "size": len(data)}).Info("file uploaded")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, model.FileValue{
			URL:  baseURL(r) + "/uploads/" + id,
			Name: header.Filename,
			Size: int64(len(data)),
			Type: contentType,
		})
	}
}

func (s *Server) download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "upload")
		s.mu.Lock()
		stored, ok := s.uploads[id]
		s.mu.Unlock()
		if !ok {
			s.logNotFound(w, r, "download", id)
			return
		}
		w.Header().Set("Content-Type", stored.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(stored.data)))
		w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(stored.name, `"`, "")+`"`)
		_, _ = w.Write(stored.data)
	}
}

type paymentIntentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type confirmResponse struct {
	Status string `json:"status"`
}

func (s *Server) createPaymentIntent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := s.catalog.ByID(chi.URLParam(r, "form"))
		if !ok {
			s.logNotFound(w, r, "payment_intent.form", chi.URLParam(r, "form"))
			return
		}

		var body paymentIntentRequest
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			s.logStatus(w, r, http.StatusBadRequest, logrus.DebugLevel, "payment_intent.decode", "invalid request body")
			return
		}
		if body.Amount <= 0 {
			s.logStatus(w, r, http.StatusUnprocessableEntity, logrus.DebugLevel, "payment_intent.amount", "amount must be positive")
			return
		}
		currency := strings.ToLower(strings.TrimSpace(body.Currency))
		if len(currency) != 3 {
			s.logStatus(w, r, http.StatusUnprocessableEntity, logrus.DebugLevel, "payment_intent.currency", "currency must be a three letter code")
			return
		}

		id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		s.mu.Lock()
		s.intents[id] = &paymentIntent{formID: form.ID, amount: body.Amount, currency: currency, status: "requires_confirmation"}
		s.mu.Unlock()

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, model.PaymentIntent{
			ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
			IntentID:     id,
		})
	}
}

func (s *Server) confirmPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "intent")
		s.mu.Lock()
		intent, ok := s.intents[id]
		if ok {
			intent.status = model.PaymentSucceeded
		}
		s.mu.Unlock()
		if !ok {
			s.logNotFound(w, r, "confirm_payment", id)
			return
		}
		s.logger.WithFields(logrus.Fields{"intent": id, "form_id": intent.formID, "amount": intent.amount}).Info("payment confirmed")
		render.JSON(w, r, confirmResponse{Status: model.PaymentSucceeded})
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
