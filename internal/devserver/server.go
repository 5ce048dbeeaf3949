// Package devserver is an in-memory implementation of the forms REST API. It
// publishes definitions from a directory and accepts passwords, uploads,
// payments and submissions, so the terminal runner can be exercised end to
// end without a production backend.
package devserver

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/client"
	"github.com/goliatone/go-formflow/pkg/model"
)

const (
	// DefaultPassword opens protected forms that have no configured password.
	DefaultPassword = "formflow"
	// MaxUploadBytes bounds a single uploaded file.
	MaxUploadBytes = 32 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithPasswords sets per-slug passwords for protected forms.
func WithPasswords(passwords map[string]string) Option {
	return func(s *Server) {
		for slug, password := range passwords {
			s.passwords[slug] = password
		}
	}
}

// WithLogger injects a logger. Requests are logged through it as well.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		s.logger = logging.Or(logger)
	}
}

// WithSubmissionLog appends every accepted submission to w as one JSON
// document per line.
func WithSubmissionLog(w io.Writer) Option {
	return func(s *Server) {
		s.sink = w
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Submission is an accepted payload.
type Submission struct {
	ID         string                  `json:"id"`
	Respondent string                  `json:"respondent"`
	ReceivedAt time.Time               `json:"receivedAt"`
	Payload    model.SubmissionPayload `json:"payload"`
}

type storedUpload struct {
	name        string
	contentType string
	data        []byte
}

type paymentIntent struct {
	formID   string
	amount   float64
	currency string
	status   string
}

// Server holds the catalog and everything respondents send.
type Server struct {
	catalog   *Catalog
	passwords map[string]string
	logger    logrus.FieldLogger
	sink      io.Writer
	now       func() time.Time

	mu          sync.Mutex
	submissions map[string]map[string]Submission
	uploads     map[string]storedUpload
	intents     map[string]*paymentIntent
}

// New returns a Server publishing catalog.
func New(catalog *Catalog, opts ...Option) *Server {
	if catalog == nil {
		catalog, _ = NewCatalog()
	}
	s := &Server{
		catalog:     catalog,
		passwords:   make(map[string]string),
		logger:      logging.Discard(),
		now:         time.Now,
		submissions: make(map[string]map[string]Submission),
		uploads:     make(map[string]storedUpload),
		intents:     make(map[string]*paymentIntent),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	root := chi.NewRouter()
	root.Use(
		middleware.RequestID,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}),
		middleware.Recoverer,
	)

	root.Get("/forms", s.listForms())
	root.Route("/forms/{form}", func(r chi.Router) {
		r.Get("/", s.getForm())
		r.Post("/verify-password", s.verifyPassword())
		r.Get("/submissions/previous", s.previousSubmission())
		r.Post("/submissions", s.submit())
		r.Post("/uploads", s.upload())
		r.Post("/payment-intents", s.createPaymentIntent())
	})
	root.Post("/payment-intents/{intent}/confirm", s.confirmPayment())
	root.Get("/uploads/{upload}", s.download())
	return root
}

// Submissions returns the accepted submissions for formID.
func (s *Server) Submissions(formID string) []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submission, 0, len(s.submissions[formID]))
	for _, sub := range s.submissions[formID] {
		out = append(out, sub)
	}
	return out
}

func (s *Server) password(slug string) string {
	if password, ok := s.passwords[slug]; ok {
		return password
	}
	return DefaultPassword
}

func (s *Server) record(sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRespondent, ok := s.submissions[sub.Payload.FormID]
	if !ok {
		byRespondent = make(map[string]Submission)
		s.submissions[sub.Payload.FormID] = byRespondent
	}
	if _, exists := byRespondent[sub.Respondent]; exists {
		return errAlreadySubmitted
	}
	if s.sink != nil {
		if err := sonic.ConfigStd.NewEncoder(s.sink).Encode(sub); err != nil {
			return err
		}
	}
	byRespondent[sub.Respondent] = sub
	return nil
}

func (s *Server) previous(formID, respondent string) (Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[formID][respondent]
	return sub, ok
}

// respondentOf identifies the caller by its respondent header, falling back
// to the remote host.
func respondentOf(r *http.Request) string {
	if id := r.Header.Get(client.HeaderRespondentID); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
