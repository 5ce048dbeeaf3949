// Package client implements the session backend over the REST API and as a
// single-form offline stand-in.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const (
	// HeaderRespondentID identifies the respondent device on every request.
	HeaderRespondentID = "X-Respondent-ID"
	// DefaultCacheSize bounds the number of cached definitions.
	DefaultCacheSize = 64
	// DefaultTimeout applies when no http.Client is injected.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 8 << 20
)

// Option configures an HTTP client.
type Option func(*HTTP)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTP) {
		if client != nil {
			c.client = client
		}
	}
}

// WithRespondentID fixes the respondent id. A random one is generated
// otherwise.
func WithRespondentID(id string) Option {
	return func(c *HTTP) {
		if id = strings.TrimSpace(id); id != "" {
			c.respondentID = id
		}
	}
}

// WithCacheSize sets the definition cache size. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(c *HTTP) {
		c.cacheSize = size
	}
}

// WithLogger injects a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *HTTP) {
		c.logger = logging.Or(logger)
	}
}

// HTTP is a session backend speaking to the forms REST API.
type HTTP struct {
	base         string
	client       *http.Client
	respondentID string
	cacheSize    int
	cache        *lru.Cache
	logger       logrus.FieldLogger
}

// NewHTTP returns a client rooted at baseURL.
func NewHTTP(baseURL string, opts ...Option) (*HTTP, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", baseURL)
	}

	c := &HTTP{
		base:         strings.TrimRight(parsed.String(), "/"),
		client:       &http.Client{Timeout: DefaultTimeout},
		respondentID: uuid.NewString(),
		cacheSize:    DefaultCacheSize,
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.cacheSize > 0 {
		cache, err := lru.New(c.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("client: definition cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// RespondentID returns the id sent in HeaderRespondentID.
func (c *HTTP) RespondentID() string {
	return c.respondentID
}

// GetFormBySlug fetches, checks and normalises the definition published
// under slug. Definitions are cached per slug.
func (c *HTTP) GetFormBySlug(ctx context.Context, slug string) (model.FormDefinition, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(slug); ok {
			return cached.(model.FormDefinition), nil
		}
	}

	endpoint := c.endpoint("forms", slug)
	status, data, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return model.FormDefinition{}, err
	}
	if status == http.StatusNotFound {
		return model.FormDefinition{}, fmt.Errorf("%w: form %q", ErrNotFound, slug)
	}
	if !success(status) {
		return model.FormDefinition{}, statusError(status, data)
	}

	def, err := schema.Parse(data, endpoint)
	if err != nil {
		return model.FormDefinition{}, err
	}
	if def.Slug == "" {
		def.Slug = slug
	}
	if def.ID == "" {
		def.ID = def.Slug
	}
	if c.cache != nil {
		c.cache.Add(slug, def)
	}
	c.logger.WithFields(logrus.Fields{"slug": slug, "form_id": def.ID}).Debug("form fetched")
	return def, nil
}

type passwordRequest struct {
	Password string `json:"password"`
}

type passwordResponse struct {
	Valid bool `json:"valid"`
}

// VerifyFormPassword reports whether password opens the form. 401 and 403
// answers count as a wrong password.
func (c *HTTP) VerifyFormPassword(ctx context.Context, slug, password string) (bool, error) {
	var out passwordResponse
	status, err := c.call(ctx, http.MethodPost, passwordRequest{Password: password}, &out, "forms", slug, "verify-password")
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.Valid, nil
}

// GetPreviousSubmission returns the respondent's earlier submission, or nil
// when there is none.
func (c *HTTP) GetPreviousSubmission(ctx context.Context, formID string) (*model.SubmissionPayload, error) {
	var out model.SubmissionPayload
	status, err := c.call(ctx, http.MethodGet, nil, &out, "forms", formID, "submissions", "previous")
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile streams upload as the multipart "file" part.
func (c *HTTP) UploadFile(ctx context.Context, formID string, upload model.Upload) (model.FileValue, error) {
	if upload.Content == nil {
		return model.FileValue{}, fmt.Errorf("client: upload %q has no content", upload.Name)
	}

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Name))
		contentType := upload.Type
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, upload.Content)
		}
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
	}()

	endpoint := c.endpoint("forms", formID, "uploads")
	status, data, err := c.do(ctx, http.MethodPost, endpoint, reader, form.FormDataContentType())
	_ = reader.Close()
	if err != nil {
		return model.FileValue{}, err
	}
	if !success(status) {
		return model.FileValue{}, statusError(status, data)
	}

	var file model.FileValue
	if err := sonic.Unmarshal(data, &file); err != nil {
		return model.FileValue{}, fmt.Errorf("client: decode upload response: %w", err)
	}
	if file.Name == "" {
		file.Name = upload.Name
	}
	return file, nil
}

type paymentIntentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type confirmResponse struct {
	Status string `json:"status"`
}

// CreatePaymentIntent opens a payment for amount in currency.
func (c *HTTP) CreatePaymentIntent(ctx context.Context, formID string, amount float64, currency string) (model.PaymentIntent, error) {
	var out model.PaymentIntent
	_, err := c.call(ctx, http.MethodPost, paymentIntentRequest{Amount: amount, Currency: currency}, &out, "forms", formID, "payment-intents")
	return out, err
}

// ConfirmPayment confirms intentID and returns the resulting status.
func (c *HTTP) ConfirmPayment(ctx context.Context, intentID string) (string, error) {
	var out confirmResponse
	_, err := c.call(ctx, http.MethodPost, struct{}{}, &out, "payment-intents", intentID, "confirm")
	return out.Status, err
}

// SubmitForm sends payload. A 4xx answer becomes a *RejectedError.
func (c *HTTP) SubmitForm(ctx context.Context, formID string, payload model.SubmissionPayload) error {
	_, err := c.call(ctx, http.MethodPost, payload, nil, "forms", formID, "submissions")
	if err != nil {
		c.logger.WithField("form_id", formID).WithError(err).Warn("submission not accepted")
	}
	return err
}

// Invalidate drops the cached definition for slug.
func (c *HTTP) Invalidate(slug string) {
	if c.cache != nil {
		c.cache.Remove(slug)
	}
}

// call sends payload as JSON and decodes a 2xx answer into out.
func (c *HTTP) call(ctx context.Context, method string, payload, out any, segments ...string) (int, error) {
	var (
		body        io.Reader
		contentType string
	)
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	status, data, err := c.do(ctx, method, c.endpoint(segments...), body, contentType)
	if err != nil {
		return status, err
	}
	if !success(status) {
		return status, statusError(status, data)
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := sonic.Unmarshal(data, out); err != nil {
			return status, fmt.Errorf("client: decode response: %w", err)
		}
	}
	return status, nil
}

func (c *HTTP) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("client: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRespondentID, c.respondentID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("client: %s %s: %w", method, endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("client: read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (c *HTTP) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return c.base + "/" + strings.Join(escaped, "/")
}

func success(status int) bool {
	return status >= 200 && status < 300
}

type errorBody struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func statusError(status int, data []byte) error {
	var body errorBody
	_ = sonic.Unmarshal(data, &body)
	reason := body.Error
	if reason == "" {
		reason = body.Message
	}
	if reason == "" && len(body.Errors) == 0 {
		reason = strings.TrimSpace(string(data))
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, reason)
	case status >= 400 && status < 500:
		return &RejectedError{Status: status, Reason: reason, Fields: body.Errors}
	default:
		if reason == "" {
			reason = http.StatusText(status)
		}
		return fmt.Errorf("client: unexpected status %d: %s", status, reason)
	}
}
