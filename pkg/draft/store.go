// Package draft persists a respondent's in-progress answers and position so
// an abandoned session can resume later.
//
// A Store keeps one record per (respondent device, form) pair and overwrites
// it on every save. Saving is best-effort: failures are logged and never
// surface to the respondent. Restoring discards records older than the
// maximum age.
package draft

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/model"
)

// MaxAge is how long a draft stays restorable after it was saved.
const MaxAge = 30 * 24 * time.Hour

const keyPrefix = "formflow:draft"

// Store saves, restores and clears drafts over a Backend.
type Store struct {
	backend   Backend
	namespace string
	maxAge    time.Duration
	now       func() time.Time
	logger    logrus.FieldLogger

	writer *asyncWriter
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace scopes keys to one respondent device.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.namespace = strings.TrimSpace(namespace)
	}
}

// WithMaxAge overrides MaxAge.
func WithMaxAge(age time.Duration) Option {
	return func(s *Store) {
		if age > 0 {
			s.maxAge = age
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger injects the logger used for swallowed failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAsyncWrites moves saves and clears onto a single background worker.
// Writes keep their submission order; Restore waits for pending writes.
func WithAsyncWrites(buffer int) Option {
	return func(s *Store) {
		s.writer = newAsyncWriter(buffer)
	}
}

// NewStore returns a Store over backend. A nil backend keeps drafts in
// memory.
func NewStore(backend Backend, opts ...Option) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	store := &Store{
		backend: backend,
		maxAge:  MaxAge,
		now:     time.Now,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.writer != nil {
		store.writer.start()
	}
	return store
}

// Key returns the backend key for formID.
func (s *Store) Key(formID string) string {
	namespace := s.namespace
	if namespace == "" {
		namespace = "default"
	}
	return keyPrefix + ":" + namespace + ":" + formID
}

// Save overwrites the draft for formID. Errors are logged and swallowed.
func (s *Store) Save(ctx context.Context, formID string, answers model.Answers, index int) {
	if formID == "" {
		return
	}
	record := model.Draft{
		FormID:               formID,
		Answers:              answers.Clone(),
		CurrentQuestionIndex: index,
		SavedAt:              s.now(),
	}
	ctx = s.detach(ctx)
	s.dispatch(func() {
		s.write(ctx, record)
	})
}

func (s *Store) write(ctx context.Context, record model.Draft) {
	log := s.logger.WithField("form_id", record.FormID)
	data, err := sonic.Marshal(record)
	if err != nil {
		log.WithError(err).Warn("draft: encode failed")
		return
	}
	if err := s.backend.Put(ctx, s.Key(record.FormID), data, s.maxAge); err != nil {
		log.WithError(err).Warn("draft: save failed")
		return
	}
	log.WithField("index", record.CurrentQuestionIndex).Debug("draft saved")
}

// Restore returns the draft for formID. Missing, undecodable and stale
// records yield false; stale and undecodable records are deleted.
func (s *Store) Restore(ctx context.Context, formID string) (model.Draft, bool) {
	if formID == "" {
		return model.Draft{}, false
	}
	s.Flush()

	log := s.logger.WithField("form_id", formID)
	key := s.Key(formID)
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.WithError(err).Warn("draft: restore failed")
		}
		return model.Draft{}, false
	}

	var record model.Draft
	if err := sonic.Unmarshal(data, &record); err != nil {
		log.WithError(err).Warn("draft: discarding undecodable record")
		s.remove(ctx, formID)
		return model.Draft{}, false
	}
	if s.now().Sub(record.SavedAt) > s.maxAge {
		log.WithField("saved_at", record.SavedAt).Info("draft: discarding stale record")
		s.remove(ctx, formID)
		return model.Draft{}, false
	}
	if record.Answers == nil {
		record.Answers = model.Answers{}
	}
	if record.CurrentQuestionIndex < 0 {
		record.CurrentQuestionIndex = 0
	}
	record.FormID = formID
	return record, true
}

// Clear deletes the draft for formID.
func (s *Store) Clear(ctx context.Context, formID string) {
	if formID == "" {
		return
	}
	ctx = s.detach(ctx)
	s.dispatch(func() {
		s.remove(ctx, formID)
	})
}

func (s *Store) remove(ctx context.Context, formID string) {
	if err := s.backend.Delete(ctx, s.Key(formID)); err != nil {
		s.logger.WithField("form_id", formID).WithError(err).Warn("draft: clear failed")
	}
}

// Flush blocks until queued writes have reached the backend.
func (s *Store) Flush() {
	if s.writer != nil {
		s.writer.flush()
	}
}

// Close drains pending writes and stops the background worker. Later writes
// run synchronously.
func (s *Store) Close() error {
	if s.writer != nil {
		s.writer.close()
	}
	return nil
}

func (s *Store) detach(ctx context.Context) context.Context {
	if s.writer == nil {
		return ctx
	}
	return context.WithoutCancel(ctx)
}

// dispatch runs job on the writer when async writes are enabled.
func (s *Store) dispatch(job func()) {
	if s.writer != nil && s.writer.enqueue(job) {
		return
	}
	job()
}

type asyncWriter struct {
	mu     sync.Mutex
	jobs   chan func()
	done   chan struct{}
	closed bool
}

func newAsyncWriter(buffer int) *asyncWriter {
	if buffer < 0 {
		buffer = 0
	}
	return &asyncWriter{
		jobs: make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

func (w *asyncWriter) start() {
	go func() {
		defer close(w.done)
		for job := range w.jobs {
			job()
		}
	}()
}

// enqueue reports false once the writer is closed. The mutex keeps enqueue
// and close from racing on the channel.
func (w *asyncWriter) enqueue(job func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.jobs <- job
	return true
}

func (w *asyncWriter) flush() {
	done := make(chan struct{})
	if !w.enqueue(func() { close(done) }) {
		return
	}
	<-done
}

func (w *asyncWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	<-w.done
}
