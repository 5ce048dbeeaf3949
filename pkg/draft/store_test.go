package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestStore_RestoreWithinMaxAge(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	backend := NewMemoryBackend()
	store := NewStore(backend, WithClock(clk.Now), WithNamespace("device-1"))

	store.Save(ctx, "form-1", model.Answers{"f1": "hello"}, 0)

	clk.Advance(29 * 24 * time.Hour)
	got, ok := store.Restore(ctx, "form-1")
	if !ok {
		t.Fatalf("expected draft within 30 days")
	}
	if got.CurrentQuestionIndex != 0 {
		t.Fatalf("index = %d", got.CurrentQuestionIndex)
	}
	if diff := cmp.Diff(model.Answers{"f1": "hello"}, got.Answers); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_StaleDraftDiscarded(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	backend := NewMemoryBackend()
	store := NewStore(backend, WithClock(clk.Now))

	store.Save(ctx, "form-1", model.Answers{"f1": "hello"}, 2)
	clk.Advance(31 * 24 * time.Hour)

	if _, ok := store.Restore(ctx, "form-1"); ok {
		t.Fatalf("expected stale draft to be discarded")
	}
	if backend.Len() != 0 {
		t.Fatalf("expected stale record to be deleted")
	}
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewStore(nil, WithClock(clk.Now))
	answers := model.Answers{"f1": "a", "tags": []string{"x", "y"}, "n": float64(4)}

	store.Save(ctx, "form-1", answers, 1)
	first, _ := store.Restore(ctx, "form-1")
	store.Save(ctx, "form-1", answers, 1)
	second, _ := store.Restore(ctx, "form-1")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated save changed the record (-first +second):\n%s", diff)
	}
}

func TestStore_OverwritesAndClears(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewStore(backend)

	store.Save(ctx, "form-1", model.Answers{"f1": "a"}, 0)
	store.Save(ctx, "form-1", model.Answers{"f1": "b"}, 1)
	if backend.Len() != 1 {
		t.Fatalf("expected a single record, got %d", backend.Len())
	}
	got, ok := store.Restore(ctx, "form-1")
	if !ok || got.Answers["f1"] != "b" || got.CurrentQuestionIndex != 1 {
		t.Fatalf("unexpected draft %#v", got)
	}

	store.Clear(ctx, "form-1")
	if _, ok := store.Restore(ctx, "form-1"); ok {
		t.Fatalf("expected cleared draft")
	}
}

func TestStore_UndecodableRecordDiscarded(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewStore(backend, WithNamespace("dev"))

	if err := backend.Put(ctx, store.Key("form-1"), []byte("{not json"), 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := store.Restore(ctx, "form-1"); ok {
		t.Fatalf("expected undecodable draft to be ignored")
	}
	if backend.Len() != 0 {
		t.Fatalf("expected undecodable record to be deleted")
	}
}

func TestStore_KeysAreNamespaced(t *testing.T) {
	store := NewStore(nil, WithNamespace("device-9"))
	if got := store.Key("form-1"); got != "formflow:draft:device-9:form-1" {
		t.Fatalf("Key = %q", got)
	}
	if got := NewStore(nil).Key("form-1"); got != "formflow:draft:default:form-1" {
		t.Fatalf("Key = %q", got)
	}
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("boom")
}

func (failingBackend) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("boom")
}

func (failingBackend) Delete(context.Context, string) error {
	return errors.New("boom")
}

func TestStore_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := NewStore(failingBackend{})

	store.Save(ctx, "form-1", model.Answers{"f1": "a"}, 0)
	store.Clear(ctx, "form-1")
	if _, ok := store.Restore(ctx, "form-1"); ok {
		t.Fatalf("expected no draft from failing backend")
	}
}

type recordingBackend struct {
	*MemoryBackend
	mu   sync.Mutex
	puts []string
}

func (r *recordingBackend) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	r.mu.Lock()
	r.puts = append(r.puts, string(data))
	r.mu.Unlock()
	return r.MemoryBackend.Put(ctx, key, data, ttl)
}

func TestStore_AsyncWritesKeepOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &recordingBackend{MemoryBackend: NewMemoryBackend()}
	store := NewStore(backend, WithAsyncWrites(4))
	defer store.Close()

	for i := 0; i < 10; i++ {
		store.Save(ctx, "form-1", model.Answers{"f1": float64(i)}, i)
	}
	cancel()

	got, ok := store.Restore(context.Background(), "form-1")
	if !ok {
		t.Fatalf("expected draft after flush")
	}
	if got.CurrentQuestionIndex != 9 || got.Answers["f1"] != float64(9) {
		t.Fatalf("expected last write to win, got %#v", got)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.puts) != 10 {
		t.Fatalf("expected 10 writes, got %d", len(backend.puts))
	}
}

func TestStore_CloseFallsBackToSyncWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, WithAsyncWrites(1))
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	store.Save(ctx, "form-1", model.Answers{"f1": "x"}, 0)
	if _, ok := store.Restore(ctx, "form-1"); !ok {
		t.Fatalf("expected synchronous write after close")
	}
}
