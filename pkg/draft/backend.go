package draft

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by backends when no record exists for a key.
var ErrNotFound = errors.New("draft: not found")

// Backend persists encoded drafts by key. Put overwrites any previous record.
// A positive ttl lets backends that support expiry drop the record on their
// own; staleness is still checked by the Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryBackend keeps drafts in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]memoryRecord), now: time.Now}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	record, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !record.expiresAt.IsZero() && m.now().After(record.expiresAt) {
		_ = m.Delete(context.Background(), key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), record.data...), nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	record := memoryRecord{data: append([]byte(nil), data...)}
	if ttl > 0 {
		record.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.records[key] = record
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
