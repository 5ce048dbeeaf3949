package draft

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formflow/pkg/model"
)

func openTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "drafts.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)

	_, err := backend.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Put(ctx, "k", []byte("one"), time.Hour))
	require.NoError(t, backend.Put(ctx, "k", []byte("two"), time.Hour))

	data, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "two", string(data))

	require.NoError(t, backend.Delete(ctx, "k"))
	_, err = backend.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteBackend_Expiry(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend.now = func() time.Time { return now }

	require.NoError(t, backend.Put(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, backend.Put(ctx, "long", []byte("y"), 24*time.Hour))
	require.NoError(t, backend.Put(ctx, "forever", []byte("z"), 0))

	now = now.Add(2 * time.Minute)
	_, err := backend.Get(ctx, "short")
	require.ErrorIs(t, err, ErrNotFound)

	now = now.Add(48 * time.Hour)
	purged, err := backend.Purge(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	data, err := backend.Get(ctx, "forever")
	require.NoError(t, err)
	require.Equal(t, "z", string(data))
}

func TestSQLiteBackend_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.sqlite")
	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestSQLiteBackend_WithStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestSQLite(t), WithNamespace("device-1"))

	store.Save(ctx, "form-1", model.Answers{"f1": "hello", "tags": []string{"a"}}, 1)
	got, ok := store.Restore(ctx, "form-1")
	require.True(t, ok)
	require.Equal(t, 1, got.CurrentQuestionIndex)
	require.Equal(t, "hello", got.Answers["f1"])
	require.Equal(t, []any{"a"}, got.Answers["tags"])
}
