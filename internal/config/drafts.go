package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/pkg/draft"
)

// OpenDrafts builds the draft store described by cfg. The returned close
// function drains async writes and releases the backend.
func OpenDrafts(cfg Drafts, namespace string, logger logrus.FieldLogger) (*draft.Store, func() error, error) {
	opts := []draft.Option{
		draft.WithNamespace(namespace),
		draft.WithMaxAge(cfg.MaxAge),
		draft.WithLogger(logger),
	}
	if cfg.AsyncBuffer > 0 {
		opts = append(opts, draft.WithAsyncWrites(cfg.AsyncBuffer))
	}

	var (
		backend draft.Backend
		release = func() error { return nil }
	)
	switch cfg.Backend {
	case "", DraftsMemory:
		backend = draft.NewMemoryBackend()
	case DraftsSQLite:
		sqlite, err := draft.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		backend, release = sqlite, sqlite.Close
	case DraftsRedis:
		pool := draft.NewRedisPool(cfg.RedisAddr, cfg.RedisMaxIdle)
		backend, release = draft.NewRedisBackend(pool), pool.Close
	default:
		return nil, nil, fmt.Errorf("config: unknown drafts backend %q", cfg.Backend)
	}

	store := draft.NewStore(backend, opts...)
	closeFn := func() error {
		_ = store.Close()
		return release()
	}
	return store, closeFn, nil
}
