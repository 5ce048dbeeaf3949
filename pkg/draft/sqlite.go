package draft

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrations embed.FS

// SQLiteBackend stores drafts in a single SQLite table.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the draft
// migrations.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("draft: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	backend, err := NewSQLiteBackend(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}

// NewSQLiteBackend wraps an existing database handle and migrates it.
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	if db == nil {
		return nil, errors.New("draft: sqlite handle is required")
	}
	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("draft: migrate: %w", err)
	}
	return &SQLiteBackend{db: db, now: time.Now}, nil
}

func migrateDB(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return err
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return err
	}
	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		payload   []byte
		expiresAt sql.NullInt64
	)
	row := b.db.QueryRowContext(ctx, `SELECT payload, expires_at FROM drafts WHERE draft_key = ?`, key)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("draft: sqlite get: %w", err)
	}
	if expiresAt.Valid && b.now().Unix() > expiresAt.Int64 {
		if err := b.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return payload, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := b.now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).Unix(), Valid: true}
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO drafts (draft_key, payload, updated_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (draft_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		key, data, now.Unix(), expiresAt)
	if err != nil {
		return fmt.Errorf("draft: sqlite put: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM drafts WHERE draft_key = ?`, key); err != nil {
		return fmt.Errorf("draft: sqlite delete: %w", err)
	}
	return nil
}

// Purge removes every expired record and reports how many were dropped.
func (b *SQLiteBackend) Purge(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM drafts WHERE expires_at IS NOT NULL AND expires_at < ?`, b.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("draft: sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
