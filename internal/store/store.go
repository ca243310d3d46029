// package store provides the persistent key/value store backing the
// cache and sync queue.
//
// The store is a flat string namespace: at most one entry per key, and
// writes replace rather than merge. Values are JSON-encoded by callers.
// There is no module-level singleton; the composition root opens a store
// and injects it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/stepsync/internal/shared"
)

// Store is the key/value contract the cache and queue build on.
//
// Implementations must be safe for use without any prior initialization
// call beyond construction. All errors wrap [shared.ErrStorageUnavailable];
// callers treat failures as a miss or a lost append, never as fatal.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value under key, replacing any existing value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the entry for key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}

// SQLiteStore persists entries in a kv_entries table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if necessary) the store at path and applies
// pending schema migrations. Pass ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrations failed: %v", shared.ErrStorageUnavailable, err)
	}

	return &SQLiteStore{db: db}, nil
}

// OpenDB wraps an already-open database. The caller remains responsible
// for running migrations; used by the CLI which configures the pool first.
func OpenDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_entries WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %q: %v", shared.ErrStorageUnavailable, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("%w: set %q: %v", shared.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("%w: remove %q: %v", shared.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a map-backed Store for tests and ephemeral use.
// Multiple independent instances can coexist, which is what the
// concurrent-enqueue stress tests rely on.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, fmt.Errorf("%w: store closed", shared.ErrStorageUnavailable)
	}
	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: store closed", shared.ErrStorageUnavailable)
	}
	m.entries[key] = value
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: store closed", shared.ErrStorageUnavailable)
	}
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
