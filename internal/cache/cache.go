// package cache implements a time-bounded read-through cache over the
// key/value store.
//
// Entries are stored as a single JSON envelope holding the payload and
// its write time, so a cache write is one store write and there is no
// window where the payload and timestamp disagree. Any failure reading,
// decoding, or validating an entry degrades to a miss; the remote system
// of record stays authoritative.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/store"
)

// DefaultTTL is how long a cached payload stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// envelope is the stored form of one cache entry.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	WrittenAt int64           `json:"written_at"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default entry lifetime. Used by tests; the
// production TTL is fixed.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the wall clock. Used by tests to advance time.
func WithClock(now func() int64) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is a TTL-bounded cache over a [store.Store].
type Cache struct {
	store  store.Store
	logger *log.Logger
	ttl    time.Duration
	now    func() int64
}

// New creates a Cache over the given store.
func New(s store.Store, logger *log.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	c := &Cache{
		store:  s,
		logger: shared.WithLogger(logger, "component", "cache"),
		ttl:    DefaultTTL,
		now:    shared.NowMillis,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get reads the entry for key into dest and reports whether a fresh
// value was found.
//
// Expired entries are deleted lazily here, never swept eagerly. A decode
// failure, a storage failure, or a missing entry all report a miss; none
// of them are surfaced as errors.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("read failed, treating as miss", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.WrittenAt == 0 || len(env.Data) == 0 {
		c.logger.Debug("undecodable entry, treating as miss", "key", key)
		return false
	}

	if c.now()-env.WrittenAt > c.ttl.Milliseconds() {
		if err := c.store.Remove(ctx, key); err != nil {
			c.logger.Warn("failed to delete expired entry", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(env.Data, dest); err != nil {
		c.logger.Debug("payload does not fit destination, treating as miss", "key", key, "error", err)
		return false
	}
	return true
}

// Set writes value under key with the current time.
//
// A failed write is a degraded cache, not an application error; callers
// may ignore the returned error, which exists for tests and logging.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode payload", "key", key, "error", err)
		return err
	}

	raw, err := json.Marshal(envelope{Data: data, WrittenAt: c.now()})
	if err != nil {
		return err
	}

	if err := c.store.Set(ctx, key, string(raw)); err != nil {
		c.logger.Warn("write failed, entry dropped", "key", key, "error", err)
		return err
	}
	return nil
}

// Clear deletes the entry for key unconditionally.
func (c *Cache) Clear(ctx context.Context, key string) error {
	if err := c.store.Remove(ctx, key); err != nil {
		c.logger.Warn("failed to clear entry", "key", key, "error", err)
		return err
	}
	return nil
}
