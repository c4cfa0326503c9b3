// Package cache provides a TTL-bounded, fail-open cache over a pluggable key/value store.
//
// Entries are stored as a JSON envelope {"value": ..., "expiry": <unix ms>}.
// Reads never fail: a missing, expired or undecodable entry is a miss,
// and expired or corrupt entries are purged on read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cardtrack/internal/core"
)

// ErrQuotaExceeded is returned by a Store that has no room for a write.
var ErrQuotaExceeded = errors.New("cache: storage quota exceeded")

// Store is the persistent key/value medium underneath a Cache.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the raw value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Namespace separates unrelated kinds of cache entries sharing one store.
type Namespace string

const (
	NamespaceSets   Namespace = "sets"
	NamespaceScroll Namespace = "scroll"
	NamespaceAPI    Namespace = "api"
)

// Key identifies a cache entry.
type Key struct {
	Namespace Namespace
	Name      string
}

// String renders the key as stored: "<namespace>:<name>".
func (k Key) String() string {
	return string(k.Namespace) + ":" + k.Name
}

// SetsKey is the fixed key holding a game's set collection.
func SetsKey(g core.Game) Key {
	return Key{Namespace: NamespaceSets, Name: g.CacheKey()}
}

// UpcomingSetsKey is the key of a game's upcoming-only collection.
func UpcomingSetsKey(g core.Game) Key {
	return Key{Namespace: NamespaceSets, Name: g.CacheKey() + "_upcoming"}
}

// ScrollKey is the key holding the saved scroll position of a page path.
func ScrollKey(path string) Key {
	return Key{Namespace: NamespaceScroll, Name: path + "_scroll"}
}

// APIKey is the key the upstream fetcher caches raw API results under.
func APIKey(g core.Game) Key {
	return Key{Namespace: NamespaceAPI, Name: string(g)}
}

type entry struct {
	Value  json.RawMessage `json:"value"`
	Expiry int64           `json:"expiry"`
}

// Cache is a best-effort TTL cache. All methods are safe for concurrent use.
type Cache struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for swallowed storage errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key until now+ttl.
// Failures are logged and counted, never returned.
func (c *Cache) Set(ctx context.Context, key Key, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.fail(key, "set", "marshal_error", err)
		return
	}
	data, err := json.Marshal(entry{Value: raw, Expiry: c.now().Add(ttl).UnixMilli()})
	if err != nil {
		c.fail(key, "set", "marshal_error", err)
		return
	}
	if err := c.store.Set(ctx, key.String(), data); err != nil {
		result := "store_error"
		if errors.Is(err, ErrQuotaExceeded) {
			result = "quota_exceeded"
		}
		c.fail(key, "set", result, err)
		return
	}
	recordOp(key, "set", "ok")
}

// Get returns the value stored under key decoded as T.
// ok is false on a miss, on expiry and on any storage or decoding failure.
func Get[T any](ctx context.Context, c *Cache, key Key) (value T, ok bool) {
	data, found, err := c.store.Get(ctx, key.String())
	if err != nil {
		c.fail(key, "get", "store_error", err)
		return value, false
	}
	if !found {
		recordOp(key, "get", "miss")
		return value, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Value == nil {
		c.purge(ctx, key, "corrupt", err)
		return value, false
	}
	if c.now().UnixMilli() > e.Expiry {
		c.purge(ctx, key, "expired", nil)
		return value, false
	}
	if err := json.Unmarshal(e.Value, &value); err != nil {
		var zero T
		c.purge(ctx, key, "corrupt", err)
		return zero, false
	}

	recordOp(key, "get", "hit")
	return value, true
}

// Delete removes key. Used for explicit invalidation.
func (c *Cache) Delete(ctx context.Context, key Key) error {
	if err := c.store.Delete(ctx, key.String()); err != nil {
		recordOp(key, "delete", "store_error")
		return err
	}
	recordOp(key, "delete", "ok")
	return nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) purge(ctx context.Context, key Key, reason string, cause error) {
	recordOp(key, "get", reason)
	if cause != nil {
		c.logger.Warn("purging corrupt cache entry", "key", key.String(), "error", cause)
	}
	if err := c.store.Delete(ctx, key.String()); err != nil {
		c.logger.Warn("cache purge failed", "key", key.String(), "op", "delete", "error", err)
	}
}

func (c *Cache) fail(key Key, op, result string, err error) {
	recordOp(key, op, result)
	c.logger.Warn("cache operation failed", "key", key.String(), "op", op, "error", err)
}
