package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces cardtrack keys in a shared Redis.
const DefaultRedisPrefix = "cardtrack:"

const redisPingTimeout = 5 * time.Second

// RedisConfig selects the Redis instance backing the cache.
type RedisConfig struct {
	URL    string // redis://[:password@]host:port/db
	Prefix string // defaults to DefaultRedisPrefix
}

// RedisStore keeps cache envelopes in Redis so several cardtrack instances
// share one client cache. Keys never expire in Redis; freshness lives in the envelope.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore dials cfg.URL and pings it before returning.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	store := NewRedisStoreWithClient(client, cfg.Prefix)
	slog.Info("redis cache connected", "addr", opts.Addr, "db", opts.DB, "prefix", store.prefix)
	return store, nil
}

// NewRedisStoreWithClient uses an existing client. An empty prefix means DefaultRedisPrefix.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
