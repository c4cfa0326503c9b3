package cache

import (
	"fmt"

	"cardtrack/config"
)

// NewStore creates the Store selected by cfg.Type.
func NewStore(cfg config.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(cfg.QuotaBytes), nil
	case "file":
		return NewFileStore(cfg.File)
	case "bolt":
		return NewBoltStore(cfg.Bolt.Path)
	case "redis":
		return NewRedisStore(RedisConfig{URL: cfg.Redis.URL, Prefix: cfg.Redis.Prefix})
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
