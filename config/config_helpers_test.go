package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	t.Setenv("CT_HOST", "api.pokemontcg.io")
	t.Setenv("CT_KEY", "pk-123")
	t.Setenv("CT_EMPTY", "")

	tests := map[string]string{
		"":                                      "",
		"plain":                                 "plain",
		"${CT_KEY}":                             "pk-123",
		"https://${CT_HOST}/v2":                 "https://api.pokemontcg.io/v2",
		"${CT_HOST}:${CT_KEY}":                  "api.pokemontcg.io:pk-123",
		"${CT_KEY:-fallback}":                   "pk-123",
		"${CT_MISSING:-fallback}":               "fallback",
		"${CT_EMPTY:-fallback}":                 "fallback",
		"${CT_MISSING:-http://h:8080}":          "http://h:8080",
		"${CT_MISSING:-}":                       "",
		"${CT_EMPTY:-}":                         "",
		"${CT_MISSING}":                         "${CT_MISSING}",
		"${CT_EMPTY}":                           "${CT_EMPTY}",
		"${CT_KEY}-${CT_MISSING}":               "pk-123-${CT_MISSING}",
		"${CT_KEY}:${CT_MISSING:-x}:${CT_NOPE}": "pk-123:x:${CT_NOPE}",
	}
	for in, want := range tests {
		assert.Equal(t, want, expandString(in), "expandString(%q)", in)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server",
			env:  map[string]string{"PORT": "3000", "CARDTRACK_MASTER_KEY": "k"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "3000", cfg.Server.Port)
				assert.Equal(t, "k", cfg.Server.MasterKey)
			},
		},
		{
			name: "storage",
			env:  map[string]string{"STORAGE_TYPE": "postgresql", "POSTGRES_URL": "postgres://db/sets", "POSTGRES_MAX_CONNS": "20"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgresql", cfg.Storage.Type)
				assert.Equal(t, "postgres://db/sets", cfg.Storage.PostgreSQL.URL)
				assert.Equal(t, 20, cfg.Storage.PostgreSQL.MaxConns)
			},
		},
		{
			name: "cache",
			env:  map[string]string{"CACHE_TYPE": "redis", "REDIS_URL": "redis://localhost:6379/0", "CACHE_BOLT_PATH": "/tmp/c.db"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis", cfg.Cache.Type)
				assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.Redis.URL)
				assert.Equal(t, "/tmp/c.db", cfg.Cache.Bolt.Path)
			},
		},
		{
			name: "switches accept 1 and true",
			env:  map[string]string{"METRICS_ENABLED": "true", "WARMUP_ENABLED": "1"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Metrics.Enabled)
				assert.True(t, cfg.Warmup.Enabled)
			},
		},
		{
			name: "upstream",
			env:  map[string]string{"UPSTREAM_TIMEOUT": "5s", "POKEMON_TCG_API_KEY": "pk-test"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
				assert.Equal(t, "pk-test", cfg.Upstream.PokemonAPIKey)
			},
		},
		{
			name: "nothing set keeps defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "8080", cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"POSTGRES_MAX_CONNS": "many",
		"METRICS_ENABLED":    "perhaps",
		"UPSTREAM_TIMEOUT":   "soon",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			require.Error(t, applyEnvOverrides(buildDefaultConfig()))
		})
	}
}
