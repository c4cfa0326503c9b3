package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtrack/internal/core"
)

// isolate runs the test in an empty directory with the overridable variables cleared.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{
		"CARDTRACK_CONFIG", "PORT", "CARDTRACK_MASTER_KEY", "LOG_LEVEL", "LOG_FORMAT",
		"METRICS_ENABLED", "CACHE_TYPE", "REDIS_URL", "STORAGE_TYPE", "WARMUP_ENABLED",
		"POKEMON_TCG_API_KEY", "CACHE_FILE", "UPSTREAM_TIMEOUT", "TEST_PORT_DEFAULTS", "TEST_CACHE_DIR",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	result, err := Load()
	require.NoError(t, err)
	cfg := result.Config

	assert.Empty(t, result.Path)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 60, cfg.Cache.ScrollTTLMinutes)

	pokemon := cfg.Game(core.GamePokemon)
	assert.Equal(t, 30, pokemon.CacheTimeMinutes)
	assert.Equal(t, 24, pokemon.InitialChunkSize)
	assert.Equal(t, 24, pokemon.AdditionalChunkSize)
	assert.True(t, pokemon.IsPaginated())
	assert.Equal(t, 30*time.Minute, pokemon.CacheTTL())

	for _, g := range []core.Game{core.GameMTG, core.GameYugioh, core.GameLorcana} {
		assert.False(t, cfg.Game(g).IsPaginated(), g)
		assert.True(t, cfg.Game(g).IsEnabled(), g)
	}
	assert.Len(t, cfg.EnabledGames(), 4)
}

func TestLoad_YAMLWithDefaults(t *testing.T) {
	dir := isolate(t)

	content := `
server:
  port: "${TEST_PORT_DEFAULTS:-9999}"
cache:
  type: file
  file: "${TEST_CACHE_DIR:-/tmp}/cache.json"
games:
  mtg:
    paginated: true
    initial_chunk_size: 12
  lorcana:
    enabled: false
sessions:
  idle_timeout: 5m
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.yaml"), []byte(content), 0o644))

	result, err := Load()
	require.NoError(t, err)
	cfg := result.Config

	assert.Equal(t, filepath.Join("config", "config.yaml"), result.Path)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "file", cfg.Cache.Type)
	assert.Equal(t, "/tmp/cache.json", cfg.Cache.File)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.IdleTimeout)

	mtg := cfg.Game(core.GameMTG)
	assert.True(t, mtg.IsPaginated())
	assert.Equal(t, 12, mtg.InitialChunkSize)
	assert.Equal(t, 24, mtg.AdditionalChunkSize, "unset fields keep defaults")
	assert.Equal(t, "https://api.scryfall.com", mtg.UpstreamURL)

	assert.False(t, cfg.Game(core.GameLorcana).IsEnabled())
	assert.NotContains(t, cfg.EnabledGames(), core.GameLorcana)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7070\"\n"), 0o644))
	t.Setenv("CARDTRACK_CONFIG", path)
	t.Setenv("PORT", "9090")

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, result.Path)
	assert.Equal(t, "9090", result.Config.Server.Port)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CACHE_TYPE=bolt\n"), 0o644))
	// godotenv sets the variable for the process; make sure it is restored.
	t.Setenv("CACHE_TYPE", "")
	require.NoError(t, os.Unsetenv("CACHE_TYPE"))

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bolt", result.Config.Cache.Type)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [\n"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		errMsg string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"unknown cache type", func(c *Config) { c.Cache.Type = "memcached" }, "invalid cache type"},
		{"redis without url", func(c *Config) { c.Cache.Type = "redis" }, "cache.redis.url"},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "mysql" }, "invalid storage type"},
		{"zero scroll ttl", func(c *Config) { c.Cache.ScrollTTLMinutes = 0 }, "TTLs must be positive"},
		{"unknown game", func(c *Config) { c.Games["digimon"] = defaultGameConfig(core.GamePokemon) }, "unknown game"},
		{"zero chunk size", func(c *Config) {
			gc := c.Games["pokemon"]
			gc.InitialChunkSize = 0
			c.Games["pokemon"] = gc
		}, "chunk sizes must be positive"},
		{"negative cache time", func(c *Config) {
			gc := c.Games["mtg"]
			gc.CacheTimeMinutes = -1
			c.Games["mtg"] = gc
		}, "cache_time_minutes"},
		{"warmup without schedule", func(c *Config) {
			c.Warmup.Enabled = true
			c.Warmup.Schedule = " "
		}, "warmup.schedule"},
		{"bad body size", func(c *Config) { c.Server.BodySizeLimit = "1G" }, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateBodySizeLimit(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		// Valid formats
		{"empty string is valid", "", false},
		{"plain number", "1048576", false},
		{"kilobytes lowercase", "100k", false},
		{"kilobytes uppercase", "100K", false},
		{"kilobytes with B suffix", "100KB", false},
		{"megabytes lowercase", "10m", false},
		{"megabytes with B suffix", "10MB", false},
		{"whitespace trimmed", "  10M  ", false},

		// Boundary values
		{"minimum valid (1KB)", "1K", false},
		{"maximum valid (100MB)", "100M", false},

		// Invalid formats
		{"invalid format with letters", "abc", true},
		{"invalid unit", "10X", true},
		{"negative number", "-10M", true},
		{"decimal number", "10.5M", true},
		{"empty unit with B", "10B", true},

		// Boundary violations
		{"below minimum (100 bytes)", "100", true},
		{"above maximum (200MB)", "200M", true},
		{"above maximum (1GB)", "1G", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBodySizeLimit(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for input %q, got nil", tt.input)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error for input %q: %v", tt.input, err)
				}
			}
		})
	}
}

func TestParseBodySizeLimit(t *testing.T) {
	n, err := ParseBodySizeLimit("2M")
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*1024), n)

	n, err = ParseBodySizeLimit("")
	require.NoError(t, err)
	assert.Zero(t, n)
}
