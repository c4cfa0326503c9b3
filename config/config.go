// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cardtrack/internal/core"
)

// DefaultBodySizeLimit is the request body limit when none is configured.
const DefaultBodySizeLimit int64 = 2 * 1024 * 1024

// Body size limits accepted by ValidateBodySizeLimit.
const (
	minBodySizeLimit = 1024
	maxBodySizeLimit = 100 * 1024 * 1024
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Logging  LogConfig             `yaml:"logging"`
	Metrics  MetricsConfig         `yaml:"metrics"`
	Cache    CacheConfig           `yaml:"cache"`
	Storage  StorageConfig         `yaml:"storage"`
	Games    map[string]GameConfig `yaml:"games"`
	Upstream UpstreamConfig        `yaml:"upstream"`
	Sessions SessionsConfig        `yaml:"sessions"`
	Warmup   WarmupConfig          `yaml:"warmup"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// MasterKey protects the admin API. Empty disables the check.
	MasterKey     string `yaml:"master_key"`
	BodySizeLimit string `yaml:"body_size_limit"`
}

// LogConfig holds log output configuration
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is one of auto, pretty, json
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// CacheConfig holds the client cache configuration
type CacheConfig struct {
	// Type is one of memory, file, bolt, redis
	Type  string      `yaml:"type"`
	File  string      `yaml:"file"`
	Bolt  BoltConfig  `yaml:"bolt"`
	Redis RedisConfig `yaml:"redis"`
	// QuotaBytes bounds the memory store. 0 means unlimited.
	QuotaBytes       int64 `yaml:"quota_bytes"`
	ScrollTTLMinutes int   `yaml:"scroll_ttl_minutes"`
	APITTLMinutes    int   `yaml:"api_ttl_minutes"`
}

// BoltConfig holds bbolt cache store configuration
type BoltConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis cache store configuration
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// StorageConfig holds the set database configuration
type StorageConfig struct {
	// Type is one of memory, sqlite, postgresql, mongodb
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// GameConfig holds per-game loader settings.
// Pointer fields distinguish "unset" from false so YAML can override single fields.
type GameConfig struct {
	CacheTimeMinutes    int    `yaml:"cache_time_minutes"`
	InitialChunkSize    int    `yaml:"initial_chunk_size"`
	AdditionalChunkSize int    `yaml:"additional_chunk_size"`
	Paginated           *bool  `yaml:"paginated"`
	UpstreamURL         string `yaml:"upstream_url"`
	Enabled             *bool  `yaml:"enabled"`
	// Upcoming limits the collection to sets dated today or later, oldest first.
	Upcoming bool `yaml:"upcoming"`
}

// IsPaginated reports whether the game exposes load-more pagination.
func (g GameConfig) IsPaginated() bool {
	return g.Paginated != nil && *g.Paginated
}

// IsEnabled reports whether the game is served. Defaults to true.
func (g GameConfig) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// CacheTTL returns the tier-2 cache TTL.
func (g GameConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTimeMinutes) * time.Minute
}

// UpstreamConfig holds card database API client configuration
type UpstreamConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	PokemonAPIKey string        `yaml:"pokemon_api_key"`
}

// SessionsConfig holds session registry configuration
type SessionsConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// WarmupConfig holds the scheduled warm-up configuration
type WarmupConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a cron expression or descriptor such as "@every 6h"
	Schedule string `yaml:"schedule"`
}

// LoadResult is the outcome of Load.
type LoadResult struct {
	Config *Config
	// Path of the YAML file that was read, empty when none was found.
	Path string
}

// Game returns the settings of g, falling back to the built-in defaults.
func (c *Config) Game(g core.Game) GameConfig {
	if gc, ok := c.Games[string(g)]; ok {
		return gc
	}
	return defaultGameConfig(g)
}

// EnabledGames returns the enabled games in display order.
func (c *Config) EnabledGames() []core.Game {
	var games []core.Game
	for _, g := range core.Games() {
		if c.Game(g).IsEnabled() {
			games = append(games, g)
		}
	}
	return games
}

func boolPtr(b bool) *bool { return &b }

func defaultGameConfig(g core.Game) GameConfig {
	upstream := map[core.Game]string{
		core.GamePokemon: "https://api.pokemontcg.io",
		core.GameMTG:     "https://api.scryfall.com",
		core.GameYugioh:  "https://db.ygoprodeck.com",
		core.GameLorcana: "https://api.lorcana-api.com",
	}
	return GameConfig{
		CacheTimeMinutes:    30,
		InitialChunkSize:    24,
		AdditionalChunkSize: 24,
		Paginated:           boolPtr(g == core.GamePokemon),
		UpstreamURL:         upstream[g],
		Enabled:             boolPtr(true),
	}
}

func buildDefaultConfig() *Config {
	games := make(map[string]GameConfig, len(core.Games()))
	for _, g := range core.Games() {
		games[string(g)] = defaultGameConfig(g)
	}
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
		Cache: CacheConfig{
			Type:             "memory",
			File:             ".cache/cardtrack.json",
			Bolt:             BoltConfig{Path: ".cache/cardtrack.db"},
			Redis:            RedisConfig{Prefix: "cardtrack:"},
			ScrollTTLMinutes: 60,
			APITTLMinutes:    60,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/cardtrack.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "cardtrack"},
		},
		Games: games,
		Upstream: UpstreamConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Sessions: SessionsConfig{
			IdleTimeout: 30 * time.Minute,
		},
		Warmup: WarmupConfig{
			Schedule: "@every 6h",
		},
	}
}

// Load reads configuration from defaults, config.yaml, .env and the environment,
// in increasing order of precedence.
func Load() (*LoadResult, error) {
	cfg := buildDefaultConfig()

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := findConfigFile()
	if path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	fillGameDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

func findConfigFile() string {
	if p := os.Getenv("CARDTRACK_CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{filepath.Join("config", "config.yaml"), "config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// fillGameDefaults completes per-game entries that only set some fields
// and adds entries for games missing from the file.
func fillGameDefaults(cfg *Config) {
	if cfg.Games == nil {
		cfg.Games = make(map[string]GameConfig)
	}
	for _, g := range core.Games() {
		def := defaultGameConfig(g)
		gc, ok := cfg.Games[string(g)]
		if !ok {
			cfg.Games[string(g)] = def
			continue
		}
		if gc.CacheTimeMinutes == 0 {
			gc.CacheTimeMinutes = def.CacheTimeMinutes
		}
		if gc.InitialChunkSize == 0 {
			gc.InitialChunkSize = def.InitialChunkSize
		}
		if gc.AdditionalChunkSize == 0 {
			gc.AdditionalChunkSize = def.AdditionalChunkSize
		}
		if gc.Paginated == nil {
			gc.Paginated = def.Paginated
		}
		if gc.UpstreamURL == "" {
			gc.UpstreamURL = def.UpstreamURL
		}
		if gc.Enabled == nil {
			gc.Enabled = def.Enabled
		}
		cfg.Games[string(g)] = gc
	}
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders.
// Placeholders without a default whose variable is unset or empty are kept verbatim.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PORT", &cfg.Server.Port)
	setString("CARDTRACK_MASTER_KEY", &cfg.Server.MasterKey)
	setString("BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("CACHE_TYPE", &cfg.Cache.Type)
	setString("CACHE_FILE", &cfg.Cache.File)
	setString("CACHE_BOLT_PATH", &cfg.Cache.Bolt.Path)
	setString("REDIS_URL", &cfg.Cache.Redis.URL)
	setString("STORAGE_TYPE", &cfg.Storage.Type)
	setString("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setString("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	setString("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	setString("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)
	setString("POKEMON_TCG_API_KEY", &cfg.Upstream.PokemonAPIKey)
	setString("WARMUP_SCHEDULE", &cfg.Warmup.Schedule)

	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid POSTGRES_MAX_CONNS %q: %w", v, err)
		}
		cfg.Storage.PostgreSQL.MaxConns = n
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid UPSTREAM_TIMEOUT %q: %w", v, err)
		}
		cfg.Upstream.Timeout = d
	}

	for key, dst := range map[string]*bool{
		"METRICS_ENABLED": &cfg.Metrics.Enabled,
		"WARMUP_ENABLED":  &cfg.Warmup.Enabled,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	switch c.Cache.Type {
	case "memory", "file", "bolt", "redis":
	default:
		return fmt.Errorf("invalid cache type %q: must be memory, file, bolt or redis", c.Cache.Type)
	}
	if c.Cache.Type == "redis" && c.Cache.Redis.URL == "" {
		return errors.New("cache.redis.url is required when cache type is redis")
	}
	if c.Cache.ScrollTTLMinutes <= 0 || c.Cache.APITTLMinutes <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if c.Cache.QuotaBytes < 0 {
		return errors.New("cache.quota_bytes must not be negative")
	}

	switch c.Storage.Type {
	case "memory", "sqlite", "postgresql", "mongodb":
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, sqlite, postgresql or mongodb", c.Storage.Type)
	}

	for name, gc := range c.Games {
		if _, err := core.ParseGame(name); err != nil {
			return fmt.Errorf("games: %w", err)
		}
		if gc.CacheTimeMinutes <= 0 {
			return fmt.Errorf("games.%s.cache_time_minutes must be positive", name)
		}
		if gc.InitialChunkSize <= 0 || gc.AdditionalChunkSize <= 0 {
			return fmt.Errorf("games.%s chunk sizes must be positive", name)
		}
	}

	if c.Upstream.Timeout <= 0 {
		return errors.New("upstream.timeout must be positive")
	}
	if c.Upstream.MaxRetries < 0 {
		return errors.New("upstream.max_retries must not be negative")
	}
	if c.Sessions.IdleTimeout <= 0 {
		return errors.New("sessions.idle_timeout must be positive")
	}
	if c.Warmup.Enabled && strings.TrimSpace(c.Warmup.Schedule) == "" {
		return errors.New("warmup.schedule is required when warmup is enabled")
	}

	return ValidateBodySizeLimit(c.Server.BodySizeLimit)
}

var bodySizePattern = regexp.MustCompile(`^(\d+)([KMGkmg])?[Bb]?$`)

// ValidateBodySizeLimit checks a size such as "10M" or "512KB".
// Empty means the server default. Accepted range is 1KB to 100MB.
func ValidateBodySizeLimit(s string) error {
	_, err := ParseBodySizeLimit(s)
	return err
}

// ParseBodySizeLimit converts a size string to bytes. Empty returns 0.
func ParseBodySizeLimit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := bodySizePattern.FindStringSubmatch(s)
	if m == nil || (m[2] == "" && strings.HasSuffix(strings.ToUpper(s), "B")) {
		return 0, fmt.Errorf("invalid body size limit %q: use a number with optional K, M or G suffix", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid body size limit %q: %w", s, err)
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		n *= 1024
	case "M":
		n *= 1024 * 1024
	case "G":
		n *= 1024 * 1024 * 1024
	}
	if n < minBodySizeLimit || n > maxBodySizeLimit {
		return 0, fmt.Errorf("body size limit %q out of range: must be between 1K and 100M", s)
	}
	return n, nil
}
