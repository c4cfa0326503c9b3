package loader

import (
	"time"

	"cardtrack/config"
	"cardtrack/internal/core"
)

// Defaults for a loader created without configuration.
const (
	DefaultCacheTTL            = 30 * time.Minute
	DefaultInitialChunkSize    = 24
	DefaultAdditionalChunkSize = 24
)

// Options controls how a loader caches and reveals a collection.
type Options struct {
	// CacheTTL is how long a database result is kept in the cache tier.
	CacheTTL time.Duration
	// InitialChunkSize is the number of items visible after the first load.
	InitialChunkSize int
	// AdditionalChunkSize is the number of items each LoadMore reveals.
	AdditionalChunkSize int
	// Paginated enables chunked reveal. Without it the whole collection is visible.
	Paginated bool
	// Upcoming restricts the collection to sets dated today or later, oldest first.
	Upcoming bool
}

// DefaultOptions returns the defaults for game. Only Pokémon is paginated.
func DefaultOptions(game core.Game) Options {
	return Options{
		CacheTTL:            DefaultCacheTTL,
		InitialChunkSize:    DefaultInitialChunkSize,
		AdditionalChunkSize: DefaultAdditionalChunkSize,
		Paginated:           game == core.GamePokemon,
	}
}

// OptionsFromConfig converts per-game configuration into loader options.
func OptionsFromConfig(gc config.GameConfig) Options {
	return Options{
		CacheTTL:            gc.CacheTTL(),
		InitialChunkSize:    gc.InitialChunkSize,
		AdditionalChunkSize: gc.AdditionalChunkSize,
		Paginated:           gc.IsPaginated(),
		Upcoming:            gc.Upcoming,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.InitialChunkSize <= 0 {
		o.InitialChunkSize = DefaultInitialChunkSize
	}
	if o.AdditionalChunkSize <= 0 {
		o.AdditionalChunkSize = DefaultAdditionalChunkSize
	}
	return o
}
