package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"cardtrack/internal/cache"
	"cardtrack/internal/core"
)

// DefaultTTL is how long fetched set lists are kept in the fetcher's own cache.
const DefaultTTL = time.Hour

// FetchTimeout bounds one shared upstream fetch. The fetch does not follow
// any single caller's context, since other callers may be waiting on it.
const FetchTimeout = 2 * time.Minute

// Fetcher is the combined fetch utility: it serves a game's set list from
// its own cache entry and otherwise from the game's card API.
type Fetcher struct {
	sources map[core.Game]Source
	cache   *cache.Cache
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// NewFetcher creates a Fetcher. A nil cache disables the fetcher's own caching.
func NewFetcher(sources map[core.Game]Source, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		sources: sources,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
	}
}

// Games lists the games the fetcher has a source for.
func (f *Fetcher) Games() []core.Game {
	games := make([]core.Game, 0, len(f.sources))
	for g := range f.sources {
		games = append(games, g)
	}
	slices.Sort(games)
	return games
}

// FetchSets returns the game's sets newest first.
func (f *Fetcher) FetchSets(ctx context.Context, game core.Game) ([]core.SetRecord, error) {
	if f.cache != nil {
		if records, ok := cache.Get[[]core.SetRecord](ctx, f.cache, cache.APIKey(game)); ok && len(records) > 0 {
			return records, nil
		}
	}
	return f.fetch(ctx, game)
}

// Refresh fetches from the card API regardless of the cached copy and
// replaces it.
func (f *Fetcher) Refresh(ctx context.Context, game core.Game) ([]core.SetRecord, error) {
	return f.fetch(ctx, game)
}

// fetch collapses concurrent calls for the same game into one API request.
func (f *Fetcher) fetch(ctx context.Context, game core.Game) ([]core.SetRecord, error) {
	source, ok := f.sources[game]
	if !ok {
		return nil, fmt.Errorf("no upstream source for %s", game)
	}

	ch := f.group.DoChan(string(game), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FetchTimeout)
		defer cancel()

		start := time.Now()
		records, err := source.FetchSets(fetchCtx)
		if err != nil {
			return nil, fmt.Errorf("fetch %s sets: %w", game, err)
		}
		core.SortByDateDesc(records)
		f.logger.Debug("fetched sets from upstream",
			"game", game,
			"count", len(records),
			"duration", time.Since(start),
		)
		if f.cache != nil && len(records) > 0 {
			f.cache.Set(fetchCtx, cache.APIKey(game), records, f.ttl)
		}
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]core.SetRecord)), nil
	}
}
