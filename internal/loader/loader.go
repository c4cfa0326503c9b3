// Package loader implements the paginated set loader: a three-tier
// acquisition chain (card API, cache, database) feeding a chunked view.
package loader

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"cardtrack/internal/cache"
	"cardtrack/internal/core"
	"cardtrack/internal/fallback"
	"cardtrack/internal/frame"
	"cardtrack/internal/sets"
)

var (
	// ErrNoSets is wrapped by State.Error when every tier failed or came back empty.
	ErrNoSets = errors.New("no sets found")
	// ErrClosed is reported when a loader was closed before its load finished.
	ErrClosed = errors.New("loader closed")

	errCacheMiss = errors.New("cache miss")
	errNoTier    = errors.New("tier not configured")
)

// Tier names the acquisition strategy that produced a collection.
type Tier string

const (
	TierAPI      Tier = "api"
	TierCache    Tier = "cache"
	TierDatabase Tier = "database"
)

// Fetcher is the first tier: the combined fetch utility.
type Fetcher interface {
	FetchSets(ctx context.Context, game core.Game) ([]core.SetRecord, error)
}

// Querier is the third tier: the set database.
type Querier interface {
	Query(ctx context.Context, q sets.Query) ([]core.SetRecord, error)
}

// Deps are the collaborators of a loader. Any tier may be nil, which makes
// that tier fail and the chain move on.
type Deps struct {
	Fetcher   Fetcher
	Cache     *cache.Cache
	Querier   Querier
	Scheduler frame.Scheduler
	Logger    *slog.Logger
	// Clock defaults to time.Now. It decides "today" for upcoming loaders.
	Clock func() time.Time
}

// State is a snapshot of a loader.
type State struct {
	Game core.Game
	// Items is the visible prefix of the full collection.
	Items       []core.SetRecord
	Total       int
	Loading     bool
	LoadingMore bool
	HasMore     bool
	Paginated   bool
	Error       error
	Source      Tier
	// ContentReady is set once a load finished with at least one visible item.
	ContentReady bool
}

// Loader owns one game's collection for one session.
type Loader struct {
	game   core.Game
	opts   Options
	deps   Deps
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu          sync.Mutex
	all         []core.SetRecord
	visible     int
	loading     bool
	loadingMore bool
	err         error
	source      Tier
	closed      bool
}

// New creates a loader in the loading state. Nothing is fetched until Load.
func New(game core.Game, opts Options, deps Deps) *Loader {
	if deps.Scheduler == nil {
		deps.Scheduler = frame.Immediate{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		game:    game,
		opts:    opts.withDefaults(),
		deps:    deps,
		logger:  logger.With("game", game),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		loading: true,
	}
}

// Game returns the loader's game.
func (l *Loader) Game() core.Game { return l.game }

// Options returns the effective options.
func (l *Loader) Options() Options { return l.opts }

// Load runs the acquisition chain the first time it is called and returns
// the resulting state. Later and concurrent calls wait for that first run.
// The chain runs under the loader's own context, which Close cancels; ctx
// only bounds how long the caller waits.
func (l *Loader) Load(ctx context.Context) State {
	l.once.Do(func() {
		go l.run()
	})
	select {
	case <-l.done:
	case <-ctx.Done():
	}
	return l.State()
}

// Done is closed when the first load has finished.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

func (l *Loader) run() {
	defer close(l.done)
	start := time.Now()

	chain := fallback.Chain[[]core.SetRecord]{
		Providers: []fallback.Provider[[]core.SetRecord]{
			{Name: string(TierAPI), Fetch: l.fetchAPI},
			{Name: string(TierCache), Fetch: l.fetchCache},
			{Name: string(TierDatabase), Fetch: l.fetchDatabase},
		},
		Accept: func(records []core.SetRecord) bool { return len(records) > 0 },
		Logger: l.logger,
	}
	result, err := chain.Run(l.ctx)
	l.record(result.Attempts)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if l.closed {
		l.err = ErrClosed
		return
	}
	if err != nil {
		l.err = fmt.Errorf("%w: %w", ErrNoSets, err)
		l.logger.Error("all tiers failed", "error", err)
		return
	}

	l.all = result.Value
	l.source = Tier(result.Provider)
	if l.opts.Paginated {
		l.visible = min(l.opts.InitialChunkSize, len(l.all))
	} else {
		l.visible = len(l.all)
	}
	loadDuration.WithLabelValues(string(l.game), result.Provider).Observe(time.Since(start).Seconds())
	l.logger.Info("sets loaded", "source", result.Provider, "total", len(l.all), "visible", l.visible)
}

func (l *Loader) fetchAPI(ctx context.Context) ([]core.SetRecord, error) {
	if l.deps.Fetcher == nil {
		return nil, errNoTier
	}
	records, err := l.deps.Fetcher.FetchSets(ctx, l.game)
	if err != nil {
		return nil, err
	}
	if l.opts.Upcoming {
		records = upcoming(records, l.today())
	}
	return records, nil
}

func (l *Loader) fetchCache(ctx context.Context) ([]core.SetRecord, error) {
	if l.deps.Cache == nil {
		return nil, errNoTier
	}
	records, ok := cache.Get[[]core.SetRecord](ctx, l.deps.Cache, l.cacheKey())
	if !ok {
		return nil, errCacheMiss
	}
	return records, nil
}

func (l *Loader) fetchDatabase(ctx context.Context) ([]core.SetRecord, error) {
	if l.deps.Querier == nil {
		return nil, errNoTier
	}
	records, err := l.deps.Querier.Query(ctx, sets.CollectionQuery(l.game, l.opts.Upcoming, l.today()))
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && l.deps.Cache != nil {
		l.deps.Cache.Set(ctx, l.cacheKey(), records, l.opts.CacheTTL)
	}
	return records, nil
}

// cacheKey is the game's fixed key; upcoming collections get their own.
func (l *Loader) cacheKey() cache.Key {
	if l.opts.Upcoming {
		return cache.UpcomingSetsKey(l.game)
	}
	return cache.SetsKey(l.game)
}

func (l *Loader) today() string {
	return l.deps.Clock().Format(core.DateLayout)
}

// record counts every attempt. The last attempt of a successful run is the hit.
func (l *Loader) record(attempts []fallback.Attempt) {
	for _, a := range attempts {
		outcome := "hit"
		switch {
		case a.Err == nil:
		case errors.Is(a.Err, fallback.ErrRejected):
			outcome = "empty"
		case errors.Is(a.Err, errCacheMiss):
			outcome = "miss"
		case errors.Is(a.Err, errNoTier):
			outcome = "skipped"
		default:
			outcome = "error"
		}
		tierOutcomes.WithLabelValues(string(l.game), a.Name, outcome).Inc()
	}
}

// LoadMore reveals the next chunk on the next frame. It returns false and
// does nothing while a previous LoadMore is pending, before the first load
// finished, after Close, or when everything is already visible.
// It never goes back to any tier.
func (l *Loader) LoadMore() bool {
	l.mu.Lock()
	if l.closed || l.loading || l.loadingMore || !l.hasMore() {
		l.mu.Unlock()
		return false
	}
	l.loadingMore = true
	l.mu.Unlock()

	l.deps.Scheduler.Schedule(l.commitMore)
	return true
}

func (l *Loader) commitMore() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.visible = min(l.visible+l.opts.AdditionalChunkSize, len(l.all))
	}
	l.loadingMore = false
}

// hasMore must be called with l.mu held.
func (l *Loader) hasMore() bool {
	return l.opts.Paginated && l.visible < len(l.all)
}

// State returns a snapshot. Items is a copy and may be modified by the caller.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Game:         l.game,
		Items:        slices.Clone(l.all[:l.visible]),
		Total:        len(l.all),
		Loading:      l.loading,
		LoadingMore:  l.loadingMore,
		HasMore:      l.hasMore(),
		Paginated:    l.opts.Paginated,
		Error:        l.err,
		Source:       l.source,
		ContentReady: !l.loading && l.err == nil && l.visible > 0,
	}
}

// All returns a copy of the full collection, including items not yet visible.
func (l *Loader) All() []core.SetRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.all)
}

// Close cancels an in-flight load and discards its result.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
}

// upcoming keeps sets dated today or later, oldest first.
func upcoming(records []core.SetRecord, today string) []core.SetRecord {
	out := make([]core.SetRecord, 0, len(records))
	for _, r := range records {
		if r.SortDate() >= today {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b core.SetRecord) int {
		if c := cmp.Compare(a.SortDate(), b.SortDate()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
