// Package warmup refreshes set collections on a schedule so the database and
// cache tiers hold current data before a loader needs them.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"cardtrack/internal/cache"
	"cardtrack/internal/core"
)

// ErrRunning is returned by RunOnce when a run is already in progress.
var ErrRunning = errors.New("warm-up already running")

// Refresher fetches a game's sets from its card API, bypassing caches.
type Refresher interface {
	Refresh(ctx context.Context, game core.Game) ([]core.SetRecord, error)
}

// Upserter persists set records.
type Upserter interface {
	Upsert(ctx context.Context, game core.Game, records []core.SetRecord) error
}

// GameResult is the outcome of warming one game.
type GameResult struct {
	Game  core.Game `json:"game"`
	Count int       `json:"count"`
	Error string    `json:"error,omitempty"`
}

// Report summarizes one run.
type Report struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Games    []GameResult  `json:"games"`
}

// Failed reports whether any game failed.
func (r Report) Failed() bool {
	for _, g := range r.Games {
		if g.Error != "" {
			return true
		}
	}
	return false
}

// Job warms every configured game.
type Job struct {
	games     []core.Game
	ttl       func(core.Game) time.Duration
	limit     int
	refresher Refresher
	store     Upserter
	cache     *cache.Cache
	logger    *slog.Logger

	running sync.Mutex
	cron    *cron.Cron
}

// Config lists the games to warm and the cache TTL of each.
type Config struct {
	Games []core.Game
	// TTL returns the tier-2 cache TTL for a game.
	TTL func(core.Game) time.Duration
	// Parallelism bounds how many games are refreshed at once. Default 2.
	Parallelism int
}

// New creates a Job. store and c may be nil to skip that step.
func New(cfg Config, refresher Refresher, store Upserter, c *cache.Cache, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL == nil {
		cfg.TTL = func(core.Game) time.Duration { return 30 * time.Minute }
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	return &Job{
		games:     cfg.Games,
		ttl:       cfg.TTL,
		limit:     cfg.Parallelism,
		refresher: refresher,
		store:     store,
		cache:     c,
		logger:    logger,
	}
}

// RunOnce refreshes every game: card API, then database, then cache.
// One game failing does not stop the others.
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	if !j.running.TryLock() {
		return Report{}, ErrRunning
	}
	defer j.running.Unlock()

	report := Report{Started: time.Now(), Games: make([]GameResult, len(j.games))}

	var g errgroup.Group
	g.SetLimit(j.limit)
	for i, game := range j.games {
		g.Go(func() error {
			count, err := j.warm(ctx, game)
			report.Games[i] = GameResult{Game: game, Count: count}
			if err != nil {
				report.Games[i].Error = err.Error()
				j.logger.Warn("warm-up failed", "game", game, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.Started)
	j.logger.Info("warm-up finished", "games", len(j.games), "duration", report.Duration, "failed", report.Failed())
	return report, nil
}

func (j *Job) warm(ctx context.Context, game core.Game) (int, error) {
	records, err := j.refresher.Refresh(ctx, game)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("upstream returned no sets")
	}
	if j.store != nil {
		if err := j.store.Upsert(ctx, game, records); err != nil {
			return 0, fmt.Errorf("upsert: %w", err)
		}
	}
	if j.cache != nil {
		j.cache.Set(ctx, cache.SetsKey(game), records, j.ttl(game))
	}
	return len(records), nil
}

// Start schedules RunOnce with a cron expression or descriptor ("@every 6h").
func (j *Job) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{j.logger})))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Debug("scheduled warm-up skipped", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid warm-up schedule %q: %w", schedule, err)
	}
	j.cron = c
	c.Start()
	j.logger.Info("warm-up scheduled", "schedule", schedule)
	return nil
}

// Stop stops the schedule and waits for a running warm-up to finish or ctx to end.
func (j *Job) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
