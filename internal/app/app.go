// Package app provides the main application struct for centralized dependency management.
// It wires together the cache, set database, card API sources, sessions and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cardtrack/config"
	"cardtrack/internal/cache"
	"cardtrack/internal/core"
	"cardtrack/internal/frame"
	"cardtrack/internal/httpclient"
	"cardtrack/internal/loader"
	"cardtrack/internal/navigation"
	"cardtrack/internal/server"
	"cardtrack/internal/session"
	"cardtrack/internal/sets"
	"cardtrack/internal/storage"
	"cardtrack/internal/upstream"
	"cardtrack/internal/warmup"
)

// App represents the main application with all its dependencies.
type App struct {
	config *config.Config
	logger *slog.Logger

	cache      *cache.Cache
	sets       *sets.Result
	fetcher    *upstream.Fetcher
	ticker     *frame.Ticker
	sessions   *session.Manager
	navigation *navigation.Tracker
	warmup     *warmup.Job
	server     *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig contains the loaded application configuration.
	AppConfig *config.LoadResult
	// HTTPClient is used for the card APIs. Nil builds one from the upstream settings.
	HTTPClient *http.Client
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a new App with all dependencies initialized.
// Components created before a failing step are closed before returning.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil || cfg.AppConfig.Config == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig.Config
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bodyLimit, err := config.ParseBodySizeLimit(appCfg.Server.BodySizeLimit)
	if err != nil {
		return nil, err
	}

	app := &App{
		config: appCfg,
		logger: logger,
	}

	store, err := cache.NewStore(appCfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.cache = cache.New(store, cache.WithLogger(logger))

	setsResult, err := sets.New(ctx, appCfg.Storage)
	if err != nil {
		if closeErr := app.cache.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize set storage: %w (also: cache close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize set storage: %w", err)
	}
	app.sets = setsResult

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.New(httpclient.WithTimeout(appCfg.Upstream.Timeout))
	}
	sources, err := upstream.NewSources(appCfg, httpClient)
	if err != nil {
		closeErr := errors.Join(app.sets.Close(), app.cache.Close())
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize card sources: %w (also: close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize card sources: %w", err)
	}
	apiTTL := time.Duration(appCfg.Cache.APITTLMinutes) * time.Minute
	app.fetcher = upstream.NewFetcher(sources, app.cache, apiTTL, logger)

	app.ticker = frame.NewTicker(frame.DefaultInterval)

	app.sessions = session.NewManager(app.newLoader,
		session.WithIdleTimeout(appCfg.Sessions.IdleTimeout),
		session.WithLogger(logger),
	)
	app.sessions.StartReaper(0)

	scrollTTL := time.Duration(appCfg.Cache.ScrollTTLMinutes) * time.Minute
	app.navigation = navigation.NewTracker(app.cache, app.ticker,
		navigation.WithTTL(scrollTTL),
		navigation.WithLogger(logger),
	)

	app.warmup = warmup.New(warmup.Config{
		Games: appCfg.EnabledGames(),
		TTL:   func(g core.Game) time.Duration { return appCfg.Game(g).CacheTTL() },
	}, app.fetcher, app.sets.Store, app.cache, logger)
	if appCfg.Warmup.Enabled {
		if err := app.warmup.Start(appCfg.Warmup.Schedule); err != nil {
			_ = app.closeComponents()
			return nil, fmt.Errorf("failed to schedule warm-up: %w", err)
		}
	}

	app.logStartupInfo(cfg.AppConfig.Path)

	app.server = server.New(server.Deps{
		Sessions:   app.sessions,
		Navigation: app.navigation,
		Sets:       app.sets.Store,
		Cache:      app.cache,
		Warmup:     app.warmup,
		Games:      appCfg.EnabledGames(),
		Logger:     logger,
	}, &server.Config{
		MasterKey:       appCfg.Server.MasterKey,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   bodyLimit,
	})

	return app, nil
}

// newLoader builds the loader a session uses for one game.
func (a *App) newLoader(game core.Game) *loader.Loader {
	return loader.New(game, loader.OptionsFromConfig(a.config.Game(game)), loader.Deps{
		Fetcher:   a.fetcher,
		Cache:     a.cache,
		Querier:   a.sets.Store,
		Scheduler: a.ticker,
		Logger:    a.logger,
	})
}

// Handler returns the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	return a.server
}

// Warmup returns the warm-up job.
func (a *App) Warmup() *warmup.Job {
	return a.warmup
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	a.logger.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			a.logger.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown, honoring the passed context timeout/cancellation.
// 2. Warm-up scheduler stop (waits for a running warm-up).
// 3. Sessions shutdown (cancels in-flight loads).
// 4. Frame ticker stop (flushes pending load-more commits).
// 5. Set store close.
// 6. Cache close.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	a.logger.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.warmup != nil {
		if err := a.warmup.Stop(ctx); err != nil {
			a.logger.Error("warm-up stop error", "error", err)
			errs = append(errs, fmt.Errorf("warmup stop: %w", err))
		}
	}

	if err := a.closeComponents(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// closeComponents stops sessions and the frame ticker, then closes the set store and cache.
func (a *App) closeComponents() error {
	var errs []error
	if a.sessions != nil {
		a.sessions.Shutdown()
	}
	if a.ticker != nil {
		a.ticker.Stop()
	}
	if a.sets != nil {
		if err := a.sets.Close(); err != nil {
			a.logger.Error("set store close error", "error", err)
			errs = append(errs, fmt.Errorf("sets close: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo(configPath string) {
	cfg := a.config

	if configPath != "" {
		a.logger.Info("configuration loaded", "path", configPath)
	}

	if cfg.Server.MasterKey == "" {
		a.logger.Warn("CARDTRACK_MASTER_KEY not set - admin API is unauthenticated",
			"recommendation", "set CARDTRACK_MASTER_KEY to protect /admin/v1")
	} else {
		a.logger.Info("admin authentication enabled", "mode", "master_key")
	}

	if cfg.Metrics.Enabled {
		a.logger.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		a.logger.Info("prometheus metrics disabled")
	}

	a.logger.Info("cache configured", "type", cfg.Cache.Type)
	a.logger.Info("storage configured", "type", cfg.Storage.Type, "target", storage.Describe(cfg.Storage))
	a.logger.Info("games enabled", "games", cfg.EnabledGames())

	if cfg.Warmup.Enabled {
		a.logger.Info("warm-up enabled", "schedule", cfg.Warmup.Schedule)
	} else {
		a.logger.Info("warm-up disabled")
	}
}
