// Package main is the entry point for the cardtrack set service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardtrack/config"
	"cardtrack/internal/app"
	"cardtrack/internal/logging"
	"cardtrack/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	warmupFlag := flag.Bool("warmup", false, "Run one warm-up of every enabled game and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Bootstrap logger until the configured one is known
	slog.SetDefault(logging.New(logging.Options{}, os.Stderr))

	result, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := result.Config

	logger := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, os.Stderr)
	slog.SetDefault(logger)

	logger.Info("starting cardtrack",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, app.Config{
		AppConfig: result,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if *warmupFlag {
		os.Exit(runWarmup(ctx, application, logger))
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			logger.Error("application shutdown error", "error", err)
		}
	}()

	if err := application.Start(":" + cfg.Server.Port); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func runWarmup(ctx context.Context, application *app.App, logger *slog.Logger) int {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			logger.Error("application shutdown error", "error", err)
		}
	}()

	report, err := application.Warmup().RunOnce(ctx)
	if err != nil {
		logger.Error("warm-up failed", "error", err)
		return 1
	}
	for _, g := range report.Games {
		if g.Error != "" {
			logger.Error("game warm-up failed", "game", g.Game, "error", g.Error)
			continue
		}
		logger.Info("game warmed", "game", g.Game, "sets", g.Count)
	}
	if report.Failed() {
		return 1
	}
	return 0
}
