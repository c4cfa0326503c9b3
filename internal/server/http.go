// Package server provides the HTTP API of cardtrack.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardtrack/config"
)

// Server serves the cardtrack HTTP API.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server options. A nil *Config means defaults everywhere.
type Config struct {
	MasterKey       string // protects /admin/v1; empty leaves it open
	MetricsEnabled  bool
	MetricsEndpoint string // defaults to /metrics
	BodySizeLimit   int64  // bytes; defaults to config.DefaultBodySizeLimit
}

// New builds the echo instance with middleware and every route.
func New(deps Deps, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := NewHandler(deps)

	bodyLimit := config.DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodyLimit = cfg.BodySizeLimit
	}
	e.Use(
		requestLogger(h.logger),
		middleware.Recover(),
		middleware.BodyLimit(strconv.FormatInt(bodyLimit, 10)),
	)

	e.GET("/health", h.Health)
	if cfg.MetricsEnabled {
		e.GET(metricsPath(cfg.MetricsEndpoint), echo.WrapHandler(promhttp.Handler()))
	}

	v1 := e.Group("/v1")
	v1.POST("/sessions", h.CreateSession)
	v1.DELETE("/sessions/:id", h.DeleteSession)
	v1.GET("/sessions/:id/sets/:game", h.GetSets)
	v1.POST("/sessions/:id/sets/:game/more", h.LoadMore)
	v1.GET("/sessions/:id/sets/:game/search", h.SearchSets)
	v1.PUT("/navigation/scroll", h.SaveScroll)
	v1.GET("/navigation/scroll", h.RestoreScroll)

	admin := e.Group("/admin/v1", AdminAuth(cfg.MasterKey, h.logger))
	admin.PUT("/sets/:game", h.UpsertSets)
	admin.DELETE("/sets/:game/:id", h.DeleteSet)
	admin.DELETE("/cache/:game", h.InvalidateCache)
	admin.POST("/warmup", h.RunWarmup)

	return &Server{echo: e, handler: h}
}

// metricsPath cleans a configured endpoint so it is always an absolute path.
func metricsPath(endpoint string) string {
	if endpoint == "" {
		return "/metrics"
	}
	return path.Clean("/" + endpoint)
}

// requestLogger logs every request at debug level and server errors at error level.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			logger.Log(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
