package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"

	"cardtrack/internal/cache"
	"cardtrack/internal/core"
	"cardtrack/internal/loader"
	"cardtrack/internal/navigation"
	"cardtrack/internal/search"
	"cardtrack/internal/session"
	"cardtrack/internal/sets"
	"cardtrack/internal/version"
	"cardtrack/internal/warmup"
)

// WarmupRunner triggers an immediate warm-up.
type WarmupRunner interface {
	RunOnce(ctx context.Context) (warmup.Report, error)
}

// Deps are the services behind the handlers. Warmup may be nil.
type Deps struct {
	Sessions   *session.Manager
	Navigation *navigation.Tracker
	Sets       sets.Store
	Cache      *cache.Cache
	Warmup     WarmupRunner
	Games      []core.Game
	Logger     *slog.Logger
}

// Handler holds the HTTP handlers
type Handler struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(deps.Games) == 0 {
		deps.Games = core.Games()
	}
	return &Handler{deps: deps, logger: logger}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	id := h.deps.Sessions.Create()
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// DeleteSession handles DELETE /v1/sessions/:id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.deps.Sessions.Close(c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSets handles GET /v1/sessions/:id/sets/:game
// With ?wait=true the response is held until the first load finished.
func (h *Handler) GetSets(c echo.Context) error {
	l, err := h.loader(c)
	if err != nil {
		return handleError(c, err)
	}

	var st loader.State
	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		st = l.Load(c.Request().Context())
	} else {
		st = l.State()
	}
	return writeWithETag(c, http.StatusOK, newSetsResponse(st))
}

// LoadMore handles POST /v1/sessions/:id/sets/:game/more
// 202 means the next chunk was scheduled, 200 that the request was ignored.
func (h *Handler) LoadMore(c echo.Context) error {
	l, err := h.loader(c)
	if err != nil {
		return handleError(c, err)
	}

	status := http.StatusOK
	if l.LoadMore() {
		status = http.StatusAccepted
	}
	return c.JSON(status, newSetsResponse(l.State()))
}

// SearchSets handles GET /v1/sessions/:id/sets/:game/search?q=
// The whole loaded collection is searched, not only the visible chunk.
func (h *Handler) SearchSets(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return handleError(c, core.NewInvalidRequestError("query parameter q is required", nil))
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return handleError(c, core.NewInvalidRequestError("invalid limit: "+v, err))
		}
		limit = n
	}

	l, err := h.loader(c)
	if err != nil {
		return handleError(c, err)
	}
	l.Load(c.Request().Context())

	matches := search.Rank(query, l.All(), limit)
	if matches == nil {
		matches = []search.Match{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"query":   query,
		"matches": matches,
	})
}

type scrollRequest struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
}

// SaveScroll handles PUT /v1/navigation/scroll
func (h *Handler) SaveScroll(c echo.Context) error {
	var req scrollRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Path == "" {
		return handleError(c, core.NewInvalidRequestError("path is required", nil))
	}
	h.deps.Navigation.Leave(c.Request().Context(), req.Path, req.Offset)
	return c.NoContent(http.StatusNoContent)
}

// RestoreScroll handles GET /v1/navigation/scroll?path=
func (h *Handler) RestoreScroll(c echo.Context) error {
	p := c.QueryParam("path")
	if p == "" {
		return handleError(c, core.NewInvalidRequestError("query parameter path is required", nil))
	}
	pos, restored := h.deps.Navigation.Enter(c.Request().Context(), p, nil)
	return c.JSON(http.StatusOK, map[string]any{
		"path":     p,
		"offset":   pos.Offset,
		"restored": restored,
	})
}

// UpsertSets handles PUT /admin/v1/sets/:game
// The cached collection is dropped so the next loader sees the new rows.
func (h *Handler) UpsertSets(c echo.Context) error {
	game, err := h.game(c)
	if err != nil {
		return handleError(c, err)
	}
	var records []core.SetRecord
	if err := (&echo.DefaultBinder{}).BindBody(c, &records); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if len(records) == 0 {
		return handleError(c, core.NewInvalidRequestError("at least one set is required", nil))
	}

	ctx := c.Request().Context()
	if err := h.deps.Sets.Upsert(ctx, game, records); err != nil {
		return handleError(c, err)
	}
	h.invalidate(ctx, game)
	return c.JSON(http.StatusOK, map[string]any{"game": game, "count": len(records)})
}

// DeleteSet handles DELETE /admin/v1/sets/:game/:id
func (h *Handler) DeleteSet(c echo.Context) error {
	game, err := h.game(c)
	if err != nil {
		return handleError(c, err)
	}
	ctx := c.Request().Context()
	if err := h.deps.Sets.Delete(ctx, game, c.Param("id")); err != nil {
		return handleError(c, err)
	}
	h.invalidate(ctx, game)
	return c.NoContent(http.StatusNoContent)
}

// InvalidateCache handles DELETE /admin/v1/cache/:game
func (h *Handler) InvalidateCache(c echo.Context) error {
	game, err := h.game(c)
	if err != nil {
		return handleError(c, err)
	}
	h.invalidate(c.Request().Context(), game)
	return c.NoContent(http.StatusNoContent)
}

// RunWarmup handles POST /admin/v1/warmup
func (h *Handler) RunWarmup(c echo.Context) error {
	if h.deps.Warmup == nil {
		return handleError(c, core.NewUnavailableError("warm-up is not configured", nil))
	}
	report, err := h.deps.Warmup.RunOnce(c.Request().Context())
	if errors.Is(err, warmup.ErrRunning) {
		return c.JSON(http.StatusConflict, map[string]any{
			"error": map[string]any{
				"type":    "conflict_error",
				"message": err.Error(),
			},
		})
	}
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) invalidate(ctx context.Context, game core.Game) {
	if h.deps.Cache == nil {
		return
	}
	for _, key := range []cache.Key{cache.SetsKey(game), cache.UpcomingSetsKey(game), cache.APIKey(game)} {
		if err := h.deps.Cache.Delete(ctx, key); err != nil {
			h.logger.Warn("cache invalidation failed", "key", key.String(), "error", err)
		}
	}
}

func (h *Handler) game(c echo.Context) (core.Game, error) {
	game, err := core.ParseGame(c.Param("game"))
	if err != nil {
		return "", core.NewNotFoundError(err.Error())
	}
	if !slices.Contains(h.deps.Games, game) {
		return "", core.NewNotFoundError(game.DisplayName() + " is not enabled")
	}
	return game, nil
}

func (h *Handler) loader(c echo.Context) (*loader.Loader, error) {
	game, err := h.game(c)
	if err != nil {
		return nil, err
	}
	return h.deps.Sessions.Loader(c.Param("id"), game)
}

// handleError converts errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var apiErr *core.Error
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, session.ErrNotFound), errors.Is(err, sets.ErrNotFound):
		apiErr = core.NewNotFoundError(err.Error())
	case errors.Is(err, sets.ErrInvalidQuery), errors.Is(err, sets.ErrInvalidRecord):
		apiErr = core.NewInvalidRequestError(err.Error(), err)
	default:
		slog.Error("unexpected error", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": map[string]any{
				"type":    "internal_error",
				"message": "an unexpected error occurred",
			},
		})
	}
	return c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON())
}
