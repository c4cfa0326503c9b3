// Package navigation saves and restores scroll positions across page
// navigations using the client cache.
package navigation

import (
	"context"
	"log/slog"
	"time"

	"cardtrack/internal/cache"
	"cardtrack/internal/frame"
)

// DefaultTTL bounds how long a saved position survives.
const DefaultTTL = time.Hour

// Viewport is the scrollable surface being restored.
type Viewport interface {
	ScrollTo(offset int)
}

// ViewportFunc adapts a function to Viewport.
type ViewportFunc func(offset int)

// ScrollTo implements Viewport.
func (f ViewportFunc) ScrollTo(offset int) { f(offset) }

// Position is a saved scroll offset.
type Position struct {
	Offset  int   `json:"offset"`
	SavedAt int64 `json:"saved_at"`
}

// Tracker writes a path's scroll offset when it is left and restores it when
// the path is entered again.
type Tracker struct {
	cache     *cache.Cache
	scheduler frame.Scheduler
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTTL sets the lifetime of saved positions.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithClock overrides the clock used for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker creates a Tracker. A nil scheduler restores immediately.
func NewTracker(c *cache.Cache, scheduler frame.Scheduler, opts ...Option) *Tracker {
	if scheduler == nil {
		scheduler = frame.Immediate{}
	}
	t := &Tracker{
		cache:     c,
		scheduler: scheduler,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Leave records the offset of path.
func (t *Tracker) Leave(ctx context.Context, path string, offset int) {
	if offset < 0 {
		offset = 0
	}
	t.cache.Set(ctx, cache.ScrollKey(path), Position{Offset: offset, SavedAt: t.now().UnixMilli()}, t.ttl)
}

// Lookup returns the saved position of path, if any.
func (t *Tracker) Lookup(ctx context.Context, path string) (Position, bool) {
	return cache.Get[Position](ctx, t.cache, cache.ScrollKey(path))
}

// Enter schedules the viewport to scroll to the saved offset of path on the
// next frame, or to the top when nothing was saved. It returns the position
// that will be applied and whether it came from the cache.
func (t *Tracker) Enter(ctx context.Context, path string, vp Viewport) (Position, bool) {
	pos, ok := t.Lookup(ctx, path)
	if !ok {
		pos = Position{}
	}
	if vp != nil {
		offset := pos.Offset
		t.scheduler.Schedule(func() { vp.ScrollTo(offset) })
	}
	t.logger.Debug("navigation enter", "path", path, "offset", pos.Offset, "restored", ok)
	return pos, ok
}
