// Package session keeps the per-visitor loaders. A session plays the part of
// a mounted page: it owns one loader per game and discards them when it ends.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardtrack/internal/core"
	"cardtrack/internal/loader"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// DefaultIdleTimeout is how long an unused session is kept.
const DefaultIdleTimeout = 30 * time.Minute

// LoaderFactory creates the loader for a game.
type LoaderFactory func(game core.Game) *loader.Loader

type session struct {
	id       string
	created  time.Time
	lastSeen time.Time
	loaders  map[core.Game]*loader.Loader
}

// Info describes a live session.
type Info struct {
	ID       string      `json:"id"`
	Created  time.Time   `json:"created"`
	LastSeen time.Time   `json:"last_seen"`
	Games    []core.Game `json:"games"`
}

// Manager is a registry of sessions.
type Manager struct {
	newLoader   LoaderFactory
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTimeout sets how long an untouched session lives.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager.
func NewManager(newLoader LoaderFactory, opts ...Option) *Manager {
	m := &Manager{
		newLoader:   newLoader,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		logger:      slog.Default(),
		sessions:    make(map[string]*session),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a session and returns its id.
func (m *Manager) Create() string {
	id := uuid.NewString()
	now := m.now()

	m.mu.Lock()
	m.sessions[id] = &session{
		id:       id,
		created:  now,
		lastSeen: now,
		loaders:  make(map[core.Game]*loader.Loader),
	}
	m.mu.Unlock()

	m.logger.Debug("session created", "session", id)
	return id
}

// Loader returns the session's loader for game, creating it on first use.
// A new loader starts loading in the background immediately.
func (m *Manager) Loader(id string, game core.Game) (*loader.Loader, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	s.lastSeen = m.now()
	l, ok := s.loaders[game]
	if !ok {
		l = m.newLoader(game)
		s.loaders[game] = l
	}
	m.mu.Unlock()

	if !ok {
		go l.Load(context.Background())
	}
	return l, nil
}

// Touch marks a session as used.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.lastSeen = m.now()
	return nil
}

// Info describes a session.
func (m *Manager) Info(id string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	info := Info{ID: s.id, Created: s.created, LastSeen: s.lastSeen}
	for _, g := range core.Games() {
		if _, ok := s.loaders[g]; ok {
			info.Games = append(info.Games, g)
		}
	}
	return info, nil
}

// Close ends a session and closes its loaders.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	closeLoaders(s)
	m.logger.Debug("session closed", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap closes sessions idle for longer than the idle timeout and returns
// how many were closed.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		closeLoaders(s)
	}
	if len(expired) > 0 {
		m.logger.Info("reaped idle sessions", "count", len(expired))
	}
	return len(expired)
}

// StartReaper runs Reap periodically until Shutdown.
func (m *Manager) StartReaper(interval time.Duration) {
	if interval <= 0 {
		interval = m.idleTimeout / 2
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Reap()
			case <-m.stop:
				return
			}
		}
	}()
}

// Shutdown stops the reaper and closes every session.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range all {
		closeLoaders(s)
	}
}

func closeLoaders(s *session) {
	for _, l := range s.loaders {
		l.Close()
	}
}
