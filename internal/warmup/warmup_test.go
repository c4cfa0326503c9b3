package warmup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtrack/internal/cache"
	"cardtrack/internal/core"
	"cardtrack/internal/sets"
)

type fakeRefresher struct {
	mu      sync.Mutex
	records map[core.Game][]core.SetRecord
	errs    map[core.Game]error
	started chan struct{}
	block   chan struct{}
}

func (f *fakeRefresher) Refresh(_ context.Context, game core.Game) ([]core.SetRecord, error) {
	if f.block != nil {
		close(f.started)
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[game], f.errs[game]
}

func TestJob_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := sets.NewMemoryStore()
	c := cache.New(cache.NewMemoryStore(0))
	refresher := &fakeRefresher{
		records: map[core.Game][]core.SetRecord{
			core.GamePokemon: {{ID: "sv1", Name: "Scarlet & Violet", ReleaseDate: "2023-03-31"}},
			core.GameMTG:     {{ID: "mom", Name: "March of the Machine", ReleaseDate: "2023-04-21"}},
		},
		errs: map[core.Game]error{core.GameYugioh: errors.New("rate limited")},
	}

	job := New(Config{Games: []core.Game{core.GamePokemon, core.GameMTG, core.GameYugioh, core.GameLorcana}}, refresher, store, c, nil)
	report, err := job.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Games, 4)
	assert.True(t, report.Failed())

	assert.Equal(t, GameResult{Game: core.GamePokemon, Count: 1}, report.Games[0])
	assert.Equal(t, GameResult{Game: core.GameMTG, Count: 1}, report.Games[1])
	assert.Equal(t, "rate limited", report.Games[2].Error)
	assert.NotEmpty(t, report.Games[3].Error, "empty upstream result is a failure")

	rec, err := store.Get(ctx, core.GamePokemon, "sv1")
	require.NoError(t, err)
	assert.Equal(t, "Scarlet & Violet", rec.Name)

	cached, ok := cache.Get[[]core.SetRecord](ctx, c, cache.SetsKey(core.GameMTG))
	require.True(t, ok)
	assert.Equal(t, "mom", cached[0].ID)

	_, ok = cache.Get[[]core.SetRecord](ctx, c, cache.SetsKey(core.GameYugioh))
	assert.False(t, ok)
}

func TestJob_RunOnceRejectsOverlap(t *testing.T) {
	refresher := &fakeRefresher{
		records: map[core.Game][]core.SetRecord{core.GamePokemon: {{ID: "sv1", Name: "SV"}}},
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	job := New(Config{Games: []core.Game{core.GamePokemon}}, refresher, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = job.RunOnce(context.Background())
	}()

	<-refresher.started
	_, err := job.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunning)

	close(refresher.block)
	<-done
}

func TestJob_Schedule(t *testing.T) {
	refresher := &fakeRefresher{records: map[core.Game][]core.SetRecord{}}
	job := New(Config{}, refresher, nil, nil, nil)

	assert.Error(t, job.Start("not a schedule"))
	require.NoError(t, job.Start("@every 1h"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, job.Stop(ctx))
}

func TestJob_StopWithoutStart(t *testing.T) {
	job := New(Config{}, &fakeRefresher{}, nil, nil, nil)
	assert.NoError(t, job.Stop(context.Background()))
}
