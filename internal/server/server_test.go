package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cardtrack/internal/cache"
	"cardtrack/internal/core"
	"cardtrack/internal/frame"
	"cardtrack/internal/loader"
	"cardtrack/internal/navigation"
	"cardtrack/internal/session"
	"cardtrack/internal/sets"
	"cardtrack/internal/warmup"
)

type stubFetcher struct {
	records map[core.Game][]core.SetRecord
}

func (f stubFetcher) FetchSets(_ context.Context, game core.Game) ([]core.SetRecord, error) {
	return f.records[game], nil
}

type stubWarmup struct {
	report warmup.Report
	err    error
}

func (w stubWarmup) RunOnce(context.Context) (warmup.Report, error) {
	return w.report, w.err
}

type testEnv struct {
	srv      *Server
	sessions *session.Manager
	store    *sets.MemoryStore
	cache    *cache.Cache
	frames   *frame.Queued
}

func pokemonSets(n int) []core.SetRecord {
	records := make([]core.SetRecord, n)
	for i := range records {
		records[i] = core.SetRecord{
			ID:          "sv" + strings.Repeat("x", i+1),
			Game:        core.GamePokemon,
			Name:        "Set " + strings.Repeat("x", i+1),
			ReleaseDate: "2023-03-31",
		}
	}
	records[0].Name = "Obsidian Flames"
	return records
}

func newTestEnv(t *testing.T, cfg *Config, deps ...func(*Deps)) *testEnv {
	t.Helper()
	frames := frame.NewQueued()
	c := cache.New(cache.NewMemoryStore(0))
	store := sets.NewMemoryStore()
	fetcher := stubFetcher{records: map[core.Game][]core.SetRecord{
		core.GamePokemon: pokemonSets(30),
		core.GameMTG:     {{ID: "mom", Game: core.GameMTG, Name: "March of the Machine", ReleaseDate: "2023-04-21"}},
	}}

	sessions := session.NewManager(func(game core.Game) *loader.Loader {
		return loader.New(game, loader.DefaultOptions(game), loader.Deps{
			Fetcher:   fetcher,
			Cache:     c,
			Querier:   store,
			Scheduler: frames,
		})
	})
	t.Cleanup(sessions.Shutdown)

	d := Deps{
		Sessions:   sessions,
		Navigation: navigation.NewTracker(c, nil),
		Sets:       store,
		Cache:      c,
		Games:      []core.Game{core.GamePokemon, core.GameMTG, core.GameYugioh},
	}
	for _, fn := range deps {
		fn(&d)
	}
	return &testEnv{
		srv:      New(d, cfg),
		sessions: sessions,
		store:    store,
		cache:    c,
		frames:   frames,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	return resp["id"]
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
