// Package upstream fetches set lists from the public card database APIs and
// exposes them as the first acquisition tier of the set loader.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"cardtrack/config"
	"cardtrack/internal/core"
	"cardtrack/internal/pkg/apiclient"
	"cardtrack/internal/version"
)

// Source fetches the complete set list of one game from its card API.
type Source interface {
	Game() core.Game
	FetchSets(ctx context.Context) ([]core.SetRecord, error)
}

// SourceOptions carries the settings shared by every source builder.
type SourceOptions struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	HTTPClient *http.Client
}

// Builder creates a Source from options.
type Builder func(opts SourceOptions) Source

// Registration ties a game to its source builder.
type Registration struct {
	Game core.Game
	New  Builder
}

var registry = make(map[core.Game]Builder)

// Register adds a source builder for a game.
func Register(r Registration) {
	registry[r.Game] = r.New
}

func init() {
	Register(Registration{Game: core.GamePokemon, New: NewPokemonSource})
	Register(Registration{Game: core.GameMTG, New: NewScryfallSource})
	Register(Registration{Game: core.GameYugioh, New: NewYGOProDeckSource})
	Register(Registration{Game: core.GameLorcana, New: NewLorcanaSource})
}

// NewSources builds a Source for every enabled game in cfg.
func NewSources(cfg *config.Config, httpClient *http.Client) (map[core.Game]Source, error) {
	sources := make(map[core.Game]Source)
	for _, game := range cfg.EnabledGames() {
		build, ok := registry[game]
		if !ok {
			return nil, fmt.Errorf("no upstream source registered for %s", game)
		}
		opts := SourceOptions{
			BaseURL:    cfg.Game(game).UpstreamURL,
			MaxRetries: cfg.Upstream.MaxRetries,
			HTTPClient: httpClient,
		}
		if game == core.GamePokemon {
			opts.APIKey = cfg.Upstream.PokemonAPIKey
		}
		sources[game] = build(opts)
	}
	return sources, nil
}

// Registered lists the games with a registered source, sorted.
func Registered() []core.Game {
	games := make([]core.Game, 0, len(registry))
	for g := range registry {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i] < games[j] })
	return games
}

func newClient(source string, defaultBaseURL string, opts SourceOptions, headers apiclient.HeaderSetter) *apiclient.Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cfg := apiclient.DefaultConfig(source, baseURL)
	if opts.MaxRetries > 0 {
		cfg.MaxRetries = opts.MaxRetries
	}
	userAgent := "cardtrack/" + version.Version
	setHeaders := func(req *http.Request) {
		req.Header.Set("User-Agent", userAgent)
		if headers != nil {
			headers(req)
		}
	}
	if opts.HTTPClient != nil {
		return apiclient.NewWithHTTPClient(opts.HTTPClient, cfg, setHeaders)
	}
	return apiclient.New(cfg, setHeaders)
}

// stamp fills the fields every source sets the same way.
func stamp(game core.Game, records []core.SetRecord, now time.Time) []core.SetRecord {
	ts := now.Unix()
	for i := range records {
		records[i].Game = game
		records[i].UpdatedAt = ts
	}
	return records
}
