package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"cardtrack/internal/core"
	"cardtrack/internal/pkg/apiclient"
)

const (
	pokemonBaseURL  = "https://api.pokemontcg.io"
	pokemonPageSize = 250
	// pokemonMaxPages stops a misbehaving totalCount from paging forever.
	pokemonMaxPages = 20
)

// PokemonSource reads sets from the Pokémon TCG API (/v2/sets).
type PokemonSource struct {
	client *apiclient.Client
	apiKey string
}

// NewPokemonSource creates the Pokémon TCG API source.
func NewPokemonSource(opts SourceOptions) Source {
	s := &PokemonSource{apiKey: opts.APIKey}
	s.client = newClient("pokemontcg", pokemonBaseURL, opts, s.setHeaders)
	return s
}

func (s *PokemonSource) setHeaders(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}
}

// Game implements Source.
func (s *PokemonSource) Game() core.Game { return core.GamePokemon }

// FetchSets walks every page of /v2/sets.
func (s *PokemonSource) FetchSets(ctx context.Context) ([]core.SetRecord, error) {
	var records []core.SetRecord
	for page := 1; page <= pokemonMaxPages; page++ {
		body, err := s.client.Get(ctx, "/v2/sets", url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(pokemonPageSize)},
			"orderBy":  {"-releaseDate"},
		})
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("pokemontcg: invalid JSON on page %d", page)
		}

		data := gjson.GetBytes(body, "data")
		data.ForEach(func(_, set gjson.Result) bool {
			records = append(records, core.SetRecord{
				ID:          set.Get("id").String(),
				Name:        set.Get("name").String(),
				Series:      set.Get("series").String(),
				Code:        set.Get("ptcgoCode").String(),
				ReleaseDate: core.NormalizeDate(set.Get("releaseDate").String()),
				TotalCards:  int(set.Get("total").Int()),
				ImageURL:    set.Get("images.logo").String(),
			})
			return true
		})

		total := gjson.GetBytes(body, "totalCount").Int()
		if len(data.Array()) == 0 || int64(len(records)) >= total {
			break
		}
	}
	return stamp(core.GamePokemon, records, time.Now()), nil
}
