package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"cardtrack/internal/core"
	"cardtrack/internal/pkg/apiclient"
)

const scryfallBaseURL = "https://api.scryfall.com"

// ScryfallSource reads Magic: The Gathering sets from Scryfall (/sets).
type ScryfallSource struct {
	client *apiclient.Client
}

// NewScryfallSource creates the Scryfall source.
func NewScryfallSource(opts SourceOptions) Source {
	return &ScryfallSource{client: newClient("scryfall", scryfallBaseURL, opts, nil)}
}

// Game implements Source.
func (s *ScryfallSource) Game() core.Game { return core.GameMTG }

// FetchSets returns every set Scryfall lists. Digital-only sets are skipped.
func (s *ScryfallSource) FetchSets(ctx context.Context) ([]core.SetRecord, error) {
	body, err := s.client.Get(ctx, "/sets", nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("scryfall: invalid JSON")
	}

	var records []core.SetRecord
	gjson.GetBytes(body, "data").ForEach(func(_, set gjson.Result) bool {
		if set.Get("digital").Bool() {
			return true
		}
		code := set.Get("code").String()
		records = append(records, core.SetRecord{
			ID:          code,
			Name:        set.Get("name").String(),
			Series:      set.Get("set_type").String(),
			Code:        strings.ToUpper(code),
			ReleaseDate: core.NormalizeDate(set.Get("released_at").String()),
			TotalCards:  int(set.Get("card_count").Int()),
			ImageURL:    set.Get("icon_svg_uri").String(),
		})
		return true
	})
	return stamp(core.GameMTG, records, time.Now()), nil
}
