package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"cardtrack/internal/core"
	"cardtrack/internal/pkg/apiclient"
)

const ygoprodeckBaseURL = "https://db.ygoprodeck.com"

// YGOProDeckSource reads Yu-Gi-Oh! sets from YGOPRODeck (/api/v7/cardsets.php).
type YGOProDeckSource struct {
	client *apiclient.Client
}

// NewYGOProDeckSource creates the YGOPRODeck source.
func NewYGOProDeckSource(opts SourceOptions) Source {
	return &YGOProDeckSource{client: newClient("ygoprodeck", ygoprodeckBaseURL, opts, nil)}
}

// Game implements Source.
func (s *YGOProDeckSource) Game() core.Game { return core.GameYugioh }

// FetchSets returns every card set. The endpoint has no OCG date, so the
// TCG date doubles as the release date.
func (s *YGOProDeckSource) FetchSets(ctx context.Context) ([]core.SetRecord, error) {
	body, err := s.client.Get(ctx, "/api/v7/cardsets.php", nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return nil, fmt.Errorf("ygoprodeck: expected a JSON array")
	}

	var records []core.SetRecord
	seen := make(map[string]struct{})
	gjson.ParseBytes(body).ForEach(func(_, set gjson.Result) bool {
		code := set.Get("set_code").String()
		if code == "" {
			return true
		}
		// A handful of codes are listed twice (reprints under the same code).
		if _, dup := seen[code]; dup {
			return true
		}
		seen[code] = struct{}{}
		date := core.NormalizeDate(set.Get("tcg_date").String())
		records = append(records, core.SetRecord{
			ID:          code,
			Name:        set.Get("set_name").String(),
			Code:        code,
			ReleaseDate: date,
			TCGDate:     date,
			TotalCards:  int(set.Get("num_of_cards").Int()),
			ImageURL:    set.Get("set_image").String(),
		})
		return true
	})
	return stamp(core.GameYugioh, records, time.Now()), nil
}
