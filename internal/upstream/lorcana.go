package upstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"cardtrack/internal/core"
	"cardtrack/internal/pkg/apiclient"
)

const lorcanaBaseURL = "https://api.lorcana-api.com"

// LorcanaSource reads Disney Lorcana sets from lorcana-api.com (/sets/all).
type LorcanaSource struct {
	client *apiclient.Client
}

// NewLorcanaSource creates the Lorcana API source.
func NewLorcanaSource(opts SourceOptions) Source {
	return &LorcanaSource{client: newClient("lorcana-api", lorcanaBaseURL, opts, nil)}
}

// Game implements Source.
func (s *LorcanaSource) Game() core.Game { return core.GameLorcana }

// FetchSets returns every released set.
func (s *LorcanaSource) FetchSets(ctx context.Context) ([]core.SetRecord, error) {
	body, err := s.client.Get(ctx, "/sets/all", nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return nil, fmt.Errorf("lorcana-api: expected a JSON array")
	}

	var records []core.SetRecord
	gjson.ParseBytes(body).ForEach(func(_, set gjson.Result) bool {
		id := set.Get("Set_ID").String()
		if id == "" {
			id = strconv.FormatInt(set.Get("Set_Num").Int(), 10)
		}
		records = append(records, core.SetRecord{
			ID:          id,
			Name:        set.Get("Name").String(),
			Code:        set.Get("Set_ID").String(),
			Series:      "Set " + set.Get("Set_Num").String(),
			ReleaseDate: core.NormalizeDate(set.Get("Release_Date").String()),
			TotalCards:  int(set.Get("Cards").Int()),
		})
		return true
	})
	return stamp(core.GameLorcana, records, time.Now()), nil
}
