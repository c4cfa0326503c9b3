package core

import (
	"sort"
	"time"
)

// DateLayout is the normalized date format for set release dates.
const DateLayout = "2006-01-02"

// SetRecord is a single set (expansion) of a trading card game.
type SetRecord struct {
	ID          string `json:"id" bson:"_id"`
	Game        Game   `json:"game" bson:"game"`
	Name        string `json:"name" bson:"name"`
	Series      string `json:"series,omitempty" bson:"series,omitempty"`
	Code        string `json:"code,omitempty" bson:"code,omitempty"`
	ReleaseDate string `json:"release_date,omitempty" bson:"release_date,omitempty"`
	TCGDate     string `json:"tcg_date,omitempty" bson:"tcg_date,omitempty"`
	TotalCards  int    `json:"total_cards,omitempty" bson:"total_cards,omitempty"`
	ImageURL    string `json:"image_url,omitempty" bson:"image_url,omitempty"`
	UpdatedAt   int64  `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// SortDate returns the date the record is ordered by for its game.
func (r SetRecord) SortDate() string {
	if r.Game.DateField() == DateFieldTCG && r.TCGDate != "" {
		return r.TCGDate
	}
	return r.ReleaseDate
}

// SortByDateDesc orders records newest first by their game's canonical date.
// Ties are broken by ID so the order is stable across sources.
func SortByDateDesc(records []SetRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := records[i].SortDate(), records[j].SortDate()
		if di == dj {
			return records[i].ID > records[j].ID
		}
		return di > dj
	})
}

// NormalizeDate converts the date formats returned by the card APIs
// ("2023/03/31", "2023-03-31T00:00:00Z", ...) to YYYY-MM-DD.
// Unparseable input is returned unchanged.
func NormalizeDate(s string) string {
	if s == "" {
		return ""
	}
	layouts := []string{
		DateLayout,
		"2006/01/02",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"01/02/2006",
		"January 2, 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	return s
}
