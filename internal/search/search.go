// Package search ranks set records by how well their names match a query.
package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"cardtrack/internal/core"
)

// Match is one ranked result. Lower Distance is better; an exact set code
// match has Distance -1.
type Match struct {
	Record   core.SetRecord `json:"record"`
	Distance int            `json:"distance"`
}

// Rank returns the records whose name fuzzily contains query, best first.
// Matching ignores case and diacritics ("pokemon" finds "Pokémon").
// Records with equal distance keep their input order. limit <= 0 means no limit.
func Rank(query string, records []core.SetRecord, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || len(records) == 0 {
		return nil
	}

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(query, names)
	best := make(map[int]int, len(ranks))
	for _, r := range ranks {
		best[r.OriginalIndex] = r.Distance
	}
	for i, r := range records {
		if r.Code != "" && strings.EqualFold(r.Code, query) {
			best[i] = -1
		}
	}

	matches := make([]Match, 0, len(best))
	order := make([]int, 0, len(best))
	for idx := range best {
		order = append(order, idx)
	}
	sort.Slice(order, func(a, b int) bool {
		da, db := best[order[a]], best[order[b]]
		if da != db {
			return da < db
		}
		return order[a] < order[b]
	})
	for _, idx := range order {
		matches = append(matches, Match{Record: records[idx], Distance: best[idx]})
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
