package sets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"cardtrack/internal/core"
)

func TestCollectionQuery(t *testing.T) {
	q := CollectionQuery(core.GameYugioh, false, "")
	assert.Equal(t, "yugioh_sets", q.Table)
	assert.Equal(t, Order{Column: "tcg_date", Desc: true}, q.Order)
	assert.Empty(t, q.Filters)

	q = CollectionQuery(core.GamePokemon, true, "2024-01-01")
	assert.Equal(t, []Filter{{Column: "release_date", Op: OpGte, Value: "2024-01-01"}}, q.Filters)
	assert.False(t, q.Order.Desc)
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		valid bool
	}{
		{"collection", CollectionQuery(core.GameMTG, false, ""), true},
		{"unknown table", Query{Table: "sqlite_master"}, false},
		{"unknown filter column", Query{Table: "mtg_sets", Filters: []Filter{{Column: "password", Op: OpEq}}}, false},
		{"sort-only column in filter", Query{Table: "mtg_sets", Filters: []Filter{{Column: "total_cards", Op: OpEq}}}, false},
		{"unknown operator", Query{Table: "mtg_sets", Filters: []Filter{{Column: "name", Op: "like"}}}, false},
		{"unknown order column", Query{Table: "mtg_sets", Order: Order{Column: "1=1"}}, false},
		{"negative limit", Query{Table: "mtg_sets", Limit: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.query.Validate()
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidQuery)
			}
		})
	}
}

func TestBuildSelect(t *testing.T) {
	q := Query{
		Table: "pokemon_sets",
		Filters: []Filter{
			{Column: "release_date", Op: OpGte, Value: "2023-01-01"},
			{Column: "series", Op: OpEq, Value: "Scarlet & Violet"},
		},
		Order: Order{Column: "release_date", Desc: true},
		Limit: 10,
	}

	stmt, args := buildSelect(q, func(n int) string { return fmt.Sprintf("$%d", n) })
	assert.Equal(t,
		"SELECT "+selectColumns+" FROM pokemon_sets WHERE release_date >= $1 AND series = $2 ORDER BY release_date DESC, id DESC LIMIT $3",
		stmt)
	assert.Equal(t, []any{"2023-01-01", "Scarlet & Violet", 10}, args)

	stmt, args = buildSelect(Query{Table: "mtg_sets"}, func(int) string { return "?" })
	assert.Equal(t, "SELECT "+selectColumns+" FROM mtg_sets ORDER BY id ASC", stmt)
	assert.Empty(t, args)
}

func TestMongoFilter(t *testing.T) {
	f := mongoFilter([]Filter{
		{Column: "id", Op: OpEq, Value: "sv1"},
		{Column: "release_date", Op: OpGte, Value: "2023-01-01"},
		{Column: "release_date", Op: OpLte, Value: "2023-12-31"},
	})
	assert.Equal(t, "sv1", f["_id"])
	assert.Equal(t, "2023-01-01", f["release_date"].(bson.M)["$gte"])
	assert.Equal(t, "2023-12-31", f["release_date"].(bson.M)["$lte"])
}
