package sets

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"cardtrack/internal/core"
)

// ErrInvalidQuery indicates a query naming an unknown table, column or operator.
var ErrInvalidQuery = errors.New("invalid query")

// Op is a filter comparison.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
)

// Filter restricts a query to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  string
}

// Order sorts query results. Rows with equal Column values are ordered by id
// in the same direction.
type Order struct {
	Column string
	Desc   bool
}

// Query is the generic "table, filters, order" request against the set tables.
type Query struct {
	Table   string
	Filters []Filter
	Order   Order
	// Limit caps the number of rows. 0 means no limit.
	Limit int
}

// Columns that may appear in filters. total_cards and updated_at are sortable only.
var (
	filterColumns = []string{"id", "name", "series", "code", core.DateFieldRelease, core.DateFieldTCG}
	orderColumns  = append(slices.Clone(filterColumns), "total_cards", "updated_at")
)

// CollectionQuery builds the query the loader uses for a game's collection:
// newest first by the game's date field, or, when upcoming is set, only
// sets dated today or later in ascending order.
func CollectionQuery(game core.Game, upcoming bool, today string) Query {
	field := game.DateField()
	if upcoming {
		return Query{
			Table:   game.Table(),
			Filters: []Filter{{Column: field, Op: OpGte, Value: today}},
			Order:   Order{Column: field},
		}
	}
	return Query{
		Table: game.Table(),
		Order: Order{Column: field, Desc: true},
	}
}

// Validate checks every identifier against the known schema and returns
// the game owning q.Table.
func (q Query) Validate() (core.Game, error) {
	var game core.Game
	for _, g := range core.Games() {
		if g.Table() == q.Table {
			game = g
		}
	}
	if game == "" {
		return "", fmt.Errorf("%w: unknown table %q", ErrInvalidQuery, q.Table)
	}
	for _, f := range q.Filters {
		if !slices.Contains(filterColumns, f.Column) {
			return "", fmt.Errorf("%w: unknown filter column %q", ErrInvalidQuery, f.Column)
		}
		switch f.Op {
		case OpEq, OpGte, OpLte:
		default:
			return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, f.Op)
		}
	}
	if q.Order.Column != "" && !slices.Contains(orderColumns, q.Order.Column) {
		return "", fmt.Errorf("%w: unknown order column %q", ErrInvalidQuery, q.Order.Column)
	}
	if q.Limit < 0 {
		return "", fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return game, nil
}

func (op Op) sql() string {
	switch op {
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	default:
		return "="
	}
}

// buildSelect renders q as SQL. placeholder returns the bind marker for the
// n-th (1-based) argument. q must have been validated.
func buildSelect(q Query, placeholder func(n int) string) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(q.Filters)+1)

	b.WriteString("SELECT ")
	b.WriteString(selectColumns)
	b.WriteString(" FROM ")
	b.WriteString(q.Table)

	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s %s %s", f.Column, f.Op.sql(), placeholder(len(args)))
	}

	dir := "ASC"
	if q.Order.Desc {
		dir = "DESC"
	}
	if q.Order.Column != "" && q.Order.Column != "id" {
		fmt.Fprintf(&b, " ORDER BY %s %s, id %s", q.Order.Column, dir, dir)
	} else {
		fmt.Fprintf(&b, " ORDER BY id %s", dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT %s", placeholder(len(args)))
	}
	return b.String(), args
}

const selectColumns = "id, name, series, code, release_date, tcg_date, total_cards, image_url, updated_at"

// fieldValue returns the string form of a filterable or sortable column.
func fieldValue(r core.SetRecord, column string) string {
	switch column {
	case "id":
		return r.ID
	case "name":
		return r.Name
	case "series":
		return r.Series
	case "code":
		return r.Code
	case core.DateFieldRelease:
		return r.ReleaseDate
	case core.DateFieldTCG:
		return r.TCGDate
	case "total_cards":
		return strconv.Itoa(r.TotalCards)
	case "updated_at":
		return strconv.FormatInt(r.UpdatedAt, 10)
	}
	return ""
}

func matches(r core.SetRecord, filters []Filter) bool {
	for _, f := range filters {
		v := fieldValue(r, f.Column)
		switch f.Op {
		case OpEq:
			if v != f.Value {
				return false
			}
		case OpGte:
			if v < f.Value {
				return false
			}
		case OpLte:
			if v > f.Value {
				return false
			}
		}
	}
	return true
}

// compareRecords orders a before b (negative), after (positive) or equal (zero) under o.
func compareRecords(a, b core.SetRecord, o Order) int {
	c := 0
	switch o.Column {
	case "", "id":
	case "total_cards":
		c = cmp.Compare(a.TotalCards, b.TotalCards)
	case "updated_at":
		c = cmp.Compare(a.UpdatedAt, b.UpdatedAt)
	default:
		c = strings.Compare(fieldValue(a, o.Column), fieldValue(b, o.Column))
	}
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if o.Desc {
		return -c
	}
	return c
}
