// Package sets provides the database tier: one table (or collection) per game
// holding that game's set records, queried through a small generic Query.
package sets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardtrack/internal/core"
)

// ErrNotFound indicates a requested set was not found.
var ErrNotFound = errors.New("set not found")

// ErrInvalidRecord is returned by Upsert for records missing required fields.
var ErrInvalidRecord = errors.New("invalid set record")

// Store defines persistence operations for set records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Query returns the records of q.Table matching q.Filters in q.Order.
	Query(ctx context.Context, q Query) ([]core.SetRecord, error)
	// Get returns one record by id.
	Get(ctx context.Context, game core.Game, id string) (*core.SetRecord, error)
	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, game core.Game, records []core.SetRecord) error
	// Delete removes one record. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, game core.Game, id string) error
	Close() error
}

// prepareRecords validates records for game and fills Game, UpdatedAt and a
// missing TCG date.
func prepareRecords(game core.Game, records []core.SetRecord) ([]core.SetRecord, error) {
	if !game.Valid() {
		return nil, fmt.Errorf("%w: unknown game %q", ErrInvalidQuery, game)
	}
	now := time.Now().Unix()
	out := make([]core.SetRecord, len(records))
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: set at index %d has no id", ErrInvalidRecord, i)
		}
		if r.Name == "" {
			return nil, fmt.Errorf("%w: set %q has no name", ErrInvalidRecord, r.ID)
		}
		r.Game = game
		r.ReleaseDate = core.NormalizeDate(r.ReleaseDate)
		r.TCGDate = core.NormalizeDate(r.TCGDate)
		// The tcg_date column orders and filters games that use it, so it
		// carries the same release_date fallback as SetRecord.SortDate.
		if r.TCGDate == "" && game.DateField() == core.DateFieldTCG {
			r.TCGDate = r.ReleaseDate
		}
		if r.UpdatedAt == 0 {
			r.UpdatedAt = now
		}
		out[i] = r
	}
	return out, nil
}
