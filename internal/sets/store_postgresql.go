package sets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardtrack/internal/core"
)

// PostgreSQLStore stores set records in PostgreSQL, one table per game.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the set tables and indexes if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	for _, g := range core.Games() {
		_, err := pool.Exec(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				series TEXT NOT NULL DEFAULT '',
				code TEXT NOT NULL DEFAULT '',
				release_date TEXT NOT NULL DEFAULT '',
				tcg_date TEXT NOT NULL DEFAULT '',
				total_cards INTEGER NOT NULL DEFAULT 0,
				image_url TEXT NOT NULL DEFAULT '',
				updated_at BIGINT NOT NULL
			)
		`, g.Table()))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s table: %w", g.Table(), err)
		}

		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s DESC)", g.Table(), g.DateField(), g.Table(), g.DateField())
		if _, err := pool.Exec(ctx, index); err != nil {
			return nil, fmt.Errorf("failed to create %s date index: %w", g.Table(), err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// Query runs q against the game's table.
func (s *PostgreSQLStore) Query(ctx context.Context, q Query) ([]core.SetRecord, error) {
	game, err := q.Validate()
	if err != nil {
		return nil, err
	}

	stmt, args := buildSelect(q, func(n int) string { return fmt.Sprintf("$%d", n) })
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	items := make([]core.SetRecord, 0)
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan set row: %w", err)
		}
		r.Game = game
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate set rows: %w", err)
	}
	return items, nil
}

// Get returns a set by id.
func (s *PostgreSQLStore) Get(ctx context.Context, game core.Game, id string) (*core.SetRecord, error) {
	if !game.Valid() {
		return nil, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM "+game.Table()+" WHERE id = $1", id)
	r, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query set: %w", err)
	}
	r.Game = game
	return &r, nil
}

// Upsert inserts or replaces records in one round trip.
func (s *PostgreSQLStore) Upsert(ctx context.Context, game core.Game, records []core.SetRecord) error {
	prepared, err := prepareRecords(game, records)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, name, series, code, release_date, tcg_date, total_cards, image_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			series = EXCLUDED.series,
			code = EXCLUDED.code,
			release_date = EXCLUDED.release_date,
			tcg_date = EXCLUDED.tcg_date,
			total_cards = EXCLUDED.total_cards,
			image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at
	`, game.Table())

	batch := &pgx.Batch{}
	for _, r := range prepared {
		batch.Queue(stmt, r.ID, r.Name, r.Series, r.Code, r.ReleaseDate, r.TCGDate, r.TotalCards, r.ImageURL, r.UpdatedAt)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert sets: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Delete removes a set by id.
func (s *PostgreSQLStore) Delete(ctx context.Context, game core.Game, id string) error {
	if !game.Valid() {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM "+game.Table()+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; the shared storage owns the pool.
func (s *PostgreSQLStore) Close() error {
	return nil
}
