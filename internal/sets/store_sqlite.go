package sets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cardtrack/internal/core"
)

// SQLiteStore stores set records in SQLite, one table per game.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the set tables and indexes if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	for _, g := range core.Games() {
		_, err := db.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				series TEXT NOT NULL DEFAULT '',
				code TEXT NOT NULL DEFAULT '',
				release_date TEXT NOT NULL DEFAULT '',
				tcg_date TEXT NOT NULL DEFAULT '',
				total_cards INTEGER NOT NULL DEFAULT 0,
				image_url TEXT NOT NULL DEFAULT '',
				updated_at INTEGER NOT NULL
			)
		`, g.Table()))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s table: %w", g.Table(), err)
		}

		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s DESC)", g.Table(), g.DateField(), g.Table(), g.DateField())
		if _, err := db.Exec(index); err != nil {
			return nil, fmt.Errorf("failed to create %s date index: %w", g.Table(), err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Query runs q against the game's table.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]core.SetRecord, error) {
	game, err := q.Validate()
	if err != nil {
		return nil, err
	}

	stmt, args := buildSelect(q, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, stmt, args...)
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
func (s *SQLiteStore) Get(ctx context.Context, game core.Game, id string) (*core.SetRecord, error) {
	if !game.Valid() {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM "+game.Table()+" WHERE id = ?", id)
	r, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query set: %w", err)
	}
	r.Game = game
	return &r, nil
}

// Upsert inserts or replaces records in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, game core.Game, records []core.SetRecord) error {
	prepared, err := prepareRecords(game, records)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, name, series, code, release_date, tcg_date, total_cards, image_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			series = excluded.series,
			code = excluded.code,
			release_date = excluded.release_date,
			tcg_date = excluded.tcg_date,
			total_cards = excluded.total_cards,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at
	`, game.Table()))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range prepared {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Series, r.Code, r.ReleaseDate, r.TCGDate, r.TotalCards, r.ImageURL, r.UpdatedAt); err != nil {
			return fmt.Errorf("upsert set %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Delete removes a set by id.
func (s *SQLiteStore) Delete(ctx context.Context, game core.Game, id string) error {
	if !game.Valid() {
		return ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+game.Table()+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete set: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete set rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; the shared storage owns the connection.
func (s *SQLiteStore) Close() error {
	return nil
}

func scanRecord(scan func(dest ...any) error) (core.SetRecord, error) {
	var r core.SetRecord
	err := scan(&r.ID, &r.Name, &r.Series, &r.Code, &r.ReleaseDate, &r.TCGDate, &r.TotalCards, &r.ImageURL, &r.UpdatedAt)
	return r, err
}
