package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"cardtrack/config"
)

// DefaultPostgreSQLMaxConns is used when storage.postgresql.max_conns is unset.
const DefaultPostgreSQLMaxConns = 10

type postgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgreSQL opens a pgx pool on cfg.URL and checks it answers.
func NewPostgreSQL(ctx context.Context, cfg config.PostgreSQLConfig) (Storage, error) {
	if cfg.URL == "" {
		return nil, errors.New("storage.postgresql.url is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgresql url: %w", err)
	}
	poolCfg.MaxConns = DefaultPostgreSQLMaxConns
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	// Set reads are bursty: a warm-up or a wave of new sessions, then quiet.
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
	}
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = "cardtrack"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgresql pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgresql %s: %w", redact(cfg.URL), err)
	}
	return &postgresStorage{pool: pool}, nil
}

func (s *postgresStorage) Type() string                   { return TypePostgreSQL }
func (s *postgresStorage) SQLiteDB() *sql.DB              { return nil }
func (s *postgresStorage) PostgreSQLPool() *pgxpool.Pool  { return s.pool }
func (s *postgresStorage) MongoDatabase() *mongo.Database { return nil }

func (s *postgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close waits for acquired connections to be released.
func (s *postgresStorage) Close() error {
	s.pool.Close()
	return nil
}
