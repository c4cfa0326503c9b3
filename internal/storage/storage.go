// Package storage opens the database connection behind the set tables.
// One connection is opened per process and shared by every store built on it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"cardtrack/config"
)

// Backend names accepted in storage.type
const (
	TypeMemory     = "memory"
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// connectTimeout bounds the initial ping of a networked backend.
const connectTimeout = 10 * time.Second

// Storage is an open database connection. Exactly one of the driver
// accessors returns a non-nil handle, matching Type.
// Implementations must be safe for concurrent use.
type Storage interface {
	Type() string

	// SQLiteDB is the database/sql handle of a sqlite connection.
	SQLiteDB() *sql.DB
	// PostgreSQLPool is the pgx pool of a postgresql connection.
	PostgreSQLPool() *pgxpool.Pool
	// MongoDatabase is the database of a mongodb connection.
	MongoDatabase() *mongo.Database

	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend named by cfg.Type.
// The memory backend holds no connection and is rejected; callers build
// in-memory stores directly.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case TypeSQLite:
		return NewSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return NewMongoDB(ctx, cfg.MongoDB)
	case TypeMemory:
		return nil, fmt.Errorf("storage type %q has no connection", cfg.Type)
	default:
		return nil, fmt.Errorf("unknown storage type %q (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}

// Describe names the database cfg points at, with credentials removed, for logs.
func Describe(cfg config.StorageConfig) string {
	switch cfg.Type {
	case TypeSQLite:
		return cfg.SQLite.Path
	case TypePostgreSQL:
		return redact(cfg.PostgreSQL.URL)
	case TypeMongoDB:
		return redact(cfg.MongoDB.URL) + " database=" + cfg.MongoDB.Database
	default:
		return cfg.Type
	}
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid-url"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	u.RawQuery = ""
	return u.Redacted()
}
