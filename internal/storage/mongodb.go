package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"cardtrack/config"
)

// DefaultMongoDatabase is used when storage.mongodb.database is empty.
const DefaultMongoDatabase = "cardtrack"

type mongoStorage struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB connects to cfg.URL and selects cfg.Database.
func NewMongoDB(ctx context.Context, cfg config.MongoDBConfig) (Storage, error) {
	if cfg.URL == "" {
		return nil, errors.New("storage.mongodb.url is required")
	}
	name := cfg.Database
	if name == "" {
		name = DefaultMongoDatabase
	}

	opts := options.Client().
		ApplyURI(cfg.URL).
		SetAppName("cardtrack").
		SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb %s: %w", redact(cfg.URL), err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb %s: %w", redact(cfg.URL), err)
	}

	return &mongoStorage{client: client, database: client.Database(name)}, nil
}

func (s *mongoStorage) Type() string                   { return TypeMongoDB }
func (s *mongoStorage) SQLiteDB() *sql.DB              { return nil }
func (s *mongoStorage) PostgreSQLPool() *pgxpool.Pool  { return nil }
func (s *mongoStorage) MongoDatabase() *mongo.Database { return s.database }

func (s *mongoStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *mongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
