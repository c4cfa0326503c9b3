package sets

import (
	"context"
	"errors"
	"fmt"

	"cardtrack/config"
	"cardtrack/internal/storage"
)

// Result pairs a Store with the connection it owns, if any.
type Result struct {
	Store   Store
	Storage storage.Storage // nil when the connection is shared or not needed
}

// Close closes the store and then its owned connection.
func (r *Result) Close() error {
	var storeErr, connErr error
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			storeErr = fmt.Errorf("store close: %w", err)
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			connErr = fmt.Errorf("storage close: %w", err)
		}
	}
	return errors.Join(storeErr, connErr)
}

// New opens the set database described by cfg. The memory type needs no
// connection. Other types open one that the Result owns.
func New(ctx context.Context, cfg config.StorageConfig) (*Result, error) {
	if cfg.Type == storage.TypeMemory {
		return &Result{Store: NewMemoryStore()}, nil
	}

	conn, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Type, err)
	}
	res, err := Wrap(ctx, conn)
	if err != nil {
		return nil, errors.Join(err, conn.Close())
	}
	res.Storage = conn
	return res, nil
}

// Wrap builds a Store on a connection owned by the caller.
// Closing the Result leaves the connection open.
func Wrap(ctx context.Context, conn storage.Storage) (*Result, error) {
	if conn == nil {
		return nil, errors.New("sets: storage connection is required")
	}

	var (
		store Store
		err   error
	)
	switch kind := conn.Type(); kind {
	case storage.TypeSQLite:
		store, err = NewSQLiteStore(conn.SQLiteDB())
	case storage.TypePostgreSQL:
		if pool := conn.PostgreSQLPool(); pool != nil {
			store, err = NewPostgreSQLStore(ctx, pool)
		} else {
			err = errors.New("postgresql connection has no pool")
		}
	case storage.TypeMongoDB:
		if db := conn.MongoDatabase(); db != nil {
			store, err = NewMongoDBStore(db)
		} else {
			err = errors.New("mongodb connection has no database")
		}
	default:
		err = fmt.Errorf("unsupported storage type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("sets: %w", err)
	}
	return &Result{Store: store}, nil
}
