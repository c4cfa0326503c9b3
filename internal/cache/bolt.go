package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// boltOpenTimeout bounds the wait for the file lock held by another process.
const boltOpenTimeout = time.Second

// BoltStore persists envelopes in a single bbolt bucket. Entries read or
// written are also kept in memory, so repeated reads skip the disk. Every
// disk access that changes the in-memory copy holds mu.
type BoltStore struct {
	db *bolt.DB

	mu  sync.RWMutex
	hot map[string][]byte
}

// NewBoltStore opens or creates the database at path, creating parent directories.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bolt bucket: %w", err)
	}
	return &BoltStore{db: db, hot: make(map[string][]byte)}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	data, ok := s.hot[key]
	s.mu.RUnlock()
	if ok {
		return data, true, nil
	}

	// The disk read and the promotion happen under the write lock so a
	// concurrent Set or Delete cannot be overtaken by a stale value.
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.hot[key]; ok {
		return data, true, nil
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		// Values returned by bbolt are only valid inside the transaction.
		if v := tx.Bucket(bucketEntries).Get([]byte(key)); v != nil {
			data = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt read %q: %w", key, err)
	}
	if data == nil {
		return nil, false, nil
	}
	s.hot[key] = data
	return data, true, nil
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte) error {
	data := bytes.Clone(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("bolt write %q: %w", key, err)
	}
	s.hot[key] = data
	return nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hot, key)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(key))
	}); err != nil {
		return fmt.Errorf("bolt delete %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
