package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in a map. A positive quota bounds the total
// size of keys and values, mirroring the storage limits of browser storage.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	size  int64
	quota int64
}

// NewMemoryStore creates an in-memory store. quota <= 0 means unlimited.
func NewMemoryStore(quota int64) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		quota: quota,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.size + int64(len(key)+len(value))
	if old, ok := s.data[key]; ok {
		size -= int64(len(key) + len(old))
	}
	if s.quota > 0 && size > s.quota {
		return ErrQuotaExceeded
	}

	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	s.size = size
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.size -= int64(len(key) + len(old))
		delete(s.data, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) Close() error {
	return nil
}
