package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store using a single local JSON file holding the whole keyspace.
// This is suitable for single-instance deployments.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]string
}

// NewFileStore opens the file store at filePath, loading any existing entries.
// An unreadable or corrupt file starts an empty keyspace rather than failing.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("cache file path is required")
	}
	s := &FileStore{
		filePath: filePath,
		data:     make(map[string]string),
	}

	raw, err := os.ReadFile(filePath)
	switch {
	case os.IsNotExist(err):
		// No cache file yet, not an error
	case err != nil:
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			s.data = make(map[string]string)
		}
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[key]
	s.data[key] = string(value)
	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

// flush writes the keyspace to disk. Callers must hold mu.
func (s *FileStore) flush() error {
	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile) // Clean up temp file
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Close is a no-op for the file store; every write is already on disk.
func (s *FileStore) Close() error {
	return nil
}
