package sets

import (
	"context"
	"slices"
	"sync"

	"cardtrack/internal/core"
)

// MemoryStore keeps set records in process memory.
// Data survives across requests but not process restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[core.Game]map[string]core.SetRecord
}

// NewMemoryStore creates an empty in-memory set store.
func NewMemoryStore() *MemoryStore {
	tables := make(map[core.Game]map[string]core.SetRecord, len(core.Games()))
	for _, g := range core.Games() {
		tables[g] = make(map[string]core.SetRecord)
	}
	return &MemoryStore{tables: tables}
}

// Query filters and sorts the in-memory table.
func (s *MemoryStore) Query(_ context.Context, q Query) ([]core.SetRecord, error) {
	game, err := q.Validate()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	items := make([]core.SetRecord, 0, len(s.tables[game]))
	for _, r := range s.tables[game] {
		if matches(r, q.Filters) {
			items = append(items, r)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(items, func(a, b core.SetRecord) int {
		return compareRecords(a, b, q.Order)
	})
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

// Get retrieves one set by id.
func (s *MemoryStore) Get(_ context.Context, game core.Game, id string) (*core.SetRecord, error) {
	s.mu.RLock()
	r, ok := s.tables[game][id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// Upsert stores records, replacing existing ids.
func (s *MemoryStore) Upsert(_ context.Context, game core.Game, records []core.SetRecord) error {
	prepared, err := prepareRecords(game, records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range prepared {
		s.tables[game][r.ID] = r
	}
	return nil
}

// Delete removes one set.
func (s *MemoryStore) Delete(_ context.Context, game core.Game, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[game][id]; !ok {
		return ErrNotFound
	}
	delete(s.tables[game], id)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
