package store

import (
	"context"
	"sync"

	"juriscalc/internal/scheduler"
)

// InMemoryHistoryStore keeps the run log in process memory.
type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	results []scheduler.UpdateResult
}

func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{}
}

func (s *InMemoryHistoryStore) Append(_ context.Context, result scheduler.UpdateResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *InMemoryHistoryStore) List(_ context.Context, limit int) ([]scheduler.UpdateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.results) {
		limit = len(s.results)
	}
	out := make([]scheduler.UpdateResult, 0, limit)
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.results[i])
	}
	return out, nil
}
