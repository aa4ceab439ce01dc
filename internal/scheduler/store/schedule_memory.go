package store

import (
	"context"
	"sync"

	"juriscalc/internal/scheduler"
	"juriscalc/pkg/platform/sentinel"
)

// InMemoryScheduleStore keeps schedule entries in process memory.
type InMemoryScheduleStore struct {
	mu      sync.RWMutex
	entries map[scheduler.DataType]scheduler.Entry
}

func NewInMemoryScheduleStore() *InMemoryScheduleStore {
	return &InMemoryScheduleStore{entries: make(map[scheduler.DataType]scheduler.Entry)}
}

func (s *InMemoryScheduleStore) List(_ context.Context) ([]scheduler.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scheduler.Entry, 0, len(s.entries))
	for _, dataType := range scheduler.AllDataTypes {
		if entry, ok := s.entries[dataType]; ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *InMemoryScheduleStore) Get(_ context.Context, dataType scheduler.DataType) (*scheduler.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[dataType]; ok {
		return &entry, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryScheduleStore) Put(_ context.Context, entry scheduler.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.DataType] = entry
	return nil
}
