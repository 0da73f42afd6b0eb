package jobstatus

import (
	"context"
	"sync"
)

// MemoryStore keeps records in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Status
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Status)}
}

func (m *MemoryStore) Put(ctx context.Context, s Status) error {
	if s.JobID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[s.JobID] = s
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, s Status) (bool, error) {
	if s.JobID == "" {
		return false, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[s.JobID]; ok {
		return false, nil
	}
	m.records[s.JobID] = s
	return true, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.records[id]
	if !ok {
		return Status{}, ErrNotFound
	}
	return s, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
