package vault

import (
	"context"
	"sync"
)

// MemoryStore keeps identities in memory.
type MemoryStore struct {
	mu        sync.Mutex
	materials *Materials
	Saves     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadIdentity(ctx context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.materials == nil {
		return nil, false, nil
	}
	return s.materials.AgeIdentity, true, nil
}

func (s *MemoryStore) Initialized(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materials != nil, nil
}

func (s *MemoryStore) Save(ctx context.Context, m *Materials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.materials = &cp
	s.Saves++
	return nil
}

// Materials returns what was last saved.
func (s *MemoryStore) Materials() *Materials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materials
}
