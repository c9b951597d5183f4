package storage

import (
	"context"
	"sync"

	"snakedqn/internal/nn"
)

type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]nn.Params
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string]nn.Params)}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.models == nil {
		s.models = make(map[string]nn.Params)
	}
	return nil
}

func (s *MemoryStore) SaveParams(_ context.Context, key string, p nn.Params) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[key] = p.Clone()
	return nil
}

func (s *MemoryStore) LoadParams(_ context.Context, key string) (nn.Params, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.models[key]
	if !ok {
		return nn.Params{}, false, nil
	}
	return p.Clone(), true, nil
}
