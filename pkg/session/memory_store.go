package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the pair in process memory. Useful for tests and for
// short-lived processes that never restore a session.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (Pair, error) {
	if err := ctx.Err(); err != nil {
		return Pair{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pair.Validate() != nil {
		return Pair{}, ErrNoSession
	}
	return s.pair, nil
}

func (s *MemoryStore) Put(ctx context.Context, p Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.pair = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.pair = Pair{}
	s.mu.Unlock()
	return nil
}
