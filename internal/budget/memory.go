package budget

import (
	"context"
	"sync"
)

// MemoryStore keeps budget state in process memory
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Load(_ context.Context, account string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[account], nil
}

func (s *MemoryStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Account] = state
	return nil
}

var _ Store = (*MemoryStore)(nil)
