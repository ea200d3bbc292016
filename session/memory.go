package session

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory single-slot store. The state is copied on
// save and load so callers cannot mutate stored data. Useful for tests
// and embedders that manage persistence elsewhere.
type MemoryStore struct {
	mu    sync.RWMutex
	state *State
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored session, or ok=false when empty.
func (m *MemoryStore) Load(_ context.Context) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, false
	}
	return m.state.Clone(), true
}

// Save stores a copy of the session.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("session: state is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.Clone()
	return nil
}

// Clear empties the store. Idempotent.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
