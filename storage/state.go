package storage

import (
	"fmt"
	"sync"
)

// StateManager offers a mutually exclusive critical section over a
// caller-supplied update function, layered on top of Store. Unlike Store's
// per-operation locking, StateManager.Update holds the lock for the entire
// duration of the callback so callers can perform a read-modify-write
// sequence atomically. Reentrant calls to Update from within an in-progress
// Update on the same manager are rejected rather than deadlocking.
type StateManager struct {
	store *Store
	busy  sync.Mutex
}

// NewStateManager wraps store in a StateManager. If store is nil, a fresh
// empty Store is created.
func NewStateManager(store *Store) *StateManager {
	if store == nil {
		store = New()
	}
	return &StateManager{store: store}
}

// Store returns the underlying Store for direct single-operation access.
func (m *StateManager) Store() *Store { return m.store }

// Update runs block while holding the manager's critical section, giving
// block exclusive access to the underlying store for the duration of the
// call. Returns an error if block is already running on this manager
// (reentrant Update calls are rejected, not deadlocked) or if block itself
// returns an error.
func (m *StateManager) Update(block func(s *Store) error) error {
	if !m.busy.TryLock() {
		return fmt.Errorf("state manager: reentrant update rejected")
	}
	defer m.busy.Unlock()
	return block(m.store)
}
