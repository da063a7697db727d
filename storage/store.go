// Package storage implements the typed, concurrency-safe key/value store and
// state manager owned by every agent run (spec component C1). All operations
// acquire a run-local mutex that is held only for the duration of the single
// map access; callers never observe a torn read or write.
package storage

import (
	"sync"

	"github.com/agentgraph-go/graphrt/engineerr"
)

// Store is a run-owned key/value map. Values are stored as `any`; callers
// are responsible for type-asserting on Get/GetValue. Store is safe for
// concurrent use.
type Store struct {
	mu   sync.Mutex
	data map[string]any
}

// New constructs an empty Store.
func New() *Store {
	return &Store{data: make(map[string]any)}
}

// Set stores value under key, overwriting any existing entry.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get returns the value stored under key and whether it was present.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// GetValue returns the value stored under key, failing with a
// KeyNotFoundError if the key is absent. Use this when a missing key
// represents a programming error rather than an expected absence.
func (s *Store) GetValue(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, &engineerr.KeyNotFoundError{Key: key}
	}
	return v, nil
}

// Remove deletes key from the store. Removing an absent key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Snapshot returns a shallow copy of the current storage contents. The
// returned map is safe to range over without holding the store's lock, but
// mutating it does not affect the store.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// PutAll merges entries into the store, overwriting any existing keys.
func (s *Store) PutAll(entries map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.data[k] = v
	}
}

// Clear removes every entry from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any)
}

// Copy returns a new Store holding a deep copy of the current contents,
// suitable for forking a run. Values implementing Cloner are deep-copied via
// Clone(); all other values are copied by reference (the caller is expected
// to treat stored values as owned by a single run and not mutate them after
// sharing across a fork boundary unless they implement Cloner).
func (s *Store) Copy() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		if cl, ok := v.(Cloner); ok {
			out[k] = cl.Clone()
			continue
		}
		out[k] = v
	}
	return &Store{data: out}
}

// Cloner is implemented by values that know how to deep-copy themselves.
// Store.Copy uses it to fork mutable values; values that don't implement it
// are copied by reference, matching the documented fork semantics.
type Cloner interface {
	Clone() any
}
