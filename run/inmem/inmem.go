// Package inmem provides an in-memory run.Store for testing and local
// development: run metadata lives in a map, keyed by RunID, with no
// persistence across process restarts. Grounded on the teacher's
// runtime/agent/run/inmem.Store, narrowed to the context-free Store
// interface this module's run package declares.
package inmem

import (
	"sync"
	"time"

	"github.com/agentgraph-go/graphrt/run"
)

// Store implements run.Store in memory. All operations are serialized by a
// mutex; records are defensively copied on read and write so a caller can't
// mutate stored state through a shared Labels map.
type Store struct {
	mu      sync.Mutex
	records map[string]run.Record
}

// New constructs an empty Store.
func New() *Store {
	return &Store{records: make(map[string]run.Record)}
}

// Upsert creates or updates the record for r.RunID. An existing StartedAt is
// preserved when r.StartedAt is zero; StartedAt and UpdatedAt both default
// to the current time when unset, per the run.Store contract.
func (s *Store) Upsert(r run.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[r.RunID]
	if r.StartedAt.IsZero() {
		if ok {
			r.StartedAt = existing.StartedAt
		} else {
			r.StartedAt = time.Now()
		}
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	s.records[r.RunID] = r.Clone()
	return nil
}

// Load returns the record for runID, or the zero Record with ok == false if
// no record has been upserted for it yet.
func (s *Store) Load(runID string) (run.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[runID]
	if !ok {
		return run.Record{}, false
	}
	return r.Clone(), true
}

// Reset clears every stored record. Not part of run.Store; useful for test
// isolation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]run.Record)
}

var _ run.Store = (*Store)(nil)
