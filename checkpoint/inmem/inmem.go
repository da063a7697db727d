// Package inmem implements an in-memory checkpoint.Provider, grounded on the
// teacher's run store pattern: a mutex-guarded map with defensive copies on
// read and write so callers can never observe or corrupt another caller's
// slice.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentgraph-go/graphrt/checkpoint"
)

// Store is an in-memory checkpoint.Provider. Versions are strictly
// increasing per agent; the latest checkpoint is the highest version, and
// there is none while that highest version is a tombstone.
type Store struct {
	mu          sync.RWMutex
	byAgent     map[string][]checkpoint.Checkpoint
	nextVersion map[string]int
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		byAgent:     make(map[string][]checkpoint.Checkpoint),
		nextVersion: make(map[string]int),
	}
}

var _ checkpoint.Provider = (*Store)(nil)

// GetCheckpoints returns every live (non-tombstone) checkpoint for agentID,
// ordered by increasing version.
func (s *Store) GetCheckpoints(_ context.Context, agentID string) ([]checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.byAgent[agentID]
	out := make([]checkpoint.Checkpoint, 0, len(all))
	for _, c := range all {
		if !c.IsTombstone() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetLatestCheckpoint returns the highest-version checkpoint for agentID, if
// any. When that entry is a tombstone (DeleteCheckpoints ran after the last
// save), nothing is found.
func (s *Store) GetLatestCheckpoint(_ context.Context, agentID string) (checkpoint.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest checkpoint.Checkpoint
	found := false
	for _, c := range s.byAgent[agentID] {
		if !found || c.Version > latest.Version {
			latest = c
			found = true
		}
	}
	if !found || latest.IsTombstone() {
		return checkpoint.Checkpoint{}, false, nil
	}
	return latest, true, nil
}

// SaveCheckpoint appends c, assigning a version strictly greater than every
// previously saved version for c.AgentID if c.Version is unset (zero).
func (s *Store) SaveCheckpoint(_ context.Context, c checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Version == 0 {
		s.nextVersion[c.AgentID]++
		c.Version = s.nextVersion[c.AgentID]
	} else if c.Version > s.nextVersion[c.AgentID] {
		s.nextVersion[c.AgentID] = c.Version
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.byAgent[c.AgentID] = append(s.byAgent[c.AgentID], c)
	return nil
}

// DeleteCheckpoints appends a tombstone for agentID rather than erasing
// history, so version numbering never has gaps that could be reused.
func (s *Store) DeleteCheckpoints(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextVersion[agentID]++
	tomb := checkpoint.Tombstone(agentID, s.nextVersion[agentID], time.Now())
	s.byAgent[agentID] = append(s.byAgent[agentID], tomb)
	return nil
}

// Reset clears all stored checkpoints. Useful for tests.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAgent = make(map[string][]checkpoint.Checkpoint)
	s.nextVersion = make(map[string]int)
}
