package storage_test

import (
	"sync"
	"testing"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGetRemove(t *testing.T) {
	s := storage.New()
	s.Set("a", 1)
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	s.Remove("a")
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestStoreGetValueNotFound(t *testing.T) {
	s := storage.New()
	_, err := s.GetValue("missing")
	require.Error(t, err)
	var notFound *engineerr.KeyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Key)
}

func TestStoreSnapshotIsolated(t *testing.T) {
	s := storage.New()
	s.Set("a", 1)
	snap := s.Snapshot()
	snap["a"] = 2
	v, _ := s.Get("a")
	assert.Equal(t, 1, v, "mutating the snapshot must not affect the store")
}

func TestStorePutAllClear(t *testing.T) {
	s := storage.New()
	s.PutAll(map[string]any{"a": 1, "b": 2})
	assert.Len(t, s.Snapshot(), 2)
	s.Clear()
	assert.Len(t, s.Snapshot(), 0)
}

type cloneable struct{ n int }

func (c *cloneable) Clone() any { return &cloneable{n: c.n} }

func TestStoreCopyDeepCopiesCloner(t *testing.T) {
	s := storage.New()
	orig := &cloneable{n: 1}
	s.Set("c", orig)

	forked := s.Copy()
	v, _ := forked.Get("c")
	copied := v.(*cloneable)
	copied.n = 99

	v2, _ := s.Get("c")
	assert.Equal(t, 1, v2.(*cloneable).n, "forked copy must not alias the original")
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := storage.New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set("k", i)
			s.Get("k")
		}(i)
	}
	wg.Wait()
}

func TestStateManagerUpdateAtomic(t *testing.T) {
	sm := storage.NewStateManager(nil)
	err := sm.Update(func(s *storage.Store) error {
		s.Set("count", 1)
		return nil
	})
	require.NoError(t, err)
	v, _ := sm.Store().Get("count")
	assert.Equal(t, 1, v)
}

func TestStateManagerRejectsReentrancy(t *testing.T) {
	sm := storage.NewStateManager(nil)
	err := sm.Update(func(s *storage.Store) error {
		return sm.Update(func(*storage.Store) error { return nil })
	})
	require.Error(t, err)
}
