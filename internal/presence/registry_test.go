package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySingleSessionPerUser(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		r.Register("u1", fmt.Sprintf("conn-%d", i))
	}
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "conn-9", snap["u1"].ConnectionID)
}

func TestRegistryRefresh(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	assert.False(t, r.Refresh("u1"), "refresh without an entry is a no-op")

	r.Register("u1", "c1")
	now = base.Add(30 * time.Second)
	require.True(t, r.Refresh("u1"))

	s, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, base.Add(30*time.Second), s.LastLivenessAt)
	assert.Equal(t, "c1", s.ConnectionID, "refresh must not touch the connection id")
}

func TestRegistryEvict(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")
	assert.True(t, r.Evict("u1"))
	assert.False(t, r.Evict("u1"), "second evict reports nothing to remove")
	_, ok := r.Lookup("u1")
	assert.False(t, ok)
}

func TestRegistryEvictConnectionGuard(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "old")
	// reconnect replaces the session before the old handler tears down
	r.Register("u1", "new")

	assert.False(t, r.EvictConnection("u1", "old"), "stale handler must not evict the fresh session")
	s, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "new", s.ConnectionID)

	assert.True(t, r.EvictConnection("u1", "new"))
	_, ok = r.Lookup("u1")
	assert.False(t, ok)
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")
	snap := r.Snapshot()
	delete(snap, "u1")
	_, ok := r.Lookup("u1")
	assert.True(t, ok, "mutating the snapshot must not touch the registry")
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%5)
			r.Register(user, fmt.Sprintf("c%d", i))
			r.Refresh(user)
			r.Snapshot()
			r.Lookup(user)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, len(r.Snapshot()), 5)
}
