package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/models"
)

type fakeUserStore struct {
	mu       sync.Mutex
	statuses map[string]string
	online   []*models.User
	failSet  bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{statuses: make(map[string]string)}
}

func (f *fakeUserStore) SetStatus(_ context.Context, userID, status string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("store down")
	}
	f.statuses[userID] = status
	return nil
}

func (f *fakeUserStore) ListByStatus(_ context.Context, status string) ([]*models.User, error) {
	if status != models.StatusOnline {
		return nil, nil
	}
	return f.online, nil
}

type fakeLister struct {
	convs map[string][]*models.Conversation
}

func (f *fakeLister) ListForUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	return f.convs[userID], nil
}

type recordedEvent struct {
	UserID  string
	Event   string
	Payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEmitter) ToUser(userID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{UserID: userID, Event: event, Payload: payload})
}

func (f *fakeEmitter) forUser(userID string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func twoPartyConvs(userID, peer string) map[string][]*models.Conversation {
	return map[string][]*models.Conversation{
		userID: {{ID: "c1", User1ID: userID, User2ID: peer}},
	}
}

func newTestSweeper(t *testing.T, users *fakeUserStore, emitter *fakeEmitter, convs map[string][]*models.Conversation) (*Sweeper, *Registry) {
	t.Helper()
	reg := NewRegistry()
	b := NewBroadcaster(&fakeLister{convs: convs}, emitter, nil, zap.NewNop().Sugar())
	return NewSweeper(reg, users, b, 120*time.Second, 120*time.Second, zap.NewNop().Sugar()), reg
}

func TestSweeperEvictsStaleSessions(t *testing.T) {
	users := newFakeUserStore()
	emitter := &fakeEmitter{}
	sw, reg := newTestSweeper(t, users, emitter, twoPartyConvs("u1", "u2"))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return base }
	reg.Register("u1", "c1")

	// not yet stale
	sw.now = func() time.Time { return base.Add(60 * time.Second) }
	assert.Equal(t, 0, sw.EvictStale(context.Background()))

	// one missed sweep cycle with no heartbeat
	sw.now = func() time.Time { return base.Add(121 * time.Second) }
	assert.Equal(t, 1, sw.EvictStale(context.Background()))

	_, live := reg.Lookup("u1")
	assert.False(t, live)
	assert.Equal(t, models.StatusOffline, users.statuses["u1"])

	peerEvents := emitter.forUser("u2")
	require.Len(t, peerEvents, 1, "exactly one offline notification per peer per eviction")

	// second sweep has nothing left to notify about
	assert.Equal(t, 0, sw.EvictStale(context.Background()))
	assert.Len(t, emitter.forUser("u2"), 1)
}

func TestSweeperRefreshPreventsEviction(t *testing.T) {
	users := newFakeUserStore()
	emitter := &fakeEmitter{}
	sw, reg := newTestSweeper(t, users, emitter, twoPartyConvs("u1", "u2"))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	reg.now = func() time.Time { return now }
	reg.Register("u1", "c1")

	now = base.Add(100 * time.Second)
	reg.Refresh("u1")

	sw.now = func() time.Time { return base.Add(150 * time.Second) }
	assert.Equal(t, 0, sw.EvictStale(context.Background()))
	_, live := reg.Lookup("u1")
	assert.True(t, live)
}

func TestSweeperPersistFailureDoesNotStopSweep(t *testing.T) {
	users := newFakeUserStore()
	users.failSet = true
	emitter := &fakeEmitter{}
	sw, reg := newTestSweeper(t, users, emitter, twoPartyConvs("u1", "u2"))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return base }
	reg.Register("u1", "c1")
	sw.now = func() time.Time { return base.Add(200 * time.Second) }

	assert.Equal(t, 1, sw.EvictStale(context.Background()))
	// notification still goes out even though persistence failed
	assert.Len(t, emitter.forUser("u2"), 1)
}

func TestReconcileCorrectsStoreDrift(t *testing.T) {
	users := newFakeUserStore()
	users.online = []*models.User{
		{ID: "u1", Status: models.StatusOnline},
		{ID: "u3", Status: models.StatusOnline},
	}
	emitter := &fakeEmitter{}
	convs := map[string][]*models.Conversation{
		"u1": {{ID: "c1", User1ID: "u1", User2ID: "u2"}},
		"u3": {{ID: "c2", User1ID: "u3", User2ID: "u4"}},
	}
	sw, reg := newTestSweeper(t, users, emitter, convs)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return base }
	sw.now = func() time.Time { return base }

	// u1 is genuinely live; u3 is marked ONLINE in storage but has no session
	reg.Register("u1", "c1")

	res := sw.Reconcile(context.Background())
	assert.Equal(t, 0, res.Evicted)
	assert.Equal(t, 1, res.Corrected)
	assert.Equal(t, models.StatusOffline, users.statuses["u3"])
	_, hasU1 := users.statuses["u1"]
	assert.False(t, hasU1, "live user must not be corrected")
	assert.Len(t, emitter.forUser("u4"), 1)
	assert.Empty(t, emitter.forUser("u2"))
}

func TestBroadcasterDedupesPeers(t *testing.T) {
	emitter := &fakeEmitter{}
	convs := map[string][]*models.Conversation{
		"u1": {
			{ID: "c1", User1ID: "u1", User2ID: "u2"},
			{ID: "c2", User1ID: "u2", User2ID: "u1"}, // stray duplicate pair
		},
	}
	b := NewBroadcaster(&fakeLister{convs: convs}, emitter, nil, zap.NewNop().Sugar())
	b.NotifyStatus(context.Background(), "u1", models.StatusOffline, time.Now())
	assert.Len(t, emitter.forUser("u2"), 1)
}
