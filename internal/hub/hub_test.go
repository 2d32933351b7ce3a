package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChecker struct {
	members map[string]map[string]bool // conversationID -> userID -> member
	err     error
}

func (f *fakeChecker) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.members[conversationID][userID], nil
}

func newTestHub(members map[string]map[string]bool) *Hub {
	return New(&fakeChecker{members: members}, zap.NewNop().Sugar())
}

func drain(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	default:
		t.Fatal("expected a delivered event")
		return Envelope{}
	}
}

func TestJoinConversationMembershipChecked(t *testing.T) {
	h := newTestHub(map[string]map[string]bool{
		"c1": {"u1": true, "u2": true},
	})
	member := NewClient("conn-1", "u1", 4)
	outsider := NewClient("conn-2", "u9", 4)
	h.AddClient(member)
	h.AddClient(outsider)

	h.JoinConversation(context.Background(), member, "c1")
	h.JoinConversation(context.Background(), outsider, "c1")

	assert.True(t, h.InRoom(member, "c1"))
	assert.False(t, h.InRoom(outsider, "c1"), "outsider join must silently no-op")
	assert.Equal(t, 1, h.RoomSize("c1"))
}

func TestJoinConversationLookupFailureIsNoOp(t *testing.T) {
	h := New(&fakeChecker{err: errors.New("db down")}, zap.NewNop().Sugar())
	c := NewClient("conn-1", "u1", 4)
	h.AddClient(c)
	h.JoinConversation(context.Background(), c, "c1")
	assert.False(t, h.InRoom(c, "c1"))
}

func TestToConversationReachesJoinedClientsOnly(t *testing.T) {
	h := newTestHub(map[string]map[string]bool{
		"c1": {"u1": true, "u2": true},
	})
	a := NewClient("conn-1", "u1", 4)
	b := NewClient("conn-2", "u2", 4)
	h.AddClient(a)
	h.AddClient(b)
	h.JoinConversation(context.Background(), a, "c1")

	h.ToConversation("c1", "new-message", map[string]any{"id": "m1"})

	env := drain(t, a)
	assert.Equal(t, "new-message", env.Type)
	select {
	case <-b.Send:
		t.Fatal("client that never joined must not receive room traffic")
	default:
	}
}

func TestToUserReachesEveryConnectionOfUser(t *testing.T) {
	h := newTestHub(nil)
	tab1 := NewClient("conn-1", "u1", 4)
	tab2 := NewClient("conn-2", "u1", 4)
	other := NewClient("conn-3", "u2", 4)
	h.AddClient(tab1)
	h.AddClient(tab2)
	h.AddClient(other)

	h.ToUser("u1", "conversation-updated", map[string]any{"id": "c1"})

	assert.Equal(t, "conversation-updated", drain(t, tab1).Type)
	assert.Equal(t, "conversation-updated", drain(t, tab2).Type)
	select {
	case <-other.Send:
		t.Fatal("unrelated user must not receive the event")
	default:
	}
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := newTestHub(nil)
	c := NewClient("conn-1", "u1", 1)
	h.AddClient(c)

	h.ToUser("u1", "e1", nil)
	h.ToUser("u1", "e2", nil) // buffer full, must not block

	assert.Equal(t, "e1", drain(t, c).Type)
	select {
	case <-c.Send:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestRemoveClientCleansRooms(t *testing.T) {
	h := newTestHub(map[string]map[string]bool{
		"c1": {"u1": true},
		"c2": {"u1": true},
	})
	c := NewClient("conn-1", "u1", 4)
	h.AddClient(c)
	h.JoinConversation(context.Background(), c, "c1")
	h.JoinConversation(context.Background(), c, "c2")
	require.Equal(t, 1, h.RoomSize("c1"))

	h.RemoveClient(c)

	assert.Equal(t, 0, h.RoomSize("c1"))
	assert.Equal(t, 0, h.RoomSize("c2"))
	h.ToUser("u1", "e1", nil)
	select {
	case <-c.Send:
		t.Fatal("removed client must not receive user-channel traffic")
	default:
	}
}

func TestLeaveConversation(t *testing.T) {
	h := newTestHub(map[string]map[string]bool{
		"c1": {"u1": true},
	})
	c := NewClient("conn-1", "u1", 4)
	h.AddClient(c)
	h.JoinConversation(context.Background(), c, "c1")
	h.LeaveConversation(c, "c1")
	assert.False(t, h.InRoom(c, "c1"))
	assert.Equal(t, 0, h.RoomSize("c1"))
}
