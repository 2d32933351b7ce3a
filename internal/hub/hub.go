package hub

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/metrics"
)

// Client is one live websocket connection. A user may hold several clients
// (tabs); each joins rooms independently.
type Client struct {
	ID     string
	UserID string
	Send   chan []byte
}

func NewClient(id, userID string, buffer int) *Client {
	return &Client{ID: id, UserID: userID, Send: make(chan []byte, buffer)}
}

// Envelope is the wire shape of every outbound event.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type ParticipantChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// Hub routes conversation-scoped events to exactly the connections that
// should see them: a per-user channel for addressed updates and a room per
// conversation for fan-out. Joining a conversation room is membership-checked
// and silently no-ops for outsiders, leaking nothing beyond the no-op.
type Hub struct {
	mu            sync.RWMutex
	clientsByUser map[string]map[*Client]struct{}
	rooms         map[string]map[*Client]struct{}
	roomsByClient map[*Client]map[string]struct{}

	convs ParticipantChecker
	log   *zap.SugaredLogger
}

func New(convs ParticipantChecker, log *zap.SugaredLogger) *Hub {
	return &Hub{
		clientsByUser: make(map[string]map[*Client]struct{}),
		rooms:         make(map[string]map[*Client]struct{}),
		roomsByClient: make(map[*Client]map[string]struct{}),
		convs:         convs,
		log:           log,
	}
}

// AddClient subscribes the connection to its user channel.
func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clientsByUser[c.UserID]; !ok {
		h.clientsByUser[c.UserID] = make(map[*Client]struct{})
	}
	h.clientsByUser[c.UserID][c] = struct{}{}
}

// RemoveClient drops the connection from its user channel and every room.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clientsByUser[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clientsByUser, c.UserID)
		}
	}
	for convID := range h.roomsByClient[c] {
		h.dropFromRoom(convID, c)
	}
	delete(h.roomsByClient, c)
}

// JoinConversation adds the connection to the conversation's room, but only
// after persistence confirms the caller is one of its two participants.
// Unauthorized or failed lookups are a silent no-op.
func (h *Hub) JoinConversation(ctx context.Context, c *Client, conversationID string) {
	ok, err := h.convs.IsParticipant(ctx, conversationID, c.UserID)
	if err != nil {
		h.log.Warnw("membership check failed", "conversation", conversationID, "err", err)
		return
	}
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][c] = struct{}{}
	if _, ok := h.roomsByClient[c]; !ok {
		h.roomsByClient[c] = make(map[string]struct{})
	}
	h.roomsByClient[c][conversationID] = struct{}{}
}

func (h *Hub) LeaveConversation(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropFromRoom(conversationID, c)
	if set, ok := h.roomsByClient[c]; ok {
		delete(set, conversationID)
	}
}

// ToConversation delivers the event to every connection currently joined to
// the room, which may be more sockets than the two logical participants.
func (h *Hub) ToConversation(conversationID, event string, payload any) {
	data, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		h.log.Errorw("marshal event failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[conversationID] {
		h.deliver(c, data)
	}
}

// ToUser delivers the event to every connection on the user's channel.
func (h *Hub) ToUser(userID, event string, payload any) {
	data, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		h.log.Errorw("marshal event failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clientsByUser[userID] {
		h.deliver(c, data)
	}
}

// InRoom reports whether the connection has joined the conversation's room.
func (h *Hub) InRoom(c *Client, conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.roomsByClient[c][conversationID]
	return ok
}

// RoomSize reports how many connections are joined to a conversation room.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		metrics.EventsDropped.Inc()
	}
}

// caller holds h.mu
func (h *Hub) dropFromRoom(conversationID string, c *Client) {
	if set, ok := h.rooms[conversationID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}
