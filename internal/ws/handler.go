package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/chat"
	"github.com/yourorg/pairchat/internal/events"
	"github.com/yourorg/pairchat/internal/hub"
	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/presence"
)

type UserStore interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	SetStatus(ctx context.Context, userID, status string, lastSeen time.Time) error
}

type Config struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	MaxMsgSize    int64
	SendBuffer    int
}

// Handler drives one websocket connection's event loop. Every inbound frame
// counts as a liveness signal for the registry.
type Handler struct {
	verifier    *auth.Verifier
	users       UserStore
	registry    *presence.Registry
	hub         *hub.Hub
	broadcaster *presence.Broadcaster
	coordinator *chat.Coordinator
	cfg         Config
	log         *zap.SugaredLogger
}

func NewHandler(verifier *auth.Verifier, users UserStore, registry *presence.Registry, h *hub.Hub, broadcaster *presence.Broadcaster, coordinator *chat.Coordinator, cfg Config, log *zap.SugaredLogger) *Handler {
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = 256
	}
	return &Handler{
		verifier:    verifier,
		users:       users,
		registry:    registry,
		hub:         h,
		broadcaster: broadcaster,
		coordinator: coordinator,
		cfg:         cfg,
		log:         log,
	}
}

// Handle is mounted behind the fiber websocket upgrade middleware.
func (h *Handler) Handle(conn *websocket.Conn) {
	token := conn.Query("token")
	if token == "" {
		_ = conn.Close()
		return
	}
	externalID, err := h.verifier.Verify(token)
	if err != nil {
		_ = conn.Close()
		return
	}
	ctx := context.Background()
	user, err := h.users.GetByExternalID(ctx, externalID)
	if err != nil {
		_ = conn.Close()
		return
	}

	client := hub.NewClient(uuid.New().String(), user.ID, h.cfg.SendBuffer)
	h.registry.Register(user.ID, client.ID)
	h.hub.AddClient(client)
	metrics.ConnectionsActive.Inc()
	h.setOnline(ctx, user.ID)

	done := make(chan struct{})
	go h.writePump(conn, client, done)

	h.readPump(ctx, conn, client, user)

	close(done)
	h.cleanup(ctx, client, user)
	_ = conn.Close()
}

// cleanup tears the session down. Eviction happens synchronously before any
// offline notification, and only if the registry entry still belongs to this
// connection; a reconnect that already replaced the session stays untouched
// and no notification goes out.
func (h *Handler) cleanup(ctx context.Context, client *hub.Client, user *models.User) {
	h.hub.RemoveClient(client)
	metrics.ConnectionsActive.Dec()
	if h.registry.EvictConnection(user.ID, client.ID) {
		h.setOffline(ctx, user.ID)
	}
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *hub.Client, user *models.User) {
	conn.SetReadLimit(h.cfg.MaxMsgSize)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if !h.handleFrame(ctx, client, user, data) {
			return
		}
	}
}

// handleFrame processes one inbound text frame and reports whether the read
// loop should continue. Every frame counts as a liveness signal, parseable
// or not.
func (h *Handler) handleFrame(ctx context.Context, client *hub.Client, user *models.User, data []byte) bool {
	h.registry.Refresh(user.ID)

	var env inbound
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		h.sendError(client, "malformed event")
		return true
	}
	if env.Type == events.Disconnect {
		return false
	}
	h.dispatch(ctx, client, user, env)
	return true
}

func (h *Handler) dispatch(ctx context.Context, client *hub.Client, user *models.User, env inbound) {
	switch env.Type {
	case events.Join:
		var p joinPayload
		if err := decode(env.Payload, &p); err != nil || p.UserID == "" {
			h.sendError(client, "malformed join")
			return
		}
		if p.UserID != user.ID {
			h.sendError(client, "cannot join as another user")
			return
		}
		// idempotent: the connect already registered this session
		h.registry.Register(user.ID, client.ID)
		h.setOnline(ctx, user.ID)

	case events.JoinConversation:
		var p conversationPayload
		if err := decode(env.Payload, &p); err != nil || p.ConversationID == "" {
			h.sendError(client, "malformed join-conversation")
			return
		}
		h.hub.JoinConversation(ctx, client, p.ConversationID)

	case events.LeaveConversation:
		var p conversationPayload
		if err := decode(env.Payload, &p); err != nil || p.ConversationID == "" {
			h.sendError(client, "malformed leave-conversation")
			return
		}
		h.hub.LeaveConversation(client, p.ConversationID)

	case events.Typing:
		var p typingPayload
		if err := decode(env.Payload, &p); err != nil || p.ConversationID == "" {
			h.sendError(client, "malformed typing")
			return
		}
		// transient, no persistence; only room members may signal
		if !h.hub.InRoom(client, p.ConversationID) {
			return
		}
		h.hub.ToConversation(p.ConversationID, events.Typing, map[string]any{
			"conversationId": p.ConversationID,
			"userId":         user.ID,
			"isTyping":       p.IsTyping,
		})

	case events.SendMessage:
		var p sendMessagePayload
		if err := decode(env.Payload, &p); err != nil {
			h.sendError(client, "malformed send-message")
			return
		}
		if err := requireField("conversationId", p.ConversationID); err != nil {
			h.sendError(client, "malformed send-message")
			return
		}
		_, err := h.coordinator.Send(ctx, chat.SendInput{
			ConversationID: p.ConversationID,
			SenderID:       user.ID,
			Content:        p.Content,
			Type:           p.MessageType,
			MediaIDs:       p.MediaIDs,
			ReplyToID:      p.ReplyToID,
		})
		if err != nil {
			h.reportChatError(client, err)
		}

	case events.DeleteMessage:
		var p deleteMessagePayload
		if err := decode(env.Payload, &p); err != nil || p.MessageID == "" {
			h.sendError(client, "malformed delete-message")
			return
		}
		if err := h.coordinator.Delete(ctx, p.MessageID, user.ID); err != nil {
			h.reportChatError(client, err)
		}

	case events.UpdateReceipt:
		var p updateReceiptPayload
		if err := decode(env.Payload, &p); err != nil || p.MessageID == "" || p.Status == "" {
			h.sendError(client, "malformed update-receipt")
			return
		}
		if err := h.coordinator.UpdateReceipt(ctx, p.MessageID, user.ID, p.Status); err != nil {
			h.reportChatError(client, err)
		}

	case events.UpdateStatus:
		var p updateStatusPayload
		if err := decode(env.Payload, &p); err != nil || !models.ValidStatus(p.Status) {
			h.sendError(client, "malformed update-status")
			return
		}
		now := time.Now().UTC()
		if err := h.users.SetStatus(ctx, user.ID, p.Status, now); err != nil {
			h.log.Warnw("persist status failed", "user", user.ID, "err", err)
			h.sendError(client, "status update failed")
			return
		}
		h.broadcaster.NotifyStatus(ctx, user.ID, p.Status, now)

	case events.Heartbeat:
		// liveness already refreshed above

	default:
		h.sendError(client, "unknown event")
	}
}

// reportChatError maps coordinator failures onto the error taxonomy:
// authorization failures stay silent, everything else becomes an error event.
func (h *Handler) reportChatError(client *hub.Client, err error) {
	switch {
	case errors.Is(err, chat.ErrNotParticipant):
		// silent no-op; don't confirm or deny membership
	case errors.Is(err, chat.ErrNotFound):
		h.sendError(client, "not found")
	case errors.Is(err, chat.ErrContentBlocked):
		h.sendError(client, "sharing phone numbers is not allowed")
	case errors.Is(err, chat.ErrInvalidInput):
		h.sendError(client, "invalid request")
	default:
		h.log.Warnw("operation failed", "err", err)
		h.sendError(client, "operation failed, safe to retry")
	}
}

func (h *Handler) sendError(client *hub.Client, msg string) {
	data, err := json.Marshal(hub.Envelope{Type: events.Error, Payload: map[string]string{"message": msg}})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
		metrics.EventsDropped.Inc()
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *hub.Client, done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) setOnline(ctx context.Context, userID string) {
	now := time.Now().UTC()
	if err := h.users.SetStatus(ctx, userID, models.StatusOnline, now); err != nil {
		h.log.Warnw("persist online status failed", "user", userID, "err", err)
	}
	h.broadcaster.NotifyStatus(ctx, userID, models.StatusOnline, now)
}

func (h *Handler) setOffline(ctx context.Context, userID string) {
	now := time.Now().UTC()
	if err := h.users.SetStatus(ctx, userID, models.StatusOffline, now); err != nil {
		h.log.Warnw("persist offline status failed", "user", userID, "err", err)
	}
	h.broadcaster.NotifyStatus(ctx, userID, models.StatusOffline, now)
}
