package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/events"
	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/moderation"
	"github.com/yourorg/pairchat/internal/repository"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrContentBlocked = errors.New("message content not allowed")
	ErrInvalidInput   = errors.New("invalid input")
)

type MessageStore interface {
	CreateWithReceipts(ctx context.Context, m *models.Message, receipts []*models.MessageReceipt) error
	Get(ctx context.Context, id string) (*models.Message, error)
	SetDeleteFlag(ctx context.Context, id string, isUser1 bool) error
	Purge(ctx context.Context, id string) error
	UpsertReceipt(ctx context.Context, rc *models.MessageReceipt) error
}

type ConversationStore interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}

type MediaStore interface {
	Get(ctx context.Context, id string) (*models.Media, error)
	AttachToMessage(ctx context.Context, id, messageID string) error
	ListByMessage(ctx context.Context, messageID string) ([]*models.Media, error)
}

type Emitter interface {
	ToConversation(conversationID, event string, payload any)
	ToUser(userID, event string, payload any)
}

// Publisher hands accepted messages to the event bus for downstream
// consumers (notifications, analytics). Optional.
type Publisher interface {
	PublishMessageSent(ctx context.Context, payload any) error
}

// Coordinator orchestrates message creation, the receipt lifecycle, and the
// bilateral-delete state machine. Concurrent operations on the same message
// from different connections can interleave at the persistence layer; that is
// an accepted trade-off, not a guarantee this type defends against.
type Coordinator struct {
	messages  MessageStore
	convs     ConversationStore
	media     MediaStore
	emitter   Emitter
	publisher Publisher
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewCoordinator(messages MessageStore, convs ConversationStore, media MediaStore, emitter Emitter, publisher Publisher, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		messages:  messages,
		convs:     convs,
		media:     media,
		emitter:   emitter,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

type SendInput struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           string
	MediaIDs       []string
	ReplyToID      string
}

// Send persists the message together with exactly two SENT receipts, attaches
// any referenced media, bumps the conversation, and fans out to the room.
func (c *Coordinator) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if !models.ValidMessageType(in.Type) {
		return nil, fmt.Errorf("%w: message type %q", ErrInvalidInput, in.Type)
	}
	if in.Type == models.MessageTypeText && in.Content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidInput)
	}
	conv, err := c.conversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, ErrNotParticipant
	}
	if in.Type == models.MessageTypeText && moderation.ContainsPhoneNumber(in.Content) {
		return nil, ErrContentBlocked
	}
	if in.ReplyToID != "" {
		parent, err := c.messages.Get(ctx, in.ReplyToID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: reply target", ErrNotFound)
			}
			return nil, err
		}
		if parent.ConversationID != in.ConversationID {
			return nil, fmt.Errorf("%w: reply target outside conversation", ErrInvalidInput)
		}
	}

	now := c.now().UTC()
	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           in.Type,
		ReplyToID:      in.ReplyToID,
		CreatedAt:      now,
	}
	receipts := []*models.MessageReceipt{
		{MessageID: msg.ID, UserID: conv.User1ID, Status: models.ReceiptSent, Timestamp: now},
		{MessageID: msg.ID, UserID: conv.User2ID, Status: models.ReceiptSent, Timestamp: now},
	}
	if err := c.messages.CreateWithReceipts(ctx, msg, receipts); err != nil {
		return nil, err
	}

	attached := c.attachMedia(ctx, msg, in.MediaIDs, conv)

	if err := c.convs.TouchLastMessage(ctx, conv.ID, now); err != nil {
		c.log.Warnw("touch last message failed", "conversation", conv.ID, "err", err)
	}
	metrics.MessagesSent.Inc()

	if c.publisher != nil {
		if err := c.publisher.PublishMessageSent(ctx, map[string]any{
			"messageId":      msg.ID,
			"conversationId": msg.ConversationID,
			"senderId":       msg.SenderID,
			"type":           msg.Type,
			"createdAt":      msg.CreatedAt,
		}); err != nil {
			c.log.Warnw("publish message-sent failed", "message", msg.ID, "err", err)
		}
	}

	c.emitter.ToConversation(conv.ID, events.NewMessage, map[string]any{
		"message":  msg,
		"receipts": receipts,
		"media":    attached,
	})
	c.emitter.ToConversation(conv.ID, events.ConversationUpdated, map[string]any{
		"conversationId": conv.ID,
		"lastMessageAt":  now,
	})
	return msg, nil
}

// attachMedia links each referenced media row to the new message. Rows that
// do not belong to this conversation and sender are skipped, not fatal.
func (c *Coordinator) attachMedia(ctx context.Context, msg *models.Message, mediaIDs []string, conv *models.Conversation) []*models.Media {
	var attached []*models.Media
	for _, id := range mediaIDs {
		m, err := c.media.Get(ctx, id)
		if err != nil {
			c.log.Warnw("media lookup failed, skipping attachment", "media", id, "err", err)
			continue
		}
		if m.ConversationID != conv.ID || m.UserID != msg.SenderID {
			c.log.Warnw("media does not belong to sender in this conversation, skipping",
				"media", id, "conversation", conv.ID)
			continue
		}
		if err := c.media.AttachToMessage(ctx, id, msg.ID); err != nil {
			c.log.Warnw("media attach failed", "media", id, "err", err)
			continue
		}
		m.MessageID = msg.ID
		attached = append(attached, m)
	}
	return attached
}

// UpdateReceipt upserts the (message, user) receipt and fans the change out
// to the conversation room. Last write wins; no monotonicity is enforced.
func (c *Coordinator) UpdateReceipt(ctx context.Context, messageID, userID, status string) error {
	if !models.ValidReceiptStatus(status) {
		return fmt.Errorf("%w: receipt status %q", ErrInvalidInput, status)
	}
	msg, err := c.message(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := c.conversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	rc := &models.MessageReceipt{
		MessageID: messageID,
		UserID:    userID,
		Status:    status,
		Timestamp: c.now().UTC(),
	}
	if err := c.messages.UpsertReceipt(ctx, rc); err != nil {
		return err
	}
	c.emitter.ToConversation(conv.ID, events.ReceiptUpdated, rc)
	return nil
}

// Delete advances the bilateral-delete state machine:
// VISIBLE_TO_BOTH -> HIDDEN_FROM_ONE -> PURGED. The first delete hides the
// message from the requester only; once both participants have deleted it the
// row and its receipts are removed for good. Re-deleting by the same
// participant is idempotent.
func (c *Coordinator) Delete(ctx context.Context, messageID, requesterID string) error {
	msg, err := c.message(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := c.conversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(requesterID) {
		return ErrNotParticipant
	}
	isUser1 := conv.User1ID == requesterID

	if msg.DeletedBy(isUser1) {
		// already hidden for the requester; re-confirm, change nothing
		c.emitter.ToUser(requesterID, events.MessageDeleted, deletedPayload(msg, false))
		return nil
	}
	if err := c.messages.SetDeleteFlag(ctx, messageID, isUser1); err != nil {
		return err
	}
	if msg.DeletedBy(!isUser1) {
		// both flags set: purge row and receipts, tell both participants on
		// their user channels since room membership may already be stale
		if err := c.messages.Purge(ctx, messageID); err != nil {
			return err
		}
		payload := deletedPayload(msg, true)
		c.emitter.ToUser(conv.User1ID, events.MessageDeleted, payload)
		c.emitter.ToUser(conv.User2ID, events.MessageDeleted, payload)
		return nil
	}
	// hidden from the requester only; the peer keeps seeing the message
	c.emitter.ToUser(requesterID, events.MessageDeleted, deletedPayload(msg, false))
	return nil
}

func deletedPayload(msg *models.Message, permanent bool) map[string]any {
	return map[string]any{
		"messageId":          msg.ID,
		"conversationId":     msg.ConversationID,
		"permanentlyDeleted": permanent,
	}
}

func (c *Coordinator) message(ctx context.Context, id string) (*models.Message, error) {
	msg, err := c.messages.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
		}
		return nil, err
	}
	return msg, nil
}

func (c *Coordinator) conversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := c.convs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
		}
		return nil, err
	}
	return conv, nil
}
