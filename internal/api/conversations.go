package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/pairchat/internal/events"
	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/repository"
)

type conversationView struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	LastMessageAt time.Time       `json:"lastMessageAt"`
	UnreadCount   int64           `json:"unreadCount"`
	OtherUser     *models.User    `json:"otherUser"`
	LastMessage   *models.Message `json:"lastMessage,omitempty"`
	IsNew         bool            `json:"isNew,omitempty"`
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	user := currentUser(c)
	convs, err := s.repos.Conversations.ListForUser(c.Context(), user.ID)
	if err != nil {
		return internalError(c, "list conversations failed")
	}
	out := make([]conversationView, 0, len(convs))
	for _, conv := range convs {
		view, err := s.buildView(c, conv, user.ID)
		if err != nil {
			s.log.Warnw("build conversation view failed", "conversation", conv.ID, "err", err)
			continue
		}
		out = append(out, view)
	}
	return c.JSON(out)
}

func (s *Server) buildView(c *fiber.Ctx, conv *models.Conversation, userID string) (conversationView, error) {
	ctx := c.Context()
	isUser1 := conv.User1ID == userID

	other, err := s.repos.Users.Get(ctx, conv.PeerOf(userID))
	if err != nil {
		return conversationView{}, err
	}
	view := conversationView{
		ID:            conv.ID,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     conv.UpdatedAt,
		LastMessageAt: conv.LastMessageAt,
		OtherUser:     other,
	}
	if last, err := s.repos.Messages.LastVisible(ctx, conv.ID, isUser1); err == nil {
		view.LastMessage = last
		view.LastMessageAt = last.CreatedAt
	} else if err != repository.ErrNotFound {
		return conversationView{}, err
	}
	readAt, err := s.repos.ReadStates.Get(ctx, conv.ID, userID)
	if err != nil {
		return conversationView{}, err
	}
	unread, err := s.repos.Messages.CountUnread(ctx, conv.ID, userID, isUser1, readAt)
	if err != nil {
		return conversationView{}, err
	}
	view.UnreadCount = unread
	return view, nil
}

type messageView struct {
	*models.Message
	Media   []*models.Media `json:"media,omitempty"`
	ReplyTo *models.Message `json:"replyTo,omitempty"`
}

func (s *Server) getConversation(c *fiber.Ctx) error {
	user := currentUser(c)
	conv, err := s.repos.Conversations.Get(c.Context(), c.Params("id"))
	if err != nil || !conv.HasParticipant(user.ID) {
		// non-participants get the same answer as a missing id
		return notFound(c, "conversation not found")
	}
	isUser1 := conv.User1ID == user.ID
	msgs, err := s.repos.Messages.ListVisible(c.Context(), conv.ID, isUser1, 50)
	if err != nil {
		return internalError(c, "load messages failed")
	}
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		v := messageView{Message: m}
		if media, err := s.repos.Media.ListByMessage(c.Context(), m.ID); err == nil {
			v.Media = media
		}
		// reply target resolved by id lookup, never embedded at write time
		if m.ReplyToID != "" {
			if parent, err := s.repos.Messages.Get(c.Context(), m.ReplyToID); err == nil {
				v.ReplyTo = parent
			}
		}
		views = append(views, v)
	}
	other, err := s.repos.Users.Get(c.Context(), conv.PeerOf(user.ID))
	if err != nil {
		return internalError(c, "load peer failed")
	}
	return c.JSON(fiber.Map{
		"id":            conv.ID,
		"createdAt":     conv.CreatedAt,
		"updatedAt":     conv.UpdatedAt,
		"lastMessageAt": conv.LastMessageAt,
		"otherUser":     other,
		"messages":      views,
	})
}

func (s *Server) startConversation(c *fiber.Ctx) error {
	user := currentUser(c)
	var body struct {
		OtherUserID string `json:"otherUserId"`
	}
	if err := c.BodyParser(&body); err != nil || body.OtherUserID == "" {
		return badRequest(c, "other user ID is required")
	}
	if body.OtherUserID == user.ID {
		return badRequest(c, "cannot start conversation with yourself")
	}
	other, err := s.repos.Users.Get(c.Context(), body.OtherUserID)
	if err != nil {
		return notFound(c, "other user not found")
	}

	if existing, err := s.repos.Conversations.FindByPair(c.Context(), user.ID, other.ID); err == nil {
		return c.JSON(conversationView{
			ID:            existing.ID,
			CreatedAt:     existing.CreatedAt,
			UpdatedAt:     existing.UpdatedAt,
			LastMessageAt: existing.LastMessageAt,
			OtherUser:     other,
		})
	} else if err != repository.ErrNotFound {
		return internalError(c, "lookup failed")
	}

	conv, err := s.repos.Conversations.Create(c.Context(), user.ID, other.ID)
	if err != nil {
		return internalError(c, "create conversation failed")
	}
	view := conversationView{
		ID:            conv.ID,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     conv.UpdatedAt,
		LastMessageAt: conv.LastMessageAt,
		OtherUser:     other,
		IsNew:         true,
	}
	// both participants learn about the new conversation on their user channels
	s.hub.ToUser(conv.User1ID, events.ConversationCreated, view)
	s.hub.ToUser(conv.User2ID, events.ConversationCreated, view)
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (s *Server) markConversationRead(c *fiber.Ctx) error {
	user := currentUser(c)
	conv, err := s.repos.Conversations.Get(c.Context(), c.Params("id"))
	if err != nil || !conv.HasParticipant(user.ID) {
		return notFound(c, "conversation not found")
	}
	if err := s.repos.ReadStates.Upsert(c.Context(), conv.ID, user.ID, time.Now()); err != nil {
		return internalError(c, "mark read failed")
	}
	return c.JSON(fiber.Map{"message": "conversation marked as read"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func internalError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}
