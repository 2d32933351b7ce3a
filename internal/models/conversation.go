package models

import "time"

// Conversation is strictly two-party. User1/User2 positions matter only for
// the per-participant delete flags on messages.
type Conversation struct {
	ID            string    `bson:"_id" json:"id"`
	User1ID       string    `bson:"user1_id" json:"user1Id"`
	User2ID       string    `bson:"user2_id" json:"user2Id"`
	LastMessageAt time.Time `bson:"last_message_at" json:"lastMessageAt"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// PeerOf returns the other participant's id, or "" if userID is not a participant.
func (c *Conversation) PeerOf(userID string) string {
	switch userID {
	case c.User1ID:
		return c.User2ID
	case c.User2ID:
		return c.User1ID
	}
	return ""
}

// ConversationReadState records the last time a participant marked a
// conversation read; unread counts are computed against ReadAt.
type ConversationReadState struct {
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	UserID         string    `bson:"user_id" json:"userId"`
	ReadAt         time.Time `bson:"read_at" json:"readAt"`
}
