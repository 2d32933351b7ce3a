package models

import "time"

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
)

func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo:
		return true
	}
	return false
}

// Receipt statuses, per (message, participant).
const (
	ReceiptSent      = "SENT"
	ReceiptDelivered = "DELIVERED"
	ReceiptRead      = "READ"
)

func ValidReceiptStatus(s string) bool {
	switch s {
	case ReceiptSent, ReceiptDelivered, ReceiptRead:
		return true
	}
	return false
}

// Message rows are purged only once both delete flags are set; until then a
// set flag merely hides the message from that participant's view. ReplyToID
// is an id reference resolved at read time, never an embedded message.
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	SenderID       string    `bson:"sender_id" json:"senderId"`
	Content        string    `bson:"content" json:"content"`
	Type           string    `bson:"type" json:"type"`
	ReplyToID      string    `bson:"reply_to_id,omitempty" json:"replyToId,omitempty"`
	DeletedByUser1 bool      `bson:"deleted_by_user1" json:"-"`
	DeletedByUser2 bool      `bson:"deleted_by_user2" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// DeletedBy reports whether the given participant position has deleted the message.
func (m *Message) DeletedBy(isUser1 bool) bool {
	if isUser1 {
		return m.DeletedByUser1
	}
	return m.DeletedByUser2
}

// MessageReceipt exists exactly once per (message, participant); two rows are
// created atomically with the message itself.
type MessageReceipt struct {
	MessageID string    `bson:"message_id" json:"messageId"`
	UserID    string    `bson:"user_id" json:"userId"`
	Status    string    `bson:"status" json:"status"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
