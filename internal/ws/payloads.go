package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound envelope. Payload stays raw until the event type selects a schema;
// anything that fails its schema is rejected, never silently half-handled.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	UserID string `json:"userId"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type sendMessagePayload struct {
	ConversationID string   `json:"conversationId"`
	Content        string   `json:"content"`
	MessageType    string   `json:"messageType"`
	MediaIDs       []string `json:"mediaIds"`
	ReplyToID      string   `json:"replyToId"`
}

type deleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

type updateReceiptPayload struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

type updateStatusPayload struct {
	Status string `json:"status"`
}

var errMalformed = errors.New("malformed payload")

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errMalformed
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: missing %s", errMalformed, name)
	}
	return nil
}
