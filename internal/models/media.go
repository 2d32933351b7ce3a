package models

import "time"

// Media points at one stored object. StorageKey is derived from
// (conversationId, contentHash), so byte-identical uploads within a
// conversation resolve to the same object; two rows may share one key.
// MessageID stays empty until the media is attached to a message.
type Media struct {
	ID             string    `bson:"_id" json:"id"`
	UserID         string    `bson:"user_id" json:"userId"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	MessageID      string    `bson:"message_id,omitempty" json:"messageId,omitempty"`
	FileName       string    `bson:"file_name" json:"fileName"`
	FileType       string    `bson:"file_type" json:"fileType"`
	FileSize       int64     `bson:"file_size" json:"fileSize"`
	ContentHash    string    `bson:"content_hash" json:"contentHash"`
	StorageKey     string    `bson:"storage_key" json:"storageKey"`
	StorageURL     string    `bson:"storage_url" json:"storageUrl"`
	Width          int       `bson:"width,omitempty" json:"width,omitempty"`
	Height         int       `bson:"height,omitempty" json:"height,omitempty"`
	Duration       float64   `bson:"duration,omitempty" json:"duration,omitempty"`
	ThumbnailURL   string    `bson:"thumbnail_url,omitempty" json:"thumbnailUrl,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}
