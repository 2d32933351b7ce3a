// Package events names the payloads exchanged over the realtime channel.
package events

// Inbound (client -> server).
const (
	Join              = "join"
	JoinConversation  = "join-conversation"
	LeaveConversation = "leave-conversation"
	Typing            = "typing"
	SendMessage       = "send-message"
	DeleteMessage     = "delete-message"
	UpdateReceipt     = "update-receipt"
	UpdateStatus      = "update-status"
	Heartbeat         = "heartbeat"
	Disconnect        = "disconnect"
)

// Outbound (server -> client).
const (
	NewMessage          = "new-message"
	ConversationUpdated = "conversation-updated"
	ConversationCreated = "conversation-created"
	MessageDeleted      = "message-deleted"
	ReceiptUpdated      = "receipt-updated"
	UserStatusUpdated   = "user-status-updated"
	Error               = "error"
)
