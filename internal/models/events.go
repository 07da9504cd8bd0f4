package models

import "time"

// Event is the envelope every live update travels in, on the websocket and
// on the kafka stream alike.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Per-user queues. A queue addresses every live connection of one user.
const (
	QueueUnread             = "unread"
	QueueMessageStatus      = "message-status"
	QueueReadReceipt        = "read-receipt"
	QueueConversationUpdate = "conversation-update"
	QueueConversationRead   = "conversation-read"
	QueueErrors             = "errors"
)

const (
	EventMessage            = "message"
	EventMessageEdited      = "message_edited"
	EventMessageDeleted     = "message_deleted"
	EventTyping             = "typing"
	EventStatus             = "status"
	EventUnreadCount        = "unread_count"
	EventMessageStatus      = "message_status"
	EventReadReceipt        = "read_receipt"
	EventConversationUpdate = "conversation_update"
	EventError              = "error"
)

type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name,omitempty"`
	Typing         bool   `json:"typing"`
}

type StatusEvent struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // "online" or "offline"
}

type UnreadCountEvent struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int64  `json:"unread_count"`
}

type MessageStatusEvent struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Status         string    `json:"status"`
	SeenByUserID   string    `json:"seen_by_user_id"`
	SeenAt         time.Time `json:"seen_at"`
}

type ReadReceiptEvent struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	ReadAt         time.Time `json:"read_at"`
}

type ConversationUpdateEvent struct {
	ConversationID      string    `json:"conversation_id"`
	LastMessageContent  string    `json:"last_message_content,omitempty"`
	LastMessageSenderID string    `json:"last_message_sender_id,omitempty"`
	LastMessageAt       time.Time `json:"last_message_at,omitempty"`
	UnreadCount         int64     `json:"unread_count"`
}
