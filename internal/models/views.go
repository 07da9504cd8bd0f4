package models

import "time"

// Views are what handlers and the broadcaster hand to clients. They carry
// resolved display fields so clients never join against the user store.

type SeenByView struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	SeenAt    time.Time `json:"seen_at"`
}

type MessageView struct {
	ID               string       `json:"id"`
	ConversationID   string       `json:"conversation_id"`
	SenderID         string       `json:"sender_id"`
	SenderName       string       `json:"sender_name"`
	SenderAvatar     string       `json:"sender_avatar,omitempty"`
	Content          string       `json:"content"`
	Type             string       `json:"type"`
	ReplyToMessageID string       `json:"reply_to_message_id,omitempty"`
	ReplyTo          *MessageView `json:"reply_to,omitempty"`
	AttachmentURLs   []string     `json:"attachment_urls,omitempty"`
	Status           string       `json:"status"`
	SeenBy           []SeenByView `json:"seen_by"`
	Edited           bool         `json:"edited"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

type MemberView struct {
	UserID       string     `json:"user_id"`
	DisplayName  string     `json:"display_name"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	Role         string     `json:"role"`
	JoinedAt     time.Time  `json:"joined_at"`
	LastReadAt   time.Time  `json:"last_read_at"`
	Active       bool       `json:"active"`
	Typing       bool       `json:"typing"`
	Online       bool       `json:"online"`
}

type ConversationView struct {
	ID                  string       `json:"id"`
	IsGroup             bool         `json:"is_group"`
	GroupName           string       `json:"group_name,omitempty"`
	GroupAvatar         string       `json:"group_avatar,omitempty"`
	LastMessageContent  string       `json:"last_message_content,omitempty"`
	LastMessageSenderID string       `json:"last_message_sender_id,omitempty"`
	LastMessageAt       time.Time    `json:"last_message_at,omitempty"`
	UnreadCount         int64        `json:"unread_count"`
	Members             []MemberView `json:"members"`
	TypingUserIDs       []string     `json:"typing_user_ids"`
	CreatedAt           time.Time    `json:"created_at"`
}
