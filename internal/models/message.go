package models

import "time"

const (
	StatusSent = "SENT"
	StatusSeen = "SEEN"
)

const (
	TypeText  = "TEXT"
	TypeImage = "IMAGE"
	TypeFile  = "FILE"
)

type SeenBy struct {
	UserID string    `bson:"user_id" json:"user_id"`
	SeenAt time.Time `bson:"seen_at" json:"seen_at"`
}

type Message struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	ConversationID   string    `bson:"conversation_id" json:"conversation_id"`
	SenderID         string    `bson:"sender_id" json:"sender_id"`
	Content          string    `bson:"content" json:"content"`
	Type             string    `bson:"type" json:"type"`
	ReplyToMessageID string    `bson:"reply_to_message_id,omitempty" json:"reply_to_message_id,omitempty"`
	AttachmentURLs   []string  `bson:"attachment_urls,omitempty" json:"attachment_urls,omitempty"`
	Status           string    `bson:"status" json:"status"`
	SeenBy           []SeenBy  `bson:"seen_by" json:"seen_by"`
	Edited           bool      `bson:"edited" json:"edited"`
	Deleted          bool      `bson:"deleted" json:"deleted"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

func (m *Message) SeenByUser(userID string) bool {
	for _, s := range m.SeenBy {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// UserStatus is the durable record behind presence reads. The live redis
// entry may be gone while this row still answers "last seen" queries.
type UserStatus struct {
	UserID       string    `bson:"_id" json:"user_id"`
	DisplayName  string    `bson:"display_name" json:"display_name"`
	AvatarURL    string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Online       bool      `bson:"online" json:"online"`
	LastActiveAt time.Time `bson:"last_active_at" json:"last_active_at"`
}
