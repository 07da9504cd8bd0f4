package models

import "time"

const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

type Conversation struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	IsGroup       bool      `bson:"is_group" json:"is_group"`
	GroupName     string    `bson:"group_name,omitempty" json:"group_name,omitempty"`
	GroupAvatar   string    `bson:"group_avatar,omitempty" json:"group_avatar,omitempty"`
	CreatedBy     string    `bson:"created_by" json:"created_by"`
	LastMessageAt time.Time `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// Member is one (conversation, user) pair. Removal and leaving only flip
// Active; rows are never deleted so message attribution survives.
type Member struct {
	ID              string     `bson:"_id,omitempty" json:"id"`
	ConversationID  string     `bson:"conversation_id" json:"conversation_id"`
	UserID          string     `bson:"user_id" json:"user_id"`
	Role            string     `bson:"role" json:"role"`
	Active          bool       `bson:"active" json:"active"`
	JoinedAt        time.Time  `bson:"joined_at" json:"joined_at"`
	LastReadAt      time.Time  `bson:"last_read_at" json:"last_read_at"`
	LastActiveAt    time.Time  `bson:"last_active_at" json:"last_active_at"`
	Typing          bool       `bson:"typing" json:"typing"`
	TypingStartedAt *time.Time `bson:"typing_started_at,omitempty" json:"typing_started_at,omitempty"`
}

// Watermark is the instant up to which the member has seen all prior
// messages. It is never earlier than JoinedAt, so history from before a
// member joined is not counted unread.
func (m *Member) Watermark() time.Time {
	if m.JoinedAt.After(m.LastReadAt) {
		return m.JoinedAt
	}
	return m.LastReadAt
}
