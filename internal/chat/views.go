package chat

import (
	"context"
	"sort"

	"github.com/yourorg/social-app/chat-service/internal/models"
)

func (s *Service) messageView(ctx context.Context, m *models.Message) *models.MessageView {
	sender := s.userInfo(ctx, m.SenderID)

	v := &models.MessageView{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		SenderID:         m.SenderID,
		SenderName:       sender.DisplayName,
		SenderAvatar:     sender.AvatarURL,
		Content:          m.Content,
		Type:             m.Type,
		ReplyToMessageID: m.ReplyToMessageID,
		AttachmentURLs:   m.AttachmentURLs,
		Status:           m.Status,
		SeenBy:           make([]models.SeenByView, 0, len(m.SeenBy)),
		Edited:           m.Edited,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if v.Status == "" {
		v.Status = models.StatusSent
	}
	for _, sb := range m.SeenBy {
		u := s.userInfo(ctx, sb.UserID)
		v.SeenBy = append(v.SeenBy, models.SeenByView{
			UserID:    sb.UserID,
			UserName:  u.DisplayName,
			AvatarURL: u.AvatarURL,
			SeenAt:    sb.SeenAt,
		})
	}
	// Deleted or missing reply targets degrade to the bare ID; clients
	// render a fallback.
	if m.ReplyToMessageID != "" {
		if reply, err := s.msgs.Get(ctx, m.ReplyToMessageID); err == nil {
			replySender := s.userInfo(ctx, reply.SenderID)
			v.ReplyTo = &models.MessageView{
				ID:         reply.ID,
				SenderID:   reply.SenderID,
				SenderName: replySender.DisplayName,
				Content:    reply.Content,
				Type:       reply.Type,
				CreatedAt:  reply.CreatedAt,
			}
		}
	}
	return v
}

func (s *Service) messageViews(ctx context.Context, msgs []*models.Message) []*models.MessageView {
	out := make([]*models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.messageView(ctx, m))
	}
	return out
}

func (s *Service) conversationView(ctx context.Context, conv *models.Conversation, currentUserID string) (*models.ConversationView, error) {
	members, err := s.members.ByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	v := &models.ConversationView{
		ID:            conv.ID,
		IsGroup:       conv.IsGroup,
		GroupName:     conv.GroupName,
		GroupAvatar:   conv.GroupAvatar,
		LastMessageAt: conv.LastMessageAt,
		Members:       make([]models.MemberView, 0, len(members)),
		TypingUserIDs: []string{},
		CreatedAt:     conv.CreatedAt,
	}

	for _, m := range members {
		if !m.Active {
			continue
		}
		u := s.userInfo(ctx, m.UserID)
		v.Members = append(v.Members, models.MemberView{
			UserID:      m.UserID,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
			Role:        m.Role,
			JoinedAt:    m.JoinedAt,
			LastReadAt:  m.LastReadAt,
			Active:      m.Active,
			Typing:      m.Typing,
			Online:      u.Online,
		})
	}

	// Counters and the last-message preview are best-effort: a broken one
	// leaves its zero value in the view, but never fails the read.
	if last, err := s.msgs.Latest(ctx, conv.ID); err != nil {
		s.log.Warnw("latest message for view failed", "conversation_id", conv.ID, "err", err)
	} else if last != nil {
		v.LastMessageContent = last.Content
		v.LastMessageSenderID = last.SenderID
	}
	if n, err := s.UnreadCount(ctx, conv.ID, currentUserID); err != nil {
		s.log.Warnw("unread count for view failed", "conversation_id", conv.ID, "user_id", currentUserID, "err", err)
	} else {
		v.UnreadCount = n
	}
	if typing, err := s.TypingUsers(ctx, conv.ID); err != nil {
		s.log.Warnw("typing lookup for view failed", "conversation_id", conv.ID, "err", err)
	} else {
		v.TypingUserIDs = typing
	}
	return v, nil
}

// sortConversationViews orders by last message time, newest first, with
// conversations that never saw a message at the end.
func sortConversationViews(views []*models.ConversationView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].LastMessageAt, views[j].LastMessageAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
}
