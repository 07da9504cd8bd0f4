package chat

import (
	"context"

	"github.com/yourorg/social-app/chat-service/internal/models"
)

// SetTyping flips the caller's typing flag and stamps when typing started.
// Writers never clear stale flags; readers apply the freshness window, so a
// client that disconnects mid-typing self-heals within that window.
func (s *Service) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	if err := s.requireActiveMember(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.members.SetTyping(ctx, conversationID, userID, typing, s.now()); err != nil {
		return err
	}
	u := s.userInfo(ctx, userID)
	s.bc.ToConversation(conversationID, models.Event{
		Type: models.EventTyping,
		Payload: models.TypingEvent{
			ConversationID: conversationID,
			UserID:         userID,
			UserName:       u.DisplayName,
			Typing:         typing,
		},
	})
	return nil
}

// TypingUsers returns members whose typing claim is still fresh.
func (s *Service) TypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	members, err := s.members.TypingMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-s.cfg.TypingWindow)
	out := []string{}
	for _, m := range members {
		if m.TypingStartedAt != nil && m.TypingStartedAt.After(cutoff) {
			out = append(out, m.UserID)
		}
	}
	return out, nil
}
