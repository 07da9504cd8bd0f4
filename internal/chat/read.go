package chat

import (
	"context"
	"errors"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

// MarkAsRead advances the caller's watermark and marks every newer message
// from other senders as seen by the caller. Idempotent: the watermark is
// swapped atomically and the seen_by append is guarded per user, so a second
// call with no new messages changes nothing and emits nothing per-message.
func (s *Service) MarkAsRead(ctx context.Context, conversationID, userID string) error {
	now := s.now()
	prev, err := s.members.AdvanceLastRead(ctx, conversationID, userID, now)
	if err != nil {
		return err
	}

	newer, err := s.msgs.After(ctx, conversationID, prev.Watermark())
	if err != nil {
		return err
	}

	reader := s.userInfo(ctx, userID)
	for _, m := range newer {
		if m.SenderID == userID {
			continue
		}
		added, err := s.msgs.AppendSeenBy(ctx, m.ID, userID, now)
		if err != nil {
			s.log.Warnw("seen_by append failed", "message_id", m.ID, "user_id", userID, "err", err)
			continue
		}
		if !added {
			continue
		}
		ev := models.Event{
			Type: models.EventMessageStatus,
			Payload: models.MessageStatusEvent{
				MessageID:      m.ID,
				ConversationID: conversationID,
				Status:         models.StatusSeen,
				SeenByUserID:   userID,
				SeenAt:         now,
			},
		}
		s.bc.ToUser(m.SenderID, models.QueueMessageStatus, ev)
		s.publish(ctx, conversationID, ev)
	}

	// At most one receipt per call, addressed to the author of the most
	// recent surviving message, and only if that author is someone else.
	latest, err := s.msgs.Latest(ctx, conversationID)
	if err != nil {
		s.log.Warnw("latest message lookup failed", "conversation_id", conversationID, "err", err)
	} else if latest != nil && latest.SenderID != userID {
		receipt := models.ReadReceiptEvent{
			ConversationID: conversationID,
			MessageID:      latest.ID,
			UserID:         userID,
			UserName:       reader.DisplayName,
			AvatarURL:      reader.AvatarURL,
			ReadAt:         now,
		}
		ev := models.Event{Type: models.EventReadReceipt, Payload: receipt}
		s.bc.ToUser(latest.SenderID, models.QueueReadReceipt, ev)
		s.publish(ctx, conversationID, ev)
		s.notifyConversationRead(ctx, conversationID, userID, receipt)
	}

	s.bc.ToUser(userID, models.QueueUnread, models.Event{
		Type:    models.EventUnreadCount,
		Payload: models.UnreadCountEvent{ConversationID: conversationID, UnreadCount: 0},
	})
	return nil
}

func (s *Service) notifyConversationRead(ctx context.Context, conversationID, readerID string, receipt models.ReadReceiptEvent) {
	members, err := s.members.ByConversation(ctx, conversationID)
	if err != nil {
		s.log.Warnw("member list for read fan-out failed", "conversation_id", conversationID, "err", err)
		return
	}
	ev := models.Event{Type: models.EventReadReceipt, Payload: receipt}
	for _, m := range members {
		if m.UserID == readerID {
			continue
		}
		s.bc.ToUser(m.UserID, models.QueueConversationRead, ev)
	}
}

// UnreadCount counts non-deleted messages after the caller's watermark that
// someone else sent. Immediately after MarkAsRead it returns 0. Non-members
// simply have nothing unread.
func (s *Service) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	member, err := s.members.Get(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return s.msgs.CountUnread(ctx, conversationID, member.Watermark(), userID)
}
