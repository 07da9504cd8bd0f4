package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

type SendMessageInput struct {
	ConversationID   string   `json:"conversation_id"`
	Content          string   `json:"content"`
	Type             string   `json:"type"`
	ReplyToMessageID string   `json:"reply_to_message_id"`
	AttachmentURLs   []string `json:"attachment_urls"`
}

// SendMessage appends to the conversation log and fans the result out: the
// message to the conversation topic, unread counts and conversation updates
// to every other active member's queue. The mongo write is the durable
// effect; fan-out failure never fails the send.
func (s *Service) SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*models.MessageView, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Validation("message content must not be blank")
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return nil, apperr.Validation("message content exceeds %d characters", s.cfg.MaxContentLength)
	}
	if err := s.requireActiveMember(ctx, in.ConversationID, senderID); err != nil {
		return nil, err
	}
	if in.ReplyToMessageID != "" {
		reply, err := s.msgs.Get(ctx, in.ReplyToMessageID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Validation("reply target %s does not exist", in.ReplyToMessageID)
			}
			return nil, err
		}
		if reply.ConversationID != in.ConversationID {
			return nil, apperr.Validation("reply target belongs to another conversation")
		}
	}

	msgType := in.Type
	if msgType == "" {
		msgType = models.TypeText
	}
	now := s.now()
	msg := &models.Message{
		ConversationID:   in.ConversationID,
		SenderID:         senderID,
		Content:          content,
		Type:             msgType,
		ReplyToMessageID: in.ReplyToMessageID,
		AttachmentURLs:   in.AttachmentURLs,
		Status:           models.StatusSent,
		SeenBy:           []models.SeenBy{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return nil, err
	}
	// Secondary writes after the append: the log entry is already durable,
	// so these are logged rather than failing the send.
	if err := s.convs.AdvanceLastMessageAt(ctx, in.ConversationID, now); err != nil {
		s.log.Warnw("last_message_at advance failed", "conversation_id", in.ConversationID, "err", err)
	}
	if err := s.members.TouchLastActive(ctx, in.ConversationID, senderID, now); err != nil {
		s.log.Warnw("sender last_active_at touch failed", "conversation_id", in.ConversationID, "err", err)
	}

	view := s.messageView(ctx, msg)
	ev := models.Event{Type: models.EventMessage, Payload: view}
	s.bc.ToConversation(in.ConversationID, ev)
	s.publish(ctx, in.ConversationID, ev)
	s.notifyMembersOfSend(ctx, in.ConversationID, senderID, view, now)
	return view, nil
}

func (s *Service) notifyMembersOfSend(ctx context.Context, conversationID, senderID string, view *models.MessageView, at time.Time) {
	members, err := s.members.ByConversation(ctx, conversationID)
	if err != nil {
		s.log.Warnw("member list for fan-out failed", "conversation_id", conversationID, "err", err)
		return
	}
	for _, m := range members {
		if !m.Active || m.UserID == senderID {
			continue
		}
		unread, err := s.UnreadCount(ctx, conversationID, m.UserID)
		if err != nil {
			s.log.Warnw("unread count for fan-out failed", "conversation_id", conversationID, "user_id", m.UserID, "err", err)
			continue
		}
		s.bc.ToUser(m.UserID, models.QueueUnread, models.Event{
			Type:    models.EventUnreadCount,
			Payload: models.UnreadCountEvent{ConversationID: conversationID, UnreadCount: unread},
		})
		s.bc.ToUser(m.UserID, models.QueueConversationUpdate, models.Event{
			Type: models.EventConversationUpdate,
			Payload: models.ConversationUpdateEvent{
				ConversationID:      conversationID,
				LastMessageContent:  view.Content,
				LastMessageSenderID: view.SenderID,
				LastMessageAt:       at,
				UnreadCount:         unread,
			},
		})
	}
}

// EditMessage rewrites content. Only the original sender, only while the
// message is not deleted.
func (s *Service) EditMessage(ctx context.Context, messageID, userID, newContent string) (*models.MessageView, error) {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, apperr.Authorization("only the sender can edit a message")
	}
	content := strings.TrimSpace(newContent)
	if content == "" {
		return nil, apperr.Validation("message content must not be blank")
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return nil, apperr.Validation("message content exceeds %d characters", s.cfg.MaxContentLength)
	}

	now := s.now()
	if err := s.msgs.SetContent(ctx, messageID, content, now); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.Edited = true
	msg.UpdatedAt = now

	view := s.messageView(ctx, msg)
	ev := models.Event{Type: models.EventMessageEdited, Payload: view}
	s.bc.ToConversation(msg.ConversationID, ev)
	s.publish(ctx, msg.ConversationID, ev)
	return view, nil
}

// DeleteMessage tombstones a message. It stays in the log to preserve order
// but disappears from reads, search, unread counts and last-message views.
func (s *Service) DeleteMessage(ctx context.Context, messageID, userID string) error {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return apperr.Authorization("only the sender can delete a message")
	}
	if err := s.msgs.SoftDelete(ctx, messageID, s.now()); err != nil {
		return err
	}
	ev := models.Event{Type: models.EventMessageDeleted, Payload: map[string]string{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
	}}
	s.bc.ToConversation(msg.ConversationID, ev)
	s.publish(ctx, msg.ConversationID, ev)
	return nil
}

// GetMessages returns a chronological page of non-deleted history.
func (s *Service) GetMessages(ctx context.Context, conversationID, userID string, limit int64, before time.Time) ([]*models.MessageView, error) {
	if err := s.requireActiveMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.HistoryPageSize {
		limit = s.cfg.HistoryPageSize
	}
	msgs, err := s.msgs.List(ctx, conversationID, limit, before)
	if err != nil {
		return nil, err
	}
	return s.messageViews(ctx, msgs), nil
}

// GetNewMessages returns everything after the caller's watermark; the
// resync path for clients that missed live fan-out.
func (s *Service) GetNewMessages(ctx context.Context, conversationID, userID string) ([]*models.MessageView, error) {
	member, err := s.members.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.msgs.After(ctx, conversationID, member.Watermark())
	if err != nil {
		return nil, err
	}
	return s.messageViews(ctx, msgs), nil
}

// SearchMessages does a case-insensitive substring match over non-deleted
// content. Result order is repository-defined.
func (s *Service) SearchMessages(ctx context.Context, conversationID, text, userID string) ([]*models.MessageView, error) {
	if err := s.requireActiveMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.msgs.Search(ctx, conversationID, text)
	if err != nil {
		return nil, err
	}
	return s.messageViews(ctx, msgs), nil
}
