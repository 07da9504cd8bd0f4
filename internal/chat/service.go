// Package chat is the conversation/presence fan-out core: conversation and
// membership state, the message log, read receipts and unread counts, and
// typing indicators. Every entry point takes the authenticated caller's user
// ID and performs membership/role checks only; credential checks happen at
// the transport boundary.
package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
	"github.com/yourorg/social-app/chat-service/internal/repository"
)

// Broadcaster is the fan-out collaborator: conversation topics reach every
// subscribed connection, user queues reach every device of one user.
// Delivery is best-effort; the durable mutation always commits first.
type Broadcaster interface {
	ToConversation(conversationID string, ev models.Event)
	ToUser(userID, queue string, ev models.Event)
}

// EventSink receives committed state changes for the durable event stream.
type EventSink interface {
	Publish(ctx context.Context, key string, ev models.Event) error
}

type Config struct {
	TypingWindow     time.Duration
	MaxContentLength int
	HistoryPageSize  int64
}

type Service struct {
	convs   repository.ConversationRepo
	members repository.MemberRepo
	msgs    repository.MessageRepo
	users   repository.UserRepo
	bc      Broadcaster
	sink    EventSink
	cfg     Config
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(
	convs repository.ConversationRepo,
	members repository.MemberRepo,
	msgs repository.MessageRepo,
	users repository.UserRepo,
	bc Broadcaster,
	sink EventSink,
	cfg Config,
	log *zap.SugaredLogger,
) *Service {
	if cfg.TypingWindow == 0 {
		cfg.TypingWindow = 5 * time.Second
	}
	if cfg.MaxContentLength == 0 {
		cfg.MaxContentLength = 5000
	}
	if cfg.HistoryPageSize == 0 {
		cfg.HistoryPageSize = 50
	}
	return &Service{
		convs:   convs,
		members: members,
		msgs:    msgs,
		users:   users,
		bc:      bc,
		sink:    sink,
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// publish pushes a committed state change onto the event stream. Failures
// are logged and swallowed: clients can resync from durable state.
func (s *Service) publish(ctx context.Context, key string, ev models.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, key, ev); err != nil {
		s.log.Warnw("event publish failed", "type", ev.Type, "key", key, "err", err)
	}
}

// userInfo resolves display fields, falling back to a placeholder so a
// missing user row never fails a chat operation.
func (s *Service) userInfo(ctx context.Context, userID string) *models.UserStatus {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.log.Warnw("user lookup failed", "user_id", userID, "err", err)
		}
		return &models.UserStatus{UserID: userID, DisplayName: "Unknown"}
	}
	return u
}

func (s *Service) requireActiveMember(ctx context.Context, conversationID, userID string) error {
	ok, err := s.members.ExistsActive(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("user %s is not an active member of conversation %s", userID, conversationID)
	}
	return nil
}
