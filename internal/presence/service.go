package presence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/social-app/chat-service/internal/models"
	"github.com/yourorg/social-app/chat-service/internal/repository"
)

// Broadcaster is the slice of the fan-out layer presence needs: status
// changes go to everyone watching the live feed.
type Broadcaster interface {
	ToAll(ev models.Event)
}

// EventSink receives committed state changes for the durable event stream.
type EventSink interface {
	Publish(ctx context.Context, key string, ev models.Event) error
}

type Service struct {
	live  LiveStore
	users repository.UserRepo
	bc    Broadcaster
	sink  EventSink
	ttl   time.Duration
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(live LiveStore, users repository.UserRepo, bc Broadcaster, sink EventSink, ttl time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{
		live:  live,
		users: users,
		bc:    bc,
		sink:  sink,
		ttl:   ttl,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Heartbeat renews the caller's live entry. It is driven by a periodic client
// signal, not literal user activity. The online broadcast fires only on the
// absent-to-present transition.
func (s *Service) Heartbeat(ctx context.Context, userID string) error {
	wasOnline, err := s.live.Refresh(ctx, userID, s.ttl)
	if err != nil {
		return err
	}
	if err := s.users.SetOnline(ctx, userID, s.now()); err != nil {
		s.log.Warnw("durable online write failed", "user_id", userID, "err", err)
	}
	if !wasOnline {
		s.broadcastStatus(ctx, userID, "online")
	}
	return nil
}

// HandleExpiry is the time-driven offline path. A heartbeat racing the
// expiry of the same window may have already recreated the entry, so
// liveness is re-checked before the offline transition commits.
func (s *Service) HandleExpiry(ctx context.Context, userID string) {
	alive, err := s.live.Exists(ctx, userID)
	if err != nil {
		s.log.Warnw("liveness re-check failed", "user_id", userID, "err", err)
		return
	}
	if alive {
		// fresher entry exists, the expiry was stale
		return
	}
	if err := s.users.SetOffline(ctx, userID, s.now()); err != nil {
		s.log.Errorw("durable offline write failed", "user_id", userID, "err", err)
		return
	}
	s.broadcastStatus(ctx, userID, "offline")
}

// Run consumes expiry notifications until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	expirations, err := s.live.Expirations(ctx)
	if err != nil {
		return err
	}
	for userID := range expirations {
		s.HandleExpiry(ctx, userID)
	}
	return nil
}

// IsOnline reports whether a live entry exists. A crashed client is only
// detected offline after its freshness window lapses.
func (s *Service) IsOnline(ctx context.Context, userID string) (bool, error) {
	return s.live.Exists(ctx, userID)
}

// LastSeen returns "online" for live users, otherwise a relative-time string
// computed from the durable last-active timestamp.
func (s *Service) LastSeen(ctx context.Context, userID string) (string, error) {
	online, err := s.live.Exists(ctx, userID)
	if err != nil {
		return "", err
	}
	if online {
		return "online", nil
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return formatLastSeen(u.LastActiveAt, s.now()), nil
}

func formatLastSeen(lastActive, now time.Time) string {
	d := now.Sub(lastActive)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	default:
		return lastActive.Format("2006-01-02")
	}
}

func (s *Service) broadcastStatus(ctx context.Context, userID, status string) {
	ev := models.Event{
		Type:    models.EventStatus,
		Payload: models.StatusEvent{UserID: userID, Status: status},
	}
	if s.bc != nil {
		s.bc.ToAll(ev)
	}
	if s.sink != nil {
		if err := s.sink.Publish(ctx, userID, ev); err != nil {
			s.log.Warnw("status event publish failed", "user_id", userID, "err", err)
		}
	}
}
