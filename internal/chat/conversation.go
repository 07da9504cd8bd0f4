package chat

import (
	"context"
	"errors"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

type CreateConversationInput struct {
	MemberIDs   []string `json:"member_ids"`
	IsGroup     bool     `json:"is_group"`
	GroupName   string   `json:"group_name"`
	GroupAvatar string   `json:"group_avatar"`
}

// CreateConversation creates a group, or a 1:1 conversation if no active one
// exists between the two users yet. 1:1 creation is idempotent through the
// lookup-before-create ordering; two racing creators may still each create
// one (at-least-one semantics, no unordered-pair unique constraint).
func (s *Service) CreateConversation(ctx context.Context, creatorID string, in CreateConversationInput) (*models.ConversationView, error) {
	if len(in.MemberIDs) == 0 {
		return nil, apperr.Validation("at least one member is required")
	}

	memberIDs := dedupe(in.MemberIDs)
	if !contains(memberIDs, creatorID) {
		memberIDs = append(memberIDs, creatorID)
	}

	if !in.IsGroup && len(memberIDs) == 1 {
		return nil, apperr.Validation("cannot create a private conversation with yourself")
	}

	if !in.IsGroup && len(memberIDs) == 2 {
		other := memberIDs[0]
		if other == creatorID {
			other = memberIDs[1]
		}
		if existing, err := s.findExistingPrivate(ctx, creatorID, other); err != nil {
			return nil, err
		} else if existing != nil {
			return s.conversationView(ctx, existing, creatorID)
		}
	}

	now := s.now()
	conv := &models.Conversation{
		IsGroup:     in.IsGroup,
		GroupName:   in.GroupName,
		GroupAvatar: in.GroupAvatar,
		CreatedBy:   creatorID,
	}
	if err := s.convs.Insert(ctx, conv); err != nil {
		return nil, err
	}

	for _, id := range memberIDs {
		role := models.RoleMember
		if id == creatorID {
			role = models.RoleAdmin
		}
		m := &models.Member{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           role,
			Active:         true,
			JoinedAt:       now,
			LastReadAt:     now,
			LastActiveAt:   now,
		}
		if err := s.members.Insert(ctx, m); err != nil {
			return nil, err
		}
	}
	return s.conversationView(ctx, conv, creatorID)
}

// GetOrCreatePrivateConversation returns the existing active 1:1
// conversation between the two users, creating it if absent. Calling twice
// returns the same conversation.
func (s *Service) GetOrCreatePrivateConversation(ctx context.Context, userID, otherID string) (*models.ConversationView, error) {
	if userID == otherID {
		return nil, apperr.Validation("cannot open a private conversation with yourself")
	}
	if existing, err := s.findExistingPrivate(ctx, userID, otherID); err != nil {
		return nil, err
	} else if existing != nil {
		return s.conversationView(ctx, existing, userID)
	}
	return s.CreateConversation(ctx, userID, CreateConversationInput{
		MemberIDs: []string{userID, otherID},
		IsGroup:   false,
	})
}

// findExistingPrivate intersects the two users' active conversations and
// keeps the first non-group one with exactly two active members. The member
// count guards against historical groups that shrank to two people.
func (s *Service) findExistingPrivate(ctx context.Context, userID, otherID string) (*models.Conversation, error) {
	mine, err := s.members.ActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return nil, nil
	}
	theirs, err := s.members.ActiveByUser(ctx, otherID)
	if err != nil {
		return nil, err
	}
	theirIDs := make(map[string]bool, len(theirs))
	for _, m := range theirs {
		theirIDs[m.ConversationID] = true
	}

	for _, m := range mine {
		if !theirIDs[m.ConversationID] {
			continue
		}
		conv, err := s.convs.Get(ctx, m.ConversationID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if conv.IsGroup {
			continue
		}
		n, err := s.members.CountActive(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		if n == 2 {
			return conv, nil
		}
	}
	return nil, nil
}

// GetConversations lists the caller's active conversations ordered by most
// recent message.
func (s *Service) GetConversations(ctx context.Context, userID string) ([]*models.ConversationView, error) {
	memberships, err := s.members.ActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*models.ConversationView, 0, len(memberships))
	for _, m := range memberships {
		conv, err := s.convs.Get(ctx, m.ConversationID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		v, err := s.conversationView(ctx, conv, userID)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	sortConversationViews(views)
	return views, nil
}

func (s *Service) GetConversation(ctx context.Context, conversationID, userID string) (*models.ConversationView, error) {
	if err := s.requireActiveMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.conversationView(ctx, conv, userID)
}

// AddMember adds a user to a group conversation. ADMIN only. A previously
// removed member is reactivated with a fresh watermark.
func (s *Service) AddMember(ctx context.Context, conversationID, targetID, requesterID string) (*models.ConversationView, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, apperr.Validation("cannot add members to a private conversation")
	}
	if err := s.requireAdmin(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}

	active, err := s.members.ExistsActive(ctx, conversationID, targetID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.Validation("user %s is already a member", targetID)
	}

	now := s.now()
	reactivated, err := s.members.Reactivate(ctx, conversationID, targetID, now)
	if err != nil {
		return nil, err
	}
	if !reactivated {
		m := &models.Member{
			ConversationID: conversationID,
			UserID:         targetID,
			Role:           models.RoleMember,
			Active:         true,
			JoinedAt:       now,
			LastReadAt:     now,
			LastActiveAt:   now,
		}
		if err := s.members.Insert(ctx, m); err != nil {
			return nil, err
		}
	}
	if err := s.convs.Touch(ctx, conversationID, now); err != nil {
		s.log.Warnw("conversation touch failed", "conversation_id", conversationID, "err", err)
	}
	return s.conversationView(ctx, conv, requesterID)
}

// RemoveMember deactivates a group membership. ADMIN only. The row survives
// so message attribution keeps working.
func (s *Service) RemoveMember(ctx context.Context, conversationID, targetID, requesterID string) error {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperr.Validation("cannot remove members from a private conversation")
	}
	if err := s.requireAdmin(ctx, conversationID, requesterID); err != nil {
		return err
	}

	target, err := s.members.Get(ctx, conversationID, targetID)
	if err != nil {
		return err
	}
	if !target.Active {
		return apperr.Validation("user %s is not currently a member", targetID)
	}

	now := s.now()
	if err := s.members.SetActive(ctx, conversationID, targetID, false, now); err != nil {
		return err
	}
	if err := s.convs.Touch(ctx, conversationID, now); err != nil {
		s.log.Warnw("conversation touch failed", "conversation_id", conversationID, "err", err)
	}
	return nil
}

// LeaveConversation deactivates the caller's own membership unconditionally.
func (s *Service) LeaveConversation(ctx context.Context, conversationID, userID string) error {
	if _, err := s.members.Get(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.members.SetActive(ctx, conversationID, userID, false, s.now())
}

// UpdateGroupInfo overwrites only the provided fields. ADMIN only.
func (s *Service) UpdateGroupInfo(ctx context.Context, conversationID, requesterID string, name, avatar *string) (*models.ConversationView, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, apperr.Validation("cannot update info of a private conversation")
	}
	if err := s.requireAdmin(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}
	if err := s.convs.UpdateGroupInfo(ctx, conversationID, name, avatar); err != nil {
		return nil, err
	}
	if name != nil {
		conv.GroupName = *name
	}
	if avatar != nil {
		conv.GroupAvatar = *avatar
	}
	return s.conversationView(ctx, conv, requesterID)
}

func (s *Service) requireAdmin(ctx context.Context, conversationID, userID string) error {
	m, err := s.members.Get(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Authorization("user %s is not a member of conversation %s", userID, conversationID)
		}
		return err
	}
	if !m.Active || m.Role != models.RoleAdmin {
		return apperr.Authorization("user %s is not an admin of conversation %s", userID, conversationID)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
