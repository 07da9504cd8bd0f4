package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

func TestCreateGroupConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob", "carol"},
		IsGroup:   true,
		GroupName: "weekend plans",
	})
	require.NoError(t, err)
	assert.True(t, v.IsGroup)
	assert.Equal(t, "weekend plans", v.GroupName)
	assert.Len(t, v.Members, 3)

	roles := map[string]string{}
	for _, m := range v.Members {
		roles[m.UserID] = m.Role
	}
	assert.Equal(t, models.RoleAdmin, roles["alice"])
	assert.Equal(t, models.RoleMember, roles["bob"])
	assert.Equal(t, models.RoleMember, roles["carol"])
}

func TestCreateConversationValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"alice"},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateConversationDeduplicatesMembers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob", "bob", "", "alice"},
		IsGroup:   true,
	})
	require.NoError(t, err)
	assert.Len(t, v.Members, 2)
}

func TestPrivateConversationIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
	})
	require.NoError(t, err)

	second, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// the other side finds the same conversation too
	third, err := f.svc.GetOrCreatePrivateConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
}

func TestGetOrCreatePrivateRejectsSelf(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// a self lookup must not match alice's existing 1:1 with bob
	existing, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
	})
	require.NoError(t, err)
	require.NotNil(t, existing)

	_, err = f.svc.GetOrCreatePrivateConversation(ctx, "alice", "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPrivateLookupSkipsTwoPersonGroups(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	group, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
		IsGroup:   true,
		GroupName: "tiny group",
	})
	require.NoError(t, err)

	direct, err := f.svc.GetOrCreatePrivateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.NotEqual(t, group.ID, direct.ID)
	assert.False(t, direct.IsGroup)
}

func TestAddMemberRequiresAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
		IsGroup:   true,
	})
	require.NoError(t, err)

	_, err = f.svc.AddMember(ctx, v.ID, "carol", "bob")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = f.svc.AddMember(ctx, v.ID, "carol", "alice")
	assert.NoError(t, err)

	_, err = f.svc.AddMember(ctx, v.ID, "carol", "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation, "already a member")
}

func TestAddMemberRejectedOnPrivateConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
	})
	require.NoError(t, err)

	_, err = f.svc.AddMember(ctx, v.ID, "carol", "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReAddedMemberGetsFreshWatermark(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob", "carol"},
		IsGroup:   true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveMember(ctx, v.ID, "carol", "alice"))

	f.clock.Advance(time.Minute)
	_, err = f.svc.SendMessage(ctx, "alice", SendMessageInput{
		ConversationID: v.ID, Content: "while you were gone",
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.AddMember(ctx, v.ID, "carol", "alice")
	require.NoError(t, err)

	n, err := f.svc.UnreadCount(ctx, v.ID, "carol")
	require.NoError(t, err)
	assert.Zero(t, n, "history from before the re-join must not count unread")
}

func TestRemoveMemberKeepsRowInactive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
		IsGroup:   true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveMember(ctx, v.ID, "bob", "alice"))

	m, err := f.members.Get(ctx, v.ID, "bob")
	require.NoError(t, err)
	assert.False(t, m.Active)

	err = f.svc.RemoveMember(ctx, v.ID, "bob", "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation, "removing twice")
}

func TestLeaveConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob", "carol"},
		IsGroup:   true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.LeaveConversation(ctx, v.ID, "bob"))

	_, err = f.svc.GetConversation(ctx, v.ID, "bob")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	err = f.svc.LeaveConversation(ctx, v.ID, "stranger")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateGroupInfoPartial(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs:   []string{"bob"},
		IsGroup:     true,
		GroupName:   "old name",
		GroupAvatar: "old.png",
	})
	require.NoError(t, err)

	name := "new name"
	updated, err := f.svc.UpdateGroupInfo(ctx, v.ID, "alice", &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "new name", updated.GroupName)
	assert.Equal(t, "old.png", updated.GroupAvatar)

	_, err = f.svc.UpdateGroupInfo(ctx, v.ID, "bob", &name, nil)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestGetConversationsOrdering(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"bob"},
	})
	require.NoError(t, err)
	second, err := f.svc.CreateConversation(ctx, "alice", CreateConversationInput{
		MemberIDs: []string{"carol"},
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.SendMessage(ctx, "alice", SendMessageInput{
		ConversationID: first.ID, Content: "hello bob",
	})
	require.NoError(t, err)

	views, err := f.svc.GetConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, first.ID, views[0].ID, "conversation with newest message first")
	assert.Equal(t, second.ID, views[1].ID)
	assert.Equal(t, "hello bob", views[0].LastMessageContent)
}
