package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

// In-memory repositories mirroring the mongo implementations closely enough
// to exercise the service semantics: soft deletes, guarded seen_by appends,
// watermark swap returning the previous row.

type memConvs struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*models.Conversation
}

func newMemConvs() *memConvs {
	return &memConvs{byID: make(map[string]*models.Conversation)}
}

func (r *memConvs) Insert(_ context.Context, c *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c.ID = fmt.Sprintf("conv-%d", r.seq)
	cp := *c
	r.byID[c.ID] = &cp
	return nil
}

func (r *memConvs) Get(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, apperr.NotFound("conversation %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r *memConvs) UpdateGroupInfo(_ context.Context, id string, name, avatar *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return apperr.NotFound("conversation %s not found", id)
	}
	if name != nil {
		c.GroupName = *name
	}
	if avatar != nil {
		c.GroupAvatar = *avatar
	}
	return nil
}

func (r *memConvs) AdvanceLastMessageAt(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return apperr.NotFound("conversation %s not found", id)
	}
	if at.After(c.LastMessageAt) {
		c.LastMessageAt = at
	}
	return nil
}

func (r *memConvs) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		c.UpdatedAt = at
	}
	return nil
}

type memMembers struct {
	mu   sync.Mutex
	rows map[string]*models.Member // conversationID|userID
}

func newMemMembers() *memMembers {
	return &memMembers{rows: make(map[string]*models.Member)}
}

func memberKey(conversationID, userID string) string {
	return conversationID + "|" + userID
}

func (r *memMembers) Insert(_ context.Context, m *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memberKey(m.ConversationID, m.UserID)
	if _, ok := r.rows[k]; ok {
		return apperr.Conflict("member %s already exists in conversation %s", m.UserID, m.ConversationID)
	}
	if m.ID == "" {
		m.ID = k
	}
	cp := *m
	r.rows[k] = &cp
	return nil
}

func (r *memMembers) Get(_ context.Context, conversationID, userID string) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[memberKey(conversationID, userID)]
	if !ok {
		return nil, apperr.NotFound("user %s not in conversation %s", userID, conversationID)
	}
	cp := *m
	return &cp, nil
}

func (r *memMembers) ByConversation(_ context.Context, conversationID string) ([]*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Member
	for _, m := range r.rows {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMembers) ActiveByUser(_ context.Context, userID string) ([]*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Member
	for _, m := range r.rows {
		if m.UserID == userID && m.Active {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMembers) CountActive(_ context.Context, conversationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.ConversationID == conversationID && m.Active {
			n++
		}
	}
	return n, nil
}

func (r *memMembers) ExistsActive(_ context.Context, conversationID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[memberKey(conversationID, userID)]
	return ok && m.Active, nil
}

func (r *memMembers) SetActive(_ context.Context, conversationID, userID string, active bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[memberKey(conversationID, userID)]
	if !ok {
		return apperr.NotFound("user %s not in conversation %s", userID, conversationID)
	}
	m.Active = active
	m.LastActiveAt = at
	return nil
}

func (r *memMembers) Reactivate(_ context.Context, conversationID, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[memberKey(conversationID, userID)]
	if !ok || m.Active {
		return false, nil
	}
	m.Active = true
	m.JoinedAt = at
	m.LastReadAt = at
	m.LastActiveAt = at
	return true, nil
}

func (r *memMembers) AdvanceLastRead(_ context.Context, conversationID, userID string, at time.Time) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[memberKey(conversationID, userID)]
	if !ok {
		return nil, apperr.NotFound("user %s not in conversation %s", userID, conversationID)
	}
	prev := *m
	m.LastReadAt = at
	m.LastActiveAt = at
	return &prev, nil
}

func (r *memMembers) TouchLastActive(_ context.Context, conversationID, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.rows[memberKey(conversationID, userID)]; ok {
		m.LastActiveAt = at
	}
	return nil
}

func (r *memMembers) SetTyping(_ context.Context, conversationID, userID string, typing bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[memberKey(conversationID, userID)]
	if !ok {
		return apperr.NotFound("user %s not in conversation %s", userID, conversationID)
	}
	m.Typing = typing
	if typing {
		t := at
		m.TypingStartedAt = &t
	} else {
		m.TypingStartedAt = nil
	}
	return nil
}

func (r *memMembers) TypingMembers(_ context.Context, conversationID string) ([]*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Member
	for _, m := range r.rows {
		if m.ConversationID == conversationID && m.Active && m.Typing {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memMessages struct {
	mu   sync.Mutex
	seq  int
	rows []*models.Message
}

func newMemMessages() *memMessages {
	return &memMessages{}
}

func (r *memMessages) Insert(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.ID = fmt.Sprintf("msg-%d", r.seq)
	cp := *m
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memMessages) Get(_ context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id && !m.Deleted {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("message %s not found", id)
}

func (r *memMessages) List(_ context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.Message
	for _, m := range r.rows {
		if m.ConversationID != conversationID || m.Deleted {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		cp := *m
		all = append(all, &cp)
	}
	// rows are insertion-ordered, so take the newest tail
	if int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	return all, nil
}

func (r *memMessages) After(_ context.Context, conversationID string, after time.Time) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.rows {
		if m.ConversationID == conversationID && !m.Deleted && m.CreatedAt.After(after) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMessages) Latest(_ context.Context, conversationID string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		m := r.rows[i]
		if m.ConversationID == conversationID && !m.Deleted {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memMessages) CountUnread(_ context.Context, conversationID string, after time.Time, excludeSender string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.ConversationID == conversationID && !m.Deleted &&
			m.CreatedAt.After(after) && m.SenderID != excludeSender {
			n++
		}
	}
	return n, nil
}

func (r *memMessages) SetContent(_ context.Context, id, content string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id && !m.Deleted {
			m.Content = content
			m.Edited = true
			m.UpdatedAt = at
			return nil
		}
	}
	return apperr.NotFound("message %s not found", id)
}

func (r *memMessages) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id && !m.Deleted {
			m.Deleted = true
			m.UpdatedAt = at
			return nil
		}
	}
	return apperr.NotFound("message %s not found", id)
}

func (r *memMessages) AppendSeenBy(_ context.Context, id, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID != id {
			continue
		}
		if m.SeenByUser(userID) {
			return false, nil
		}
		m.SeenBy = append(m.SeenBy, models.SeenBy{UserID: userID, SeenAt: at})
		m.Status = models.StatusSeen
		return true, nil
	}
	return false, apperr.NotFound("message %s not found", id)
}

func (r *memMessages) Search(_ context.Context, conversationID, text string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(text)
	var out []*models.Message
	for _, m := range r.rows {
		if m.ConversationID == conversationID && !m.Deleted &&
			strings.Contains(strings.ToLower(m.Content), needle) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memUsers struct {
	mu   sync.Mutex
	rows map[string]*models.UserStatus
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[string]*models.UserStatus)}
}

func (r *memUsers) put(u models.UserStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[u.UserID] = &u
}

func (r *memUsers) Get(_ context.Context, userID string) (*models.UserStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[userID]
	if !ok {
		return nil, apperr.NotFound("user %s not found", userID)
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) SetOnline(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[userID]
	if !ok {
		u = &models.UserStatus{UserID: userID}
		r.rows[userID] = u
	}
	u.Online = true
	u.LastActiveAt = at
	return nil
}

func (r *memUsers) SetOffline(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[userID]
	if !ok {
		u = &models.UserStatus{UserID: userID}
		r.rows[userID] = u
	}
	u.Online = false
	u.LastActiveAt = at
	return nil
}

// recordingBroadcaster captures fan-out without any sockets.

type topicDelivery struct {
	ConversationID string
	Event          models.Event
}

type queueDelivery struct {
	UserID string
	Queue  string
	Event  models.Event
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	topics []topicDelivery
	queues []queueDelivery
}

func (b *recordingBroadcaster) ToConversation(conversationID string, ev models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topicDelivery{ConversationID: conversationID, Event: ev})
}

func (b *recordingBroadcaster) ToUser(userID, queue string, ev models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues = append(b.queues, queueDelivery{UserID: userID, Queue: queue, Event: ev})
}

func (b *recordingBroadcaster) queued(userID, queue string) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Event
	for _, d := range b.queues {
		if d.UserID == userID && d.Queue == queue {
			out = append(out, d.Event)
		}
	}
	return out
}

func (b *recordingBroadcaster) topicEvents(conversationID string) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Event
	for _, d := range b.topics {
		if d.ConversationID == conversationID {
			out = append(out, d.Event)
		}
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *recordingSink) Publish(_ context.Context, _ string, ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc     *Service
	convs   *memConvs
	members *memMembers
	msgs    *memMessages
	users   *memUsers
	bc      *recordingBroadcaster
	sink    *recordingSink
	clock   *fakeClock
}

func newFixture() *fixture {
	f := &fixture{
		convs:   newMemConvs(),
		members: newMemMembers(),
		msgs:    newMemMessages(),
		users:   newMemUsers(),
		bc:      &recordingBroadcaster{},
		sink:    &recordingSink{},
		clock:   &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = NewService(f.convs, f.members, f.msgs, f.users, f.bc, f.sink, Config{
		TypingWindow:     5 * time.Second,
		MaxContentLength: 5000,
		HistoryPageSize:  50,
	}, zap.NewNop().Sugar())
	f.svc.now = f.clock.Now
	return f
}
