package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

type ConversationRepo interface {
	Insert(ctx context.Context, c *models.Conversation) error
	Get(ctx context.Context, id string) (*models.Conversation, error)
	UpdateGroupInfo(ctx context.Context, id string, name, avatar *string) error
	// AdvanceLastMessageAt moves last_message_at forward, never backward.
	AdvanceLastMessageAt(ctx context.Context, id string, at time.Time) error
	Touch(ctx context.Context, id string, at time.Time) error
}

type conversationRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewConversationRepo(m *Mongo) ConversationRepo {
	return &conversationRepo{coll: m.Conversations, timeout: m.Timeout}
}

func (r *conversationRepo) Insert(ctx context.Context, c *models.Conversation) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	if c.ID == "" {
		c.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return apperr.Transient("insert conversation", err)
	}
	return nil
}

func (r *conversationRepo) Get(ctx context.Context, id string) (*models.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	var c models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFound("conversation %s", id)
		}
		return nil, apperr.Transient("get conversation", err)
	}
	return &c, nil
}

func (r *conversationRepo) UpdateGroupInfo(ctx context.Context, id string, name, avatar *string) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if name != nil {
		set["group_name"] = *name
	}
	if avatar != nil {
		set["group_avatar"] = *avatar
	}
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return apperr.Transient("update group info", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("conversation %s", id)
	}
	return nil
}

func (r *conversationRepo) AdvanceLastMessageAt(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{
		"$max": bson.M{"last_message_at": at},
		"$set": bson.M{"updated_at": at},
	}
	if _, err := r.coll.UpdateByID(ctx, id, update); err != nil {
		return apperr.Transient("advance last_message_at", err)
	}
	return nil
}

func (r *conversationRepo) Touch(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"updated_at": at}}); err != nil {
		return apperr.Transient("touch conversation", err)
	}
	return nil
}
