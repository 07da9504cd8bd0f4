package repository

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

type MessageRepo interface {
	Insert(ctx context.Context, m *models.Message) error
	// Get returns a non-deleted message.
	Get(ctx context.Context, id string) (*models.Message, error)
	// List returns non-deleted messages in chronological order, at most limit,
	// optionally only those created before the given instant.
	List(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error)
	// After returns non-deleted messages created strictly after the instant,
	// in chronological order.
	After(ctx context.Context, conversationID string, after time.Time) ([]*models.Message, error)
	// Latest returns the most recent non-deleted message, or nil.
	Latest(ctx context.Context, conversationID string) (*models.Message, error)
	CountUnread(ctx context.Context, conversationID string, after time.Time, excludeSender string) (int64, error)
	SetContent(ctx context.Context, id, content string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// AppendSeenBy atomically appends a seen_by entry for the user unless one
	// already exists, flipping status to SEEN. Returns whether it appended.
	AppendSeenBy(ctx context.Context, id, userID string, at time.Time) (bool, error)
	Search(ctx context.Context, conversationID, text string) ([]*models.Message, error)
}

type messageRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMessageRepo(m *Mongo) MessageRepo {
	return &messageRepo{coll: m.Messages, timeout: m.Timeout}
}

func (r *messageRepo) Insert(ctx context.Context, m *models.Message) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	if m.ID == "" {
		m.ID = primitive.NewObjectID().Hex()
	}
	if m.SeenBy == nil {
		m.SeenBy = []models.SeenBy{}
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return apperr.Transient("insert message", err)
	}
	return nil
}

func (r *messageRepo) Get(ctx context.Context, id string) (*models.Message, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	var m models.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFound("message %s", id)
		}
		return nil, apperr.Transient("get message", err)
	}
	return &m, nil
}

func (r *messageRepo) List(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "deleted": false}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	out, err := r.findAll(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	// newest-first page flipped back to log order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepo) After(ctx context.Context, conversationID string, after time.Time) ([]*models.Message, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"deleted":         false,
		"created_at":      bson.M{"$gt": after},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.findAll(ctx, filter, opts)
}

func (r *messageRepo) Latest(ctx context.Context, conversationID string) (*models.Message, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "deleted": false}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var m models.Message
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperr.Transient("get latest message", err)
	}
	return &m, nil
}

func (r *messageRepo) CountUnread(ctx context.Context, conversationID string, after time.Time, excludeSender string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"deleted":         false,
		"created_at":      bson.M{"$gt": after},
		"sender_id":       bson.M{"$ne": excludeSender},
	}
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, apperr.Transient("count unread", err)
	}
	return n, nil
}

func (r *messageRepo) SetContent(ctx context.Context, id, content string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"_id": id, "deleted": false}
	update := bson.M{"$set": bson.M{"content": content, "edited": true, "updated_at": at}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Transient("edit message", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("message %s", id)
	}
	return nil
}

func (r *messageRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"_id": id, "deleted": false}
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": at}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Transient("delete message", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("message %s", id)
	}
	return nil
}

func (r *messageRepo) AppendSeenBy(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	// The filter excludes docs that already carry the user, so two racing
	// readers can both call this and exactly one push happens per user.
	filter := bson.M{
		"_id":             id,
		"deleted":         false,
		"seen_by.user_id": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{"seen_by": models.SeenBy{UserID: userID, SeenAt: at}},
		"$set":  bson.M{"status": models.StatusSeen, "updated_at": at},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, apperr.Transient("append seen_by", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *messageRepo) Search(ctx context.Context, conversationID, text string) ([]*models.Message, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"deleted":         false,
		"content":         primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"},
	}
	return r.findAll(ctx, filter, nil)
}

func (r *messageRepo) findAll(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Message, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = r.coll.Find(ctx, filter, opts)
	} else {
		cur, err = r.coll.Find(ctx, filter)
	}
	if err != nil {
		return nil, apperr.Transient("find messages", err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, apperr.Transient("decode message", err)
		}
		out = append(out, &m)
	}
	return out, nil
}
