package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

type MemberRepo interface {
	Insert(ctx context.Context, m *models.Member) error
	Get(ctx context.Context, conversationID, userID string) (*models.Member, error)
	ByConversation(ctx context.Context, conversationID string) ([]*models.Member, error)
	ActiveByUser(ctx context.Context, userID string) ([]*models.Member, error)
	CountActive(ctx context.Context, conversationID string) (int64, error)
	ExistsActive(ctx context.Context, conversationID, userID string) (bool, error)
	SetActive(ctx context.Context, conversationID, userID string, active bool, at time.Time) error
	Reactivate(ctx context.Context, conversationID, userID string, at time.Time) (bool, error)
	// AdvanceLastRead sets the watermark and returns the member as it was
	// before the write, so the caller sees the previous watermark even when
	// two reads race.
	AdvanceLastRead(ctx context.Context, conversationID, userID string, at time.Time) (*models.Member, error)
	TouchLastActive(ctx context.Context, conversationID, userID string, at time.Time) error
	SetTyping(ctx context.Context, conversationID, userID string, typing bool, at time.Time) error
	TypingMembers(ctx context.Context, conversationID string) ([]*models.Member, error)
}

type memberRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMemberRepo(m *Mongo) MemberRepo {
	return &memberRepo{coll: m.Members, timeout: m.Timeout}
}

func (r *memberRepo) Insert(ctx context.Context, m *models.Member) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	if m.ID == "" {
		m.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("member %s already exists in conversation %s", m.UserID, m.ConversationID)
		}
		return apperr.Transient("insert member", err)
	}
	return nil
}

func (r *memberRepo) Get(ctx context.Context, conversationID, userID string) (*models.Member, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	var m models.Member
	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	if err := r.coll.FindOne(ctx, filter).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFound("user %s not in conversation %s", userID, conversationID)
		}
		return nil, apperr.Transient("get member", err)
	}
	return &m, nil
}

func (r *memberRepo) ByConversation(ctx context.Context, conversationID string) ([]*models.Member, error) {
	return r.find(ctx, bson.M{"conversation_id": conversationID})
}

func (r *memberRepo) ActiveByUser(ctx context.Context, userID string) ([]*models.Member, error) {
	return r.find(ctx, bson.M{"user_id": userID, "active": true})
}

func (r *memberRepo) find(ctx context.Context, filter bson.M) ([]*models.Member, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Transient("find members", err)
	}
	defer cur.Close(ctx)

	var out []*models.Member
	for cur.Next(ctx) {
		var m models.Member
		if err := cur.Decode(&m); err != nil {
			return nil, apperr.Transient("decode member", err)
		}
		out = append(out, &m)
	}
	return out, nil
}

func (r *memberRepo) CountActive(ctx context.Context, conversationID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"conversation_id": conversationID, "active": true})
	if err != nil {
		return 0, apperr.Transient("count active members", err)
	}
	return n, nil
}

func (r *memberRepo) ExistsActive(ctx context.Context, conversationID, userID string) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "user_id": userID, "active": true}
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, apperr.Transient("check membership", err)
	}
	return n > 0, nil
}

func (r *memberRepo) SetActive(ctx context.Context, conversationID, userID string, active bool, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	update := bson.M{"$set": bson.M{"active": active, "last_active_at": at}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Transient("set member active", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("user %s not in conversation %s", userID, conversationID)
	}
	return nil
}

// Reactivate flips an inactive membership back on, resetting the watermark
// so history from before the re-join is not counted unread. Returns false
// when no inactive row exists.
func (r *memberRepo) Reactivate(ctx context.Context, conversationID, userID string, at time.Time) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "user_id": userID, "active": false}
	update := bson.M{"$set": bson.M{
		"active":         true,
		"joined_at":      at,
		"last_read_at":   at,
		"last_active_at": at,
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, apperr.Transient("reactivate member", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *memberRepo) AdvanceLastRead(ctx context.Context, conversationID, userID string, at time.Time) (*models.Member, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	update := bson.M{"$set": bson.M{"last_read_at": at, "last_active_at": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var prev models.Member
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prev); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFound("user %s not in conversation %s", userID, conversationID)
		}
		return nil, apperr.Transient("advance last_read_at", err)
	}
	return &prev, nil
}

func (r *memberRepo) TouchLastActive(ctx context.Context, conversationID, userID string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	if _, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_active_at": at}}); err != nil {
		return apperr.Transient("touch last_active_at", err)
	}
	return nil
}

func (r *memberRepo) SetTyping(ctx context.Context, conversationID, userID string, typing bool, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	var update bson.M
	if typing {
		update = bson.M{"$set": bson.M{"typing": true, "typing_started_at": at}}
	} else {
		update = bson.M{"$set": bson.M{"typing": false}, "$unset": bson.M{"typing_started_at": ""}}
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Transient("set typing", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("user %s not in conversation %s", userID, conversationID)
	}
	return nil
}

func (r *memberRepo) TypingMembers(ctx context.Context, conversationID string) ([]*models.Member, error) {
	return r.find(ctx, bson.M{"conversation_id": conversationID, "active": true, "typing": true})
}
