package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/social-app/chat-service/internal/apperr"
	"github.com/yourorg/social-app/chat-service/internal/models"
)

// UserRepo reads display fields and keeps the durable side of presence. The
// live online flag lives in redis; this record is what REST status reads and
// "last seen" strings fall back to once the live entry expires.
type UserRepo interface {
	Get(ctx context.Context, userID string) (*models.UserStatus, error)
	SetOnline(ctx context.Context, userID string, at time.Time) error
	SetOffline(ctx context.Context, userID string, at time.Time) error
}

type userRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewUserRepo(m *Mongo) UserRepo {
	return &userRepo{coll: m.UserStatus, timeout: m.Timeout}
}

func (r *userRepo) Get(ctx context.Context, userID string) (*models.UserStatus, error) {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	var u models.UserStatus
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFound("user %s", userID)
		}
		return nil, apperr.Transient("get user status", err)
	}
	return &u, nil
}

func (r *userRepo) SetOnline(ctx context.Context, userID string, at time.Time) error {
	return r.set(ctx, userID, true, at)
}

func (r *userRepo) SetOffline(ctx context.Context, userID string, at time.Time) error {
	return r.set(ctx, userID, false, at)
}

func (r *userRepo) set(ctx context.Context, userID string, online bool, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"online": online, "last_active_at": at}}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateByID(ctx, userID, update, opts); err != nil {
		return apperr.Transient("set user status", err)
	}
	return nil
}
