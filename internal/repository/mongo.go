package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo bundles the client, the collections the chat core owns, and the
// per-call timeout the repositories fall back to.
type Mongo struct {
	Client        *mongo.Client
	DB            *mongo.Database
	Conversations *mongo.Collection
	Members       *mongo.Collection
	Messages      *mongo.Collection
	UserStatus    *mongo.Collection
	Timeout       time.Duration
}

func NewMongo(ctx context.Context, uri, database string, timeout time.Duration) (*Mongo, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(database)
	m := &Mongo{
		Client:        client,
		DB:            db,
		Conversations: db.Collection("conversations"),
		Members:       db.Collection("members"),
		Messages:      db.Collection("messages"),
		UserStatus:    db.Collection("user_status"),
		Timeout:       timeout,
	}
	m.ensureIndexes(ctx)
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) {
	_, _ = m.Members.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("conv_user_idx"),
	})
	_, _ = m.Members.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}},
		Options: options.Index().SetName("user_active_idx"),
	})
	_, _ = m.Messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("conv_created_idx"),
	})
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// ensureTimeout caps repo calls that arrive without a deadline so a stuck
// store fails the operation instead of hanging it. A caller deadline wins;
// a non-positive timeout falls back to the default.
func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

const defaultTimeout = 5 * time.Second
