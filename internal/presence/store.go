// Package presence tracks who is online. The live state is a redis key with
// a sliding TTL renewed by heartbeats; the key expiring is the only way a
// user goes offline without asking to.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LiveStore is the TTL side of presence. Absence of an entry is "offline".
type LiveStore interface {
	// Refresh upserts the entry with the given TTL and reports whether it
	// existed before the call.
	Refresh(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, userID string) (bool, error)
	Remove(ctx context.Context, userID string) error
	// Expirations delivers the user IDs of entries whose TTL lapsed. The
	// channel closes when ctx is done.
	Expirations(ctx context.Context) (<-chan string, error)
}

type redisStore struct {
	client *redis.Client
	prefix string
	db     int
}

func NewRedisStore(client *redis.Client, prefix string, db int) LiveStore {
	// Expiry events need keyspace notifications; enabling them here is
	// best-effort, managed redis may lock the config down.
	_ = client.ConfigSet(context.Background(), "notify-keyspace-events", "Ex").Err()
	return &redisStore{client: client, prefix: prefix, db: db}
}

func (s *redisStore) key(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *redisStore) Refresh(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	key := s.key(userID)
	pipe := s.client.TxPipeline()
	existsCmd := pipe.Exists(ctx, key)
	pipe.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return existsCmd.Val() > 0, nil
}

func (s *redisStore) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Remove(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *redisStore) Expirations(ctx context.Context) (<-chan string, error) {
	channel := fmt.Sprintf("__keyevent@%d__:expired", s.db)
	sub := s.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan string)
	keyPrefix := s.prefix + ":user:"
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !strings.HasPrefix(msg.Payload, keyPrefix) {
					continue
				}
				select {
				case out <- strings.TrimPrefix(msg.Payload, keyPrefix):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
