package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheTTL keeps rebuilt counters from going stale forever if a clear is
// ever missed; the next miss rebuilds from Postgres.
const cacheTTL = 10 * time.Minute

// UnreadStore rebuilds a counter from the durable store on cache miss.
type UnreadStore interface {
	CountUnread(ctx context.Context, senderID, recipientID string) (int64, error)
}

// UnreadCache keeps per-conversation unread counts in Redis: incremented
// when a message is created, dropped when the recipient acknowledges
// reading, and lazily rebuilt from Postgres when absent. The durable store
// stays the source of truth; the cache only spares it the hot-path COUNT.
type UnreadCache struct {
	rdb   *redis.Client
	store UnreadStore
}

func NewUnreadCache(rdb *redis.Client, store UnreadStore) *UnreadCache {
	return &UnreadCache{rdb: rdb, store: store}
}

func unreadKey(readerID, senderID string) string {
	return fmt.Sprintf("unread:%s:%s", readerID, senderID)
}

func (u *UnreadCache) Increment(ctx context.Context, senderID, recipientID string) error {
	key := unreadKey(recipientID, senderID)
	if err := u.rdb.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return u.rdb.Expire(ctx, key, cacheTTL).Err()
}

func (u *UnreadCache) Clear(ctx context.Context, readerID, senderID string) error {
	return u.rdb.Del(ctx, unreadKey(readerID, senderID)).Err()
}

// Count returns how many messages from senderID the reader has not read.
// On a cache miss the count is rebuilt from the store and cached.
func (u *UnreadCache) Count(ctx context.Context, readerID, senderID string) (int64, error) {
	n, err := u.rdb.Get(ctx, unreadKey(readerID, senderID)).Int64()
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	n, err = u.store.CountUnread(ctx, senderID, readerID)
	if err != nil {
		return 0, err
	}
	if err := u.rdb.Set(ctx, unreadKey(readerID, senderID), n, cacheTTL).Err(); err != nil {
		return n, nil // cache write failure is not the caller's problem
	}
	return n, nil
}
