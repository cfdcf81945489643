package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTokenTTL is how long a submission token blocks a resend.
const DefaultTokenTTL = 10 * time.Minute

// RedisDeduper stores client submission tokens in Redis so all API instances
// agree on which submissions were already accepted.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RedisDeduper{client: client, ttl: ttl, prefix: "dedupe"}
}

func (r *RedisDeduper) key(userID, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, userID, key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key so the client may retry after a
// failed write.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}
