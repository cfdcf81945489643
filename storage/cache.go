package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type settingsBackend interface {
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID string, s domain.Settings) error
}

type membershipBackend interface {
	MemberRole(ctx context.Context, projectID, userID string) (domain.Role, error)
}

// Cache wraps settings and membership lookups with a redis read-through cache.
// Redis failures fall back to the backing store.
type Cache struct {
	settings settingsBackend
	members  membershipBackend
	redis    *redis.Client
	ttl      time.Duration
}

// NewCache creates a caching wrapper using the provided redis client and TTL.
func NewCache(settings settingsBackend, members membershipBackend, client *redis.Client, ttl time.Duration) *Cache {
	if settings == nil || members == nil {
		panic("storage.NewCache: backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{settings: settings, members: members, redis: client, ttl: ttl}
}

func (c *Cache) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	var s domain.Settings
	if c.load(ctx, settingsCacheKey(userID), &s) {
		return s, nil
	}
	s, err := c.settings.FetchSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, err
	}
	c.store(ctx, settingsCacheKey(userID), s)
	return s, nil
}

func (c *Cache) SaveSettings(ctx context.Context, userID string, s domain.Settings) error {
	if err := c.settings.SaveSettings(ctx, userID, s); err != nil {
		return err
	}
	c.store(ctx, settingsCacheKey(userID), s)
	return nil
}

// MemberRole caches positive membership lookups only, so a fresh invite is
// visible immediately.
func (c *Cache) MemberRole(ctx context.Context, projectID, userID string) (domain.Role, error) {
	var role domain.Role
	key := memberCacheKey(projectID, userID)
	if c.load(ctx, key, &role) {
		return role, nil
	}
	role, err := c.members.MemberRole(ctx, projectID, userID)
	if err != nil {
		return "", err
	}
	c.store(ctx, key, role)
	return role, nil
}

// EvictMember drops a cached membership after it changed.
func (c *Cache) EvictMember(ctx context.Context, projectID, userID string) {
	c.evict(ctx, memberCacheKey(projectID, userID))
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func settingsCacheKey(userID string) string {
	return "settings:" + userID
}

func memberCacheKey(projectID, userID string) string {
	return "member:" + projectID + ":" + userID
}
