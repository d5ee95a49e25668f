// internal/services/promotion_cache.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PromotionCache memoizes the "has active promotion" flag per product id.
type PromotionCache interface {
	// GetMany returns the cached flags; ids without an entry are absent.
	GetMany(ctx context.Context, productIDs []string) (map[string]bool, error)
	SetMany(ctx context.Context, flags map[string]bool) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

const promotionCachePrefix = "promo:active:"

type RedisPromotionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPromotionCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisPromotionCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logrus.WithField("addr", addr).Info("Redis connected")
	return NewRedisPromotionCacheFromClient(rdb, ttl), nil
}

func NewRedisPromotionCacheFromClient(client *redis.Client, ttl time.Duration) *RedisPromotionCache {
	return &RedisPromotionCache{client: client, ttl: ttl}
}

func (c *RedisPromotionCache) Close() error {
	return c.client.Close()
}

func (c *RedisPromotionCache) GetMany(ctx context.Context, productIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = promotionCachePrefix + id
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read promotion cache: %w", err)
	}

	for i, v := range values {
		if s, ok := v.(string); ok {
			result[productIDs[i]] = s == "1"
		}
	}
	return result, nil
}

func (c *RedisPromotionCache) SetMany(ctx context.Context, flags map[string]bool) error {
	if len(flags) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for id, active := range flags {
		value := "0"
		if active {
			value = "1"
		}
		pipe.Set(ctx, promotionCachePrefix+id, value, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write promotion cache: %w", err)
	}
	return nil
}

func (c *RedisPromotionCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = promotionCachePrefix + id
	}
	return c.client.Del(ctx, keys...).Err()
}

type cacheEntry struct {
	active    bool
	expiresAt time.Time
}

// MemoryPromotionCache is the single-process fallback when Redis is not
// configured. Expired entries are dropped when read and swept on every write.
type MemoryPromotionCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryPromotionCache(ttl time.Duration) *MemoryPromotionCache {
	return &MemoryPromotionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryPromotionCache) GetMany(_ context.Context, productIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(productIDs))
	now := c.now()

	c.mu.RLock()
	var expired []string
	for _, id := range productIDs {
		entry, ok := c.entries[id]
		if !ok {
			continue
		}
		if now.After(entry.expiresAt) {
			expired = append(expired, id)
			continue
		}
		result[id] = entry.active
	}
	c.mu.RUnlock()

	if len(expired) > 0 {
		c.mu.Lock()
		for _, id := range expired {
			if entry, ok := c.entries[id]; ok && now.After(entry.expiresAt) {
				delete(c.entries, id)
			}
		}
		c.mu.Unlock()
	}
	return result, nil
}

func (c *MemoryPromotionCache) SetMany(_ context.Context, flags map[string]bool) error {
	now := c.now()
	expiresAt := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
	for id, active := range flags {
		c.entries[id] = cacheEntry{active: active, expiresAt: expiresAt}
	}
	return nil
}

func (c *MemoryPromotionCache) Invalidate(_ context.Context, productIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range productIDs {
		delete(c.entries, id)
	}
	return nil
}

// noopPromotionCache disables caching.
type noopPromotionCache struct{}

func (noopPromotionCache) GetMany(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (noopPromotionCache) SetMany(context.Context, map[string]bool) error { return nil }

func (noopPromotionCache) Invalidate(context.Context, ...string) error { return nil }
