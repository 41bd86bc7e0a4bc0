package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Client wraps redis.Client with the operations the promotion queue and rate
// limiter need, plus instrumentation.
type Client struct {
	redis  *redis.Client
	logger Logger
}

// NewClient creates a new Redis client wrapper
func NewClient(redisClient *redis.Client, logger Logger) *Client {
	return &Client{
		redis:  redisClient,
		logger: logger,
	}
}

// GetUnderlying returns the underlying redis.Client for advanced operations
func (c *Client) GetUnderlying() *redis.Client {
	return c.redis
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Set sets a key with optional expiration (0 = no expiration)
func (c *Client) Set(ctx context.Context, key, value string, expiry time.Duration) error {
	err := c.redis.Set(ctx, key, value, expiry).Err()
	if err != nil {
		c.logger.Error("redis SET failed", "key", key, "error", err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	c.logger.Debug("redis SET", "key", key)
	return nil
}

// Get retrieves a value by key. Returns found=false when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		c.logger.Debug("redis GET key not found", "key", key)
		return "", false, nil
	}
	if err != nil {
		c.logger.Error("redis GET failed", "key", key, "error", err)
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	c.logger.Debug("redis GET", "key", key)
	return val, true, nil
}

// SetNX sets a key only if it doesn't exist (for idempotency checks)
func (c *Client) SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error) {
	wasSet, err := c.redis.SetNX(ctx, key, value, expiry).Result()
	if err != nil {
		c.logger.Error("redis SETNX failed", "key", key, "error", err)
		return false, fmt.Errorf("failed to setnx key %s: %w", key, err)
	}
	c.logger.Debug("redis SETNX", "key", key, "was_set", wasSet)
	return wasSet, nil
}

// Delete removes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	err := c.redis.Del(ctx, keys...).Err()
	if err != nil {
		c.logger.Error("redis DEL failed", "keys", keys, "error", err)
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	c.logger.Debug("redis DEL", "keys", keys)
	return nil
}

// AddToSortedSet adds a member with the given score
func (c *Client) AddToSortedSet(ctx context.Context, key string, score float64, member string) error {
	err := c.redis.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	if err != nil {
		c.logger.Error("redis ZADD failed", "key", key, "member", member, "error", err)
		return fmt.Errorf("failed to zadd to %s: %w", key, err)
	}
	c.logger.Debug("redis ZADD", "key", key, "member", member, "score", score)
	return nil
}

// RangeSortedSetByScore returns up to count members with score <= max,
// lowest scores first.
func (c *Client) RangeSortedSetByScore(ctx context.Context, key string, max float64, count int64) ([]string, error) {
	members, err := c.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", max),
		Count: count,
	}).Result()
	if err != nil {
		c.logger.Error("redis ZRANGEBYSCORE failed", "key", key, "error", err)
		return nil, fmt.Errorf("failed to zrangebyscore %s: %w", key, err)
	}
	c.logger.Debug("redis ZRANGEBYSCORE", "key", key, "count", len(members))
	return members, nil
}

// RemoveFromSortedSet removes a member and reports whether it was present.
// ZREM is atomic, so concurrent removers see exactly one winner.
func (c *Client) RemoveFromSortedSet(ctx context.Context, key, member string) (bool, error) {
	removed, err := c.redis.ZRem(ctx, key, member).Result()
	if err != nil {
		c.logger.Error("redis ZREM failed", "key", key, "member", member, "error", err)
		return false, fmt.Errorf("failed to zrem from %s: %w", key, err)
	}
	c.logger.Debug("redis ZREM", "key", key, "member", member, "removed", removed)
	return removed > 0, nil
}

// SortedSetScore returns a member's score. found=false when the member is
// absent.
func (c *Client) SortedSetScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := c.redis.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		c.logger.Error("redis ZSCORE failed", "key", key, "member", member, "error", err)
		return 0, false, fmt.Errorf("failed to zscore %s: %w", key, err)
	}
	return score, true, nil
}
