package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Result contains the outcome of a rate limit check
type Result struct {
	Allowed           bool
	CurrentCount      int64
	Limit             int64
	RetryAfterSeconds int64
}

// RateLimiter provides fixed-window rate limiting using Redis + Lua. The
// counter increment, expiry, and limit comparison run in one script, so
// concurrent checks never double-admit.
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewRateLimiter creates a new rate limiter with embedded Lua script
func NewRateLimiter(redisClient *redis.Client, logger Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

// CheckLimit checks the counter behind key against limit within windowSec
func (r *RateLimiter) CheckLimit(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	result, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// Parse result array: {allowed, current_count, limit, retry_after}
	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 4 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	values := make([]int64, 4)
	for i, v := range resultArray {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected rate limit script value at %d: %v", i, v)
		}
		values[i] = n
	}

	res := &Result{
		Allowed:           values[0] == 1,
		CurrentCount:      values[1],
		Limit:             values[2],
		RetryAfterSeconds: values[3],
	}

	if !res.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", res.CurrentCount,
			"limit", res.Limit,
			"retry_after", res.RetryAfterSeconds)
	}

	return res, nil
}

// PlayerLimiter bounds how fast a single player may post tags. It carries its
// limit and window so callers only supply the player ID.
type PlayerLimiter struct {
	limiter   *RateLimiter
	limit     int64
	windowSec int
}

// NewPlayerLimiter creates a per-player posting limiter
func NewPlayerLimiter(limiter *RateLimiter, limit int64, windowSec int) *PlayerLimiter {
	return &PlayerLimiter{
		limiter:   limiter,
		limit:     limit,
		windowSec: windowSec,
	}
}

// CheckPlayerLimit reports whether the player may post another tag now
func (p *PlayerLimiter) CheckPlayerLimit(ctx context.Context, playerID string) (bool, int64, error) {
	key := fmt.Sprintf("rate_limit:player:%s", playerID)
	res, err := p.limiter.CheckLimit(ctx, key, p.limit, p.windowSec)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfterSeconds, nil
}
