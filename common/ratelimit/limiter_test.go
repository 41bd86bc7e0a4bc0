package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagrally/tagrally/common/logger"
)

func setupLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client, logger.New("error", "json")), mr
}

func TestCheckLimit_AllowsUpToLimit(t *testing.T) {
	limiter, _ := setupLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := limiter.CheckLimit(ctx, "rate_limit:test", 3, 60)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(i), res.CurrentCount)
	}

	res, err := limiter.CheckLimit(ctx, "rate_limit:test", 3, 60)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(4), res.CurrentCount)
	assert.Positive(t, res.RetryAfterSeconds)
}

func TestCheckLimit_WindowResets(t *testing.T) {
	limiter, mr := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.CheckLimit(ctx, "rate_limit:test", 1, 60)
		require.NoError(t, err)
		if i == 0 {
			assert.True(t, res.Allowed)
		} else {
			assert.False(t, res.Allowed)
		}
	}

	mr.FastForward(61 * time.Second)

	res, err := limiter.CheckLimit(ctx, "rate_limit:test", 1, 60)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.CurrentCount, "counter restarts in a fresh window")
}

func TestPlayerLimiter(t *testing.T) {
	limiter, _ := setupLimiter(t)
	ctx := context.Background()

	players := NewPlayerLimiter(limiter, 2, 60)

	for i := 0; i < 2; i++ {
		allowed, _, err := players.CheckPlayerLimit(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := players.CheckPlayerLimit(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)

	// Limits are per player.
	allowed, _, err = players.CheckPlayerLimit(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, allowed)
}
