package bootstrap

import (
	"context"
	"fmt"

	"github.com/tagrally/tagrally/common/cache"
	"github.com/tagrally/tagrally/common/config"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/mongo"
	rediscommon "github.com/tagrally/tagrally/common/redis"
	"github.com/tagrally/tagrally/common/telemetry"
)

// Components holds all initialized service dependencies
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	Mongo     *mongo.DB
	Redis     *rediscommon.Client
	Cache     cache.Cache
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errors []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errors = append(errors, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("shutdown errors: %v", errors)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks health of all components
func (c *Components) Health(ctx context.Context) error {
	if c.Mongo != nil {
		if err := c.Mongo.Health(ctx); err != nil {
			return fmt.Errorf("mongo unhealthy: %w", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
