package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tagrally/tagrally/common/cache"
	"github.com/tagrally/tagrally/common/config"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/mongo"
	rediscommon "github.com/tagrally/tagrally/common/redis"
	"github.com/tagrally/tagrally/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize MongoDB (if not skipped)
	if !options.skipMongo {
		components.Logger.Info("connecting to mongo")
		components.Mongo, err = mongo.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}

		components.addCleanup(func() error {
			return components.Mongo.Close(context.Background())
		})
	}

	// 4. Initialize Redis (if not skipped)
	if !options.skipRedis {
		components.Logger.Info("connecting to redis", "addr", components.Config.RedisAddr())
		raw := goredis.NewClient(&goredis.Options{
			Addr:     components.Config.RedisAddr(),
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		})
		components.Redis = rediscommon.NewClient(raw, components.Logger)

		if err := components.Redis.Ping(ctx); err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return raw.Close()
		})
	}

	// 5. Initialize cache (if not skipped)
	if !options.skipCache && components.Config.Cache.Enabled {
		components.Logger.Info("initializing cache",
			"default_ttl", components.Config.Cache.DefaultTTL,
		)
		components.Cache = cache.NewMemoryCache(components.Logger)

		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	// 6. Initialize telemetry (if not skipped)
	if !options.skipTelemetry && components.Config.Telemetry.EnablePprof {
		components.Logger.Info("initializing telemetry")
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
			// Don't fail startup if telemetry fails
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"mongo", components.Mongo != nil,
		"redis", components.Redis != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
