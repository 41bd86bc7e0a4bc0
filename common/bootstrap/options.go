package bootstrap

import (
	"github.com/tagrally/tagrally/common/config"
	"github.com/tagrally/tagrally/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipMongo     bool
	skipRedis     bool
	skipCache     bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
}

// WithoutMongo skips MongoDB initialization
func WithoutMongo() Option {
	return func(o *options) {
		o.skipMongo = true
	}
}

// WithoutRedis skips Redis initialization
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
	}
}

// WithoutCache skips cache initialization
func WithoutCache() Option {
	return func(o *options) {
		o.skipCache = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

func defaultOptions() *options {
	return &options{}
}
