package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Promotion PromotionConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PromotionConfig holds promotion scheduler settings
type PromotionConfig struct {
	PollInterval time.Duration
	BatchSize    int64
	MaxAttempts  int
	BackoffBase  time.Duration
	Timezone     string
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// RateLimitConfig holds per-player tag creation limits
type RateLimitConfig struct {
	Enabled   bool
	Limit     int64
	WindowSec int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DB", "tagrally"),
			ConnectTimeout: getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
			QueryTimeout:   getEnvDuration("MONGO_QUERY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Promotion: PromotionConfig{
			PollInterval: getEnvDuration("PROMOTION_POLL_INTERVAL", 1*time.Second),
			BatchSize:    int64(getEnvInt("PROMOTION_BATCH_SIZE", 100)),
			MaxAttempts:  getEnvInt("PROMOTION_MAX_ATTEMPTS", 5),
			BackoffBase:  getEnvDuration("PROMOTION_BACKOFF_BASE", 2*time.Second),
			Timezone:     getEnv("PROMOTION_TIMEZONE", "UTC"),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
			Limit:     int64(getEnvInt("RATE_LIMIT_TAGS_PER_WINDOW", 30)),
			WindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo URI is required")
	}

	if c.Promotion.MaxAttempts < 1 {
		return fmt.Errorf("promotion max attempts must be >= 1")
	}

	if _, err := time.LoadLocation(c.Promotion.Timezone); err != nil {
		return fmt.Errorf("invalid promotion timezone %q: %w", c.Promotion.Timezone, err)
	}

	return nil
}

// RedisAddr returns the Redis address string
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// PromotionLocation returns the parsed promotion timezone
func (c *Config) PromotionLocation() *time.Location {
	loc, err := time.LoadLocation(c.Promotion.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
