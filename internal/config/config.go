// Package config loads process environment into a typed Config, failing
// fast on missing required values rather than discovering them at first use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration surface named in spec.md §6: bus
// endpoints, primary-store DSN, cache endpoints, resilience thresholds,
// retry schedule, idempotency TTL, outbox poll interval and batch size.
type Config struct {
	AppEnv string

	HTTPAddr string

	DatabaseURL string

	RabbitURL      string
	RabbitExchange string

	RedisURL string

	// Outbox publisher
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	// Idempotency Store
	IdempotencyTTL time.Duration

	// Retry / DLQ pipeline (§4.4 defaults)
	RetryInitialInterval time.Duration
	RetryMultiplier      float64
	RetryMaxInterval     time.Duration
	RetryMaxAttempts     int

	// Cache Layer TTLs (§4.5)
	SearchCacheTTL   time.Duration
	SearchCacheJitter time.Duration
	DetailCacheTTL    time.Duration
	DetailCacheJitter time.Duration
	ProfileCacheTTL   time.Duration
	StampedeLockTTL   time.Duration
	StaleShadowTTL    time.Duration

	// Resilience Fabric (§4.6)
	DBBreakerWindow       int
	DBBreakerThreshold    float64
	DBBreakerOpenWait     time.Duration
	CacheBreakerWindow    int
	CacheBreakerThreshold float64
	CacheBreakerOpenWait  time.Duration
	ChannelBreakerWindow    int
	ChannelBreakerThreshold float64
	ChannelBreakerOpenWait  time.Duration

	RequestBulkheadSize  int
	AsyncBulkheadSize    int
	PrimaryStorePoolSize int

	RateLimitDefaultLimit  int
	RateLimitDefaultWindow time.Duration

	// Scheduled sweeps (§5)
	JobExpirySweepInterval time.Duration

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")

	cfg.RabbitURL = getEnv("RABBIT_URL", "")
	cfg.RabbitExchange = getEnv("RABBIT_EXCHANGE", "jobcore.events")

	cfg.RedisURL = getEnv("REDIS_URL", "redis://localhost:6379/0")

	cfg.OutboxPollInterval = getDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxBatchSize = getInt("OUTBOX_BATCH_SIZE", 100)
	cfg.OutboxMaxAttempts = getInt("OUTBOX_MAX_ATTEMPTS", 10)

	cfg.IdempotencyTTL = getDuration("IDEMPOTENCY_TTL", 24*time.Hour)

	cfg.RetryInitialInterval = getDuration("RETRY_INITIAL_INTERVAL", 1*time.Second)
	cfg.RetryMultiplier = getFloat("RETRY_MULTIPLIER", 2.0)
	cfg.RetryMaxInterval = getDuration("RETRY_MAX_INTERVAL", 30*time.Second)
	cfg.RetryMaxAttempts = getInt("RETRY_MAX_ATTEMPTS", 3)

	cfg.SearchCacheTTL = getDuration("SEARCH_CACHE_TTL", 60*time.Second)
	cfg.SearchCacheJitter = getDuration("SEARCH_CACHE_JITTER", 10*time.Second)
	cfg.DetailCacheTTL = getDuration("DETAIL_CACHE_TTL", 300*time.Second)
	cfg.DetailCacheJitter = getDuration("DETAIL_CACHE_JITTER", 30*time.Second)
	cfg.ProfileCacheTTL = getDuration("PROFILE_CACHE_TTL", 30*time.Minute)
	cfg.StampedeLockTTL = getDuration("STAMPEDE_LOCK_TTL", 10*time.Second)
	cfg.StaleShadowTTL = getDuration("STALE_SHADOW_TTL", 24*time.Hour)

	cfg.DBBreakerWindow = getInt("DB_BREAKER_WINDOW", 10)
	cfg.DBBreakerThreshold = getFloat("DB_BREAKER_THRESHOLD", 0.5)
	cfg.DBBreakerOpenWait = getDuration("DB_BREAKER_OPEN_WAIT", 30*time.Second)
	cfg.CacheBreakerWindow = getInt("CACHE_BREAKER_WINDOW", 10)
	cfg.CacheBreakerThreshold = getFloat("CACHE_BREAKER_THRESHOLD", 0.5)
	cfg.CacheBreakerOpenWait = getDuration("CACHE_BREAKER_OPEN_WAIT", 15*time.Second)
	cfg.ChannelBreakerWindow = getInt("CHANNEL_BREAKER_WINDOW", 10)
	cfg.ChannelBreakerThreshold = getFloat("CHANNEL_BREAKER_THRESHOLD", 0.5)
	cfg.ChannelBreakerOpenWait = getDuration("CHANNEL_BREAKER_OPEN_WAIT", 20*time.Second)

	cfg.RequestBulkheadSize = getInt("REQUEST_BULKHEAD_SIZE", 64)
	cfg.AsyncBulkheadSize = getInt("ASYNC_BULKHEAD_SIZE", 8)
	cfg.PrimaryStorePoolSize = getInt("PRIMARY_STORE_POOL_SIZE", 32)

	cfg.RateLimitDefaultLimit = getInt("RATE_LIMIT_DEFAULT_LIMIT", 100)
	cfg.RateLimitDefaultWindow = getDuration("RATE_LIMIT_DEFAULT_WINDOW", 1*time.Minute)

	cfg.JobExpirySweepInterval = getDuration("JOB_EXPIRY_SWEEP_INTERVAL", 1*time.Hour)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DATABASE_URL")
	}
	if cfg.AppEnv != "dev" && cfg.RabbitURL == "" {
		return nil, fmt.Errorf("missing RABBIT_URL (required when APP_ENV != dev)")
	}
	if cfg.AsyncBulkheadSize >= cfg.PrimaryStorePoolSize {
		return nil, fmt.Errorf("ASYNC_BULKHEAD_SIZE must be < PRIMARY_STORE_POOL_SIZE (async pool < primary-store pool < request threads)")
	}
	if cfg.PrimaryStorePoolSize >= cfg.RequestBulkheadSize {
		return nil, fmt.Errorf("PRIMARY_STORE_POOL_SIZE must be < REQUEST_BULKHEAD_SIZE")
	}

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
