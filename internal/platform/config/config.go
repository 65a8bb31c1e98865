package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime configuration. FromEnv builds it from
// environment variables so main stays lean; every field has a development
// default and nothing here reads the environment after startup.
type Config struct {
	Addr string

	// PostgresDSN selects the Postgres-backed stores when set; empty keeps
	// the in-memory stores (dev mode, unit tests).
	PostgresDSN string

	// RedisURL selects the Redis session revocation list when set.
	RedisURL string
	Redis    RedisConfig

	// Kafka settings for the notification producer. Empty brokers disable
	// the Kafka sender and notifications are logged only.
	KafkaBrokers      []string
	NotificationTopic string

	JWTSigningKey string
	SessionTTL    time.Duration

	// ExpiryWarningWindow is the lead time before an expiration date during
	// which artifacts are flagged as expiring soon.
	ExpiryWarningWindow time.Duration

	// NotifyTimeout bounds a single notification dispatch attempt.
	NotifyTimeout time.Duration
	// NotifyQueueSize bounds the dispatch backlog; overflow is dropped and logged.
	NotifyQueueSize int
}

// RedisConfig holds connection tuning for the Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                envOr("COMPLY_ADDR", ":8080"),
		PostgresDSN:         os.Getenv("COMPLY_POSTGRES_DSN"),
		RedisURL:            os.Getenv("COMPLY_REDIS_URL"),
		NotificationTopic:   envOr("COMPLY_NOTIFICATION_TOPIC", "comply.notifications"),
		JWTSigningKey:       envOr("COMPLY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SessionTTL:          envDuration("COMPLY_SESSION_TTL", 12*time.Hour),
		ExpiryWarningWindow: envDuration("COMPLY_EXPIRY_WARNING_WINDOW", 30*24*time.Hour),
		NotifyTimeout:       envDuration("COMPLY_NOTIFY_TIMEOUT", 3*time.Second),
		NotifyQueueSize:     envInt("COMPLY_NOTIFY_QUEUE_SIZE", 256),
	}

	if brokers := os.Getenv("COMPLY_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	cfg.Redis = RedisConfig{
		URL:          cfg.RedisURL,
		PoolSize:     envInt("COMPLY_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("COMPLY_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDuration("COMPLY_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("COMPLY_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("COMPLY_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
