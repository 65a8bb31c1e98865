// Package revocation tracks admin-revoked sessions. Tokens stay stateless;
// revocation is a denylist keyed by session ID with a TTL matching the
// session lifetime, checked on every authenticated request.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var isRevokedDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "comply_session_revocation_check_duration_ms",
	Help:    "Latency of session revocation checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// Redis key prefix for revoked sessions.
const revokedSessionKeyPrefix = "srl:sid:"

// RedisStore is the Redis-backed revocation list, the production
// implementation for deployments with more than one instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed session revocation list.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Revoke adds a session to the revocation list with a TTL. The marker only
// needs to outlive the longest possible token for that session.
func (s *RedisStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return nil
	}
	key := revokedSessionKeyPrefix + sessionID
	// Store "1" as a simple marker; key existence is what matters.
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// IsRevoked checks if a session is in the revocation list. Returns false when
// the key is absent (never revoked, or marker expired with the session).
func (s *RedisStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	start := time.Now()
	defer func() {
		isRevokedDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if sessionID == "" {
		return false, nil
	}
	key := revokedSessionKeyPrefix + sessionID
	_, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
