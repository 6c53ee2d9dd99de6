// Package health provides readiness checks for the service's backing stores.
package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPinger is satisfied by *redis.Client and redis.UniversalClient.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker checks Redis connectivity.
type RedisChecker struct {
	client RedisPinger
}

// NewRedisChecker creates a Redis checker.
func NewRedisChecker(client RedisPinger) *RedisChecker {
	return &RedisChecker{client: client}
}

// Name returns the key reported by readiness checks.
func (r *RedisChecker) Name() string { return "redis" }

// HealthCheck sends PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
