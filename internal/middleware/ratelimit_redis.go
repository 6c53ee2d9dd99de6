package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript increments the window counter and sets its expiry on the
// first hit. It returns the count and the remaining TTL in milliseconds.
var rateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// shared across API replicas. It fails open when Redis is unavailable.
type RedisRateLimitStore struct {
	client  redis.Scripter
	prefix  string
	metrics *Metrics
	logger  *slog.Logger
}

// NewRedisRateLimitStore creates a store on client. metrics may be nil.
func NewRedisRateLimitStore(client redis.Scripter, metrics *Metrics, logger *slog.Logger) *RedisRateLimitStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimitStore{
		client:  client,
		prefix:  "ratelimit:",
		metrics: metrics,
		logger:  logger,
	}
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	window := config.WindowDuration.Milliseconds()
	if window <= 0 {
		window = 1
	}

	res, err := rateLimitScript.Run(ctx, s.client, []string{s.prefix + key}, window).Int64Slice()
	if err != nil || len(res) != 2 {
		if s.metrics != nil {
			s.metrics.IncRateLimitStoreErrors()
		}
		s.logger.WarnContext(ctx, "rate limit store unavailable, allowing request", "error", err)
		return true, 0
	}

	count, ttl := res[0], res[1]
	if count <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	retryAfter := int((time.Duration(ttl) * time.Millisecond).Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}
