package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// redisClient returns a client for a local Redis or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testKey(name string) string {
	return name + "-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redisClient(t)
	store := NewRedisRateLimitStore(client, nil, nil)
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	ctx := context.Background()
	key := testKey("allow")
	defer client.Del(ctx, store.prefix+key)

	for i := 0; i < 5; i++ {
		if allowed, _ := store.Allow(ctx, key, config); !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("6th request should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("expected retryAfter between 1 and 60, got %d", retryAfter)
	}
}

func TestRedisRateLimitStore_DifferentKeys(t *testing.T) {
	client := redisClient(t)
	store := NewRedisRateLimitStore(client, nil, nil)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	ctx := context.Background()
	key1, key2 := testKey("k1"), testKey("k2")
	defer client.Del(ctx, store.prefix+key1, store.prefix+key2)

	allowed1, _ := store.Allow(ctx, key1, config)
	allowed2, _ := store.Allow(ctx, key2, config)
	if !allowed1 || !allowed2 {
		t.Error("both keys should be allowed their first request")
	}

	blocked1, _ := store.Allow(ctx, key1, config)
	blocked2, _ := store.Allow(ctx, key2, config)
	if blocked1 || blocked2 {
		t.Error("both keys should be blocked after reaching limit")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := redisClient(t)
	store := NewRedisRateLimitStore(client, nil, nil)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}
	ctx := context.Background()
	key := testKey("expiry")
	defer client.Del(ctx, store.prefix+key)

	if allowed, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("first request should be allowed")
	}
	if allowed, _ := store.Allow(ctx, key, config); allowed {
		t.Error("second request should be blocked")
	}

	time.Sleep(150 * time.Millisecond)

	if allowed, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:9999",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	metrics := NewMetrics()
	store := NewRedisRateLimitStore(client, metrics, nil)
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	allowed, retryAfter := store.Allow(context.Background(), "test-key", config)
	if !allowed || retryAfter != 0 {
		t.Errorf("should fail open, got allowed=%v retryAfter=%d", allowed, retryAfter)
	}
	if got := testutil.ToFloat64(metrics.rateLimitStoreErrors); got != 1 {
		t.Errorf("redis errors = %v, want 1", got)
	}
}
