package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	limiter, err := newRedisRateLimiter(rdb, 2, DefaultWindow, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	for i, want := range []bool{true, true, false} {
		allowed, err := limiter.Allow(context.Background(), "email")
		if err != nil {
			t.Fatalf("Allow() call %d error = %v", i, err)
		}
		if allowed != want {
			t.Fatalf("Allow() call %d = %v, want %v", i, allowed, want)
		}
	}

	now = now.Add(10 * time.Hour)
	allowed, err := limiter.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("same UTC day should still be capped")
	}

	now = time.Date(2026, 10, 19, 0, 0, 1, 0, time.UTC)
	allowed, err = limiter.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("next day window should allow send")
	}
}

func TestRedisRateLimiterAllowPerKey(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, time.Minute, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "org-a")
	if err != nil || !allowed {
		t.Fatalf("Allow(org-a) = %v, %v; want allowed", allowed, err)
	}

	allowed, err = limiter.Allow(context.Background(), " ORG-B ")
	if err != nil || !allowed {
		t.Fatalf("Allow(org-b) = %v, %v; want allowed", allowed, err)
	}

	allowed, err = limiter.Allow(context.Background(), "Org-A")
	if err != nil {
		t.Fatalf("Allow(org-a) error = %v", err)
	}
	if allowed {
		t.Fatal("org-a second request should be rejected")
	}
}

func TestRedisRateLimiterSetsExpiry(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(rdb, 5, time.Hour, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "email"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("keys = %v, want one counter", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Hour {
		t.Fatalf("TTL = %v, want %v", ttl, time.Hour)
	}
}

func TestRedisRateLimiterValidation(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	if _, err := NewRedisRateLimiter(nil, 1, time.Hour); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisRateLimiter(rdb, 0, time.Hour); err == nil {
		t.Fatal("expected error for non-positive limit")
	}

	limiter, err := NewRedisRateLimiter(rdb, 1, 0)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	if limiter.window != DefaultWindow {
		t.Fatalf("window = %v, want %v", limiter.window, DefaultWindow)
	}
	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestRedisRateLimiterUnavailable(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedisClient(t)
	limiter, err := NewRedisRateLimiter(rdb, 1, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}

	mr.Close()
	if _, err := limiter.Allow(context.Background(), "email"); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func newTestRedisClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb, mr
}
