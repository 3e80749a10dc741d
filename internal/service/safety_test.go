package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSafetyControllerQuota(t *testing.T) {
	t.Parallel()

	c := NewSafetyController(2, 0, nil, "", nil)
	for i := 0; i < 2; i++ {
		allowed, err := c.AllowSend(context.Background())
		if err != nil || !allowed {
			t.Fatalf("AllowSend() #%d = %v, %v; want allowed", i, allowed, err)
		}
		c.RecordAttempt()
	}

	if !c.QuotaExhausted() || c.Remaining() != 0 || c.Attempts() != 2 {
		t.Fatalf("quota state: exhausted=%v remaining=%d attempts=%d", c.QuotaExhausted(), c.Remaining(), c.Attempts())
	}
	allowed, err := c.AllowSend(context.Background())
	if err != nil || allowed {
		t.Fatalf("AllowSend() after quota = %v, %v; want denied", allowed, err)
	}
}

func TestSafetyControllerZeroQuotaAllowsNothing(t *testing.T) {
	t.Parallel()

	c := NewSafetyController(-1, 0, nil, "", nil)
	if !c.QuotaExhausted() {
		t.Fatal("non-positive quota should be exhausted immediately")
	}
}

func TestSafetyControllerSendCap(t *testing.T) {
	t.Parallel()

	limiter := &fakeRateLimiter{allowFn: func(ctx context.Context, key string) (bool, error) {
		return false, nil
	}}
	c := NewSafetyController(5, 0, limiter, "", nil)

	allowed, err := c.AllowSend(context.Background())
	if err != nil || allowed {
		t.Fatalf("AllowSend() = %v, %v; want denied by cap", allowed, err)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != defaultSendCapKey {
		t.Fatalf("keys = %v, want [%s]", limiter.keys, defaultSendCapKey)
	}

	limiter.allowFn = func(ctx context.Context, key string) (bool, error) {
		return false, errors.New("redis down")
	}
	if _, err := c.AllowSend(context.Background()); err == nil {
		t.Fatal("expected cap error to surface")
	}
}

func TestSafetyControllerPause(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	c := NewSafetyController(1, 2*time.Second, nil, "", func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("slept = %v", slept)
	}

	noDelay := NewSafetyController(1, 0, nil, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := noDelay.Pause(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Pause() error = %v, want context.Canceled", err)
	}
}

func TestSleepWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := sleepWithContext(ctx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("sleepWithContext() error = %v, want deadline exceeded", err)
	}
	if err := sleepWithContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepWithContext() error = %v", err)
	}
}
