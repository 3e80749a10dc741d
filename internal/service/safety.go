package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/outreach-dispatch/internal/ratelimit"
)

const defaultSendCapKey = "global"

// SafetyController bounds one run: a quota of send attempts, a fixed pause
// between attempts and an optional cross-run cap.
type SafetyController struct {
	quota    int
	delay    time.Duration
	capper   ratelimit.RateLimiter
	capKey   string
	sleep    func(ctx context.Context, d time.Duration) error
	attempts int
}

func NewSafetyController(
	quota int,
	delay time.Duration,
	capper ratelimit.RateLimiter,
	capKey string,
	sleepFn func(ctx context.Context, d time.Duration) error,
) *SafetyController {
	if quota < 0 {
		quota = 0
	}
	if delay < 0 {
		delay = 0
	}
	if capKey == "" {
		capKey = defaultSendCapKey
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SafetyController{
		quota:  quota,
		delay:  delay,
		capper: capper,
		capKey: capKey,
		sleep:  sleepFn,
	}
}

func (c *SafetyController) QuotaExhausted() bool {
	return c.attempts >= c.quota
}

func (c *SafetyController) Attempts() int {
	return c.attempts
}

func (c *SafetyController) Remaining() int {
	return max(c.quota-c.attempts, 0)
}

// AllowSend consults the cross-run cap. It consumes a cap slot when it returns true.
func (c *SafetyController) AllowSend(ctx context.Context) (bool, error) {
	if c.QuotaExhausted() {
		return false, nil
	}
	if c.capper == nil {
		return true, nil
	}

	allowed, err := c.capper.Allow(ctx, c.capKey)
	if err != nil {
		return false, fmt.Errorf("send cap check failed: %w", err)
	}
	return allowed, nil
}

// RecordAttempt counts a provider call against the run quota.
func (c *SafetyController) RecordAttempt() {
	c.attempts++
}

// Pause waits the inter-send delay or until ctx is done.
func (c *SafetyController) Pause(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	return c.sleep(ctx, c.delay)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
