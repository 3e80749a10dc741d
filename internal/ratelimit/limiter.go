package ratelimit

import "context"

// RateLimiter counts send attempts against a shared quota. Allow consumes one
// slot when it returns true.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
