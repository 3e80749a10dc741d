package provider

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
)

const (
	breakerInterval         = 60 * time.Second
	breakerOpenTimeout      = 30 * time.Second
	breakerFailureThreshold = 5
)

// NewCircuitBreaker trips after consecutive transient failures. Permanent
// rejections (4xx other than 429) do not count against the upstream.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker[*resty.Response] {
	return gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
}
