package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kursadbilgin/outreach-dispatch/internal/observability"
	"github.com/kursadbilgin/outreach-dispatch/internal/repository"
)

const (
	defaultRetryCooldown    = 24 * time.Hour
	defaultRetryMaxAttempts = 3
	defaultRetryScanLimit   = 100
)

// RetryScanner returns failed items to pending once their cooldown has passed.
// It is the only path from failed back to pending and runs only under the
// cooldown retry policy.
type RetryScanner struct {
	queue       repository.QueueRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	cooldown    time.Duration
	maxAttempts int
	limit       int
	now         func() time.Time
}

func NewRetryScanner(
	queue repository.QueueRepository,
	cooldown time.Duration,
	maxAttempts int,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if cooldown <= 0 {
		cooldown = defaultRetryCooldown
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryMaxAttempts
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		queue:       queue,
		logger:      logger,
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
		limit:       limit,
		now:         time.Now,
	}, nil
}

func (s *RetryScanner) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Requeue moves eligible failed items back to pending and returns how many moved.
func (s *RetryScanner) Requeue(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cooldown)

	moved, err := s.queue.RequeueFailed(ctx, cutoff, s.maxAttempts, s.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed items: %w", err)
	}

	if moved > 0 {
		observability.WithContextLogger(s.logger, ctx).Info("failed items requeued after cooldown",
			zap.Int64("count", moved),
			zap.Time("failedBefore", cutoff),
			zap.Int("maxAttempts", s.maxAttempts),
		)
		s.metrics.AddRetriesRequeued(int(moved))
	}
	return moved, nil
}
