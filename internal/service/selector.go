package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
	"github.com/kursadbilgin/outreach-dispatch/internal/repository"
)

// QueueSelector reads the candidate slice for one run.
type QueueSelector struct {
	queue repository.QueueRepository
}

func NewQueueSelector(queue repository.QueueRepository) (*QueueSelector, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	return &QueueSelector{queue: queue}, nil
}

// SelectCandidates returns up to limit pending items, highest priority first.
func (s *QueueSelector) SelectCandidates(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: candidate limit must be positive, got %d", domain.ErrValidation, limit)
	}

	items, err := s.queue.FetchPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending queue items: %w", err)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
