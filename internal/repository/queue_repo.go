package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
)

// QueueRepository is the backlog store.
type QueueRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.QueueItem, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, message string, at time.Time) error
	RequeueFailed(ctx context.Context, before time.Time, maxAttempts int, limit int) (int64, error)
}

type GormQueueRepo struct {
	db *gorm.DB
}

func NewGormQueueRepo(db *gorm.DB) *GormQueueRepo {
	return &GormQueueRepo{db: db}
}

// FetchPending returns pending items by priority, oldest first within a priority.
func (r *GormQueueRepo) FetchPending(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	if limit < 1 {
		return nil, nil
	}

	var rows []pendingRow
	err := r.db.WithContext(ctx).
		Table("outreach_queue").
		Select("outreach_queue.*, projects.state AS jurisdiction").
		Joins("LEFT JOIN projects ON projects.id = outreach_queue.project_id").
		Where("outreach_queue.status = ?", domain.ItemStatusPending).
		Order("outreach_queue.priority_score DESC").
		Order("outreach_queue.created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.QueueItem, 0, len(rows))
	for i := range rows {
		items = append(items, *queueItemModelToDomain(&rows[i].QueueItemModel, rows[i].Jurisdiction))
	}
	return items, nil
}

// MarkSent resolves a pending item. ErrNotFound means the item is missing or already resolved.
func (r *GormQueueRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.resolve(ctx, id, map[string]any{
		"status":        domain.ItemStatusSent,
		"sent_at":       at,
		"error_message": nil,
		"next_retry_at": nil,
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

func (r *GormQueueRepo) MarkFailed(ctx context.Context, id string, message string, at time.Time) error {
	return r.resolve(ctx, id, map[string]any{
		"status":        domain.ItemStatusFailed,
		"sent_at":       at,
		"error_message": message,
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

func (r *GormQueueRepo) resolve(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("id = ? AND status = ?", id, domain.ItemStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RequeueFailed moves failed items resolved before the cutoff back to pending,
// skipping items that reached maxAttempts.
func (r *GormQueueRepo) RequeueFailed(ctx context.Context, before time.Time, maxAttempts int, limit int) (int64, error) {
	if limit < 1 || maxAttempts < 1 {
		return 0, nil
	}

	eligible := r.db.
		Model(&QueueItemModel{}).
		Select("id").
		Where("status = ? AND sent_at <= ? AND attempt_count < ?", domain.ItemStatusFailed, before, maxAttempts).
		Order("sent_at ASC").
		Limit(limit)

	result := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("id IN (?)", eligible).
		Updates(map[string]any{
			"status":        domain.ItemStatusPending,
			"next_retry_at": nil,
			"sent_at":       nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
