package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
)

// ActivityRepository is the append-only activity log.
type ActivityRepository interface {
	Append(ctx context.Context, a *domain.ActivityRecord) error
	UpdateStatus(ctx context.Context, id string, status domain.ActivityStatus) error
	SentRecipients(ctx context.Context) ([]string, error)
}

type GormActivityRepo struct {
	db *gorm.DB
}

func NewGormActivityRepo(db *gorm.DB) *GormActivityRepo {
	return &GormActivityRepo{db: db}
}

func (r *GormActivityRepo) Append(ctx context.Context, a *domain.ActivityRecord) error {
	if a == nil {
		return domain.ErrValidation
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	model := activityModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*a = *activityModelToDomain(model)
	return nil
}

// UpdateStatus resolves a provisional record exactly once.
func (r *GormActivityRepo) UpdateStatus(ctx context.Context, id string, status domain.ActivityStatus) error {
	result := r.db.WithContext(ctx).
		Model(&ActivityModel{}).
		Where("id = ? AND status = ?", id, domain.ActivityStatusPending).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SentRecipients lists the lower-cased addresses of every sent email activity.
func (r *GormActivityRepo) SentRecipients(ctx context.Context) ([]string, error) {
	var addresses []string
	err := r.db.WithContext(ctx).
		Model(&ActivityModel{}).
		Distinct().
		Where("activity_type = ? AND status = ?", domain.ChannelEmail, domain.ActivityStatusSent).
		Pluck("LOWER(TRIM(recipient_email))", &addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}
