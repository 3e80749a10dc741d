package repository

import (
	"time"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
)

// QueueItemModel is the persistence model for the outreach_queue table.
type QueueItemModel struct {
	ID             string            `gorm:"type:uuid;primaryKey"`
	RecipientEmail string            `gorm:"type:varchar(320);not null"`
	EmailSubject   string            `gorm:"type:text;not null"`
	EmailBody      string            `gorm:"type:text;not null"`
	ProjectID      *string           `gorm:"type:uuid"`
	PriorityScore  int               `gorm:"not null;default:0"`
	Status         domain.ItemStatus `gorm:"type:varchar(20);not null;default:pending"`
	Metadata       domain.Metadata   `gorm:"type:jsonb;serializer:json"`
	ErrorMessage   *string           `gorm:"type:text"`
	AttemptCount   int               `gorm:"not null;default:0"`
	CreatedAt      time.Time
	SentAt         *time.Time `gorm:"type:timestamptz"`
	NextRetryAt    *time.Time `gorm:"type:timestamptz"`
}

func (QueueItemModel) TableName() string {
	return "outreach_queue"
}

// ProjectModel is the read-only view of projects used for jurisdiction lookup.
type ProjectModel struct {
	ID    string  `gorm:"type:uuid;primaryKey"`
	State *string `gorm:"type:varchar(8)"`
}

func (ProjectModel) TableName() string {
	return "projects"
}

// ActivityModel is the persistence model for outreach_activities.
type ActivityModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	OrganizationID *string               `gorm:"type:varchar(64)"`
	ProjectID      *string               `gorm:"type:uuid"`
	QueueItemID    *string               `gorm:"type:uuid"`
	RecipientEmail string                `gorm:"type:varchar(320);not null"`
	ActivityType   domain.Channel        `gorm:"type:varchar(20);not null"`
	Subject        string                `gorm:"type:text"`
	MessageBody    string                `gorm:"type:text"`
	Status         domain.ActivityStatus `gorm:"type:varchar(20);not null"`
	Metadata       domain.Metadata       `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ActivityModel) TableName() string {
	return "outreach_activities"
}

// pendingRow is a queue row joined with its project's jurisdiction.
type pendingRow struct {
	QueueItemModel `gorm:"embedded"`
	Jurisdiction   *string `gorm:"column:jurisdiction"`
}

func queueItemModelToDomain(m *QueueItemModel, jurisdiction *string) *domain.QueueItem {
	if m == nil {
		return nil
	}

	item := &domain.QueueItem{
		ID:             m.ID,
		RecipientEmail: m.RecipientEmail,
		Subject:        m.EmailSubject,
		Body:           m.EmailBody,
		ProjectID:      m.ProjectID,
		PriorityScore:  m.PriorityScore,
		Status:         m.Status,
		Metadata:       m.Metadata,
		ErrorMessage:   m.ErrorMessage,
		AttemptCount:   m.AttemptCount,
		CreatedAt:      m.CreatedAt,
		SentAt:         m.SentAt,
		NextRetryAt:    m.NextRetryAt,
	}
	if jurisdiction != nil {
		item.Jurisdiction = *jurisdiction
	}
	return item
}

func activityModelFromDomain(a *domain.ActivityRecord) *ActivityModel {
	if a == nil {
		return nil
	}

	var organizationID *string
	if a.OrganizationID != "" {
		org := a.OrganizationID
		organizationID = &org
	}

	return &ActivityModel{
		ID:             a.ID,
		OrganizationID: organizationID,
		ProjectID:      a.ProjectID,
		QueueItemID:    a.QueueItemID,
		RecipientEmail: a.RecipientEmail,
		ActivityType:   a.ActivityType,
		Subject:        a.Subject,
		MessageBody:    a.MessageBody,
		Status:         a.Status,
		Metadata:       a.Metadata,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func activityModelToDomain(m *ActivityModel) *domain.ActivityRecord {
	if m == nil {
		return nil
	}

	a := &domain.ActivityRecord{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		QueueItemID:    m.QueueItemID,
		RecipientEmail: m.RecipientEmail,
		ActivityType:   m.ActivityType,
		Subject:        m.Subject,
		MessageBody:    m.MessageBody,
		Status:         m.Status,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.OrganizationID != nil {
		a.OrganizationID = *m.OrganizationID
	}
	return a
}
