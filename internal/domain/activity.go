package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActivityStatus is the outcome recorded on an activity log entry.
type ActivityStatus string

const (
	// ActivityStatusPending marks a provisional record written before the provider call.
	ActivityStatusPending ActivityStatus = "pending"
	ActivityStatusSent    ActivityStatus = "sent"
	ActivityStatusFailed  ActivityStatus = "failed"
)

func (s ActivityStatus) String() string { return string(s) }

func (s ActivityStatus) IsValid() bool {
	switch s {
	case ActivityStatusPending, ActivityStatusSent, ActivityStatusFailed:
		return true
	}
	return false
}

// Channel represents the contact channel of an activity.
type Channel string

const (
	ChannelEmail Channel = "email"
)

func (c Channel) String() string { return string(c) }

// Activity metadata keys.
const (
	MetaRecipientEmail  = "recipient_email"
	MetaQueueID         = "queue_id"
	MetaTimezone        = "timezone"
	MetaJurisdiction    = "jurisdiction"
	MetaSentHourLocal   = "sent_hour_local"
	MetaSentDayLocal    = "sent_day_local"
	MetaPersonalization = "personalization"
	MetaForced          = "forced"
	MetaSentVia         = "sent_via"
)

// ActivityRecord is an append-only log entry describing one attempted contact.
type ActivityRecord struct {
	ID             string
	OrganizationID string
	ProjectID      *string
	QueueItemID    *string
	RecipientEmail string
	ActivityType   Channel
	Subject        string
	MessageBody    string
	Status         ActivityStatus
	Metadata       Metadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *ActivityRecord) Validate() error {
	if strings.TrimSpace(a.RecipientEmail) == "" {
		return fmt.Errorf("%w: recipient email is required", ErrValidation)
	}
	if a.ActivityType == "" {
		return fmt.Errorf("%w: activity type is required", ErrValidation)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("%w: invalid activity status %q", ErrValidation, a.Status)
	}
	return nil
}
