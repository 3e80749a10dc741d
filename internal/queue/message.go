package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
)

// ActivityEvent is the broker payload describing one resolved send attempt.
type ActivityEvent struct {
	ActivityID        string                `json:"activityId"`
	QueueItemID       string                `json:"queueItemId"`
	ProjectID         string                `json:"projectId,omitempty"`
	OrganizationID    string                `json:"organizationId,omitempty"`
	RunID             string                `json:"runId,omitempty"`
	RecipientEmail    string                `json:"recipientEmail"`
	Status            domain.ActivityStatus `json:"status"`
	Forced            bool                  `json:"forced"`
	Personalization   string                `json:"personalization,omitempty"`
	ProviderMessageID string                `json:"providerMessageId,omitempty"`
	Error             string                `json:"error,omitempty"`
	OccurredAt        time.Time             `json:"occurredAt"`
}

func (e ActivityEvent) Validate() error {
	if strings.TrimSpace(e.ActivityID) == "" {
		return fmt.Errorf("activityId is required")
	}
	if strings.TrimSpace(e.QueueItemID) == "" {
		return fmt.Errorf("queueItemId is required")
	}
	if e.Status != domain.ActivityStatusSent && e.Status != domain.ActivityStatusFailed {
		return fmt.Errorf("invalid status %q", e.Status)
	}
	return nil
}
