package domain

import (
	"fmt"
	"strings"
	"time"
)

// ItemStatus represents the lifecycle state of a queued outreach message.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusSent    ItemStatus = "sent"
	ItemStatusFailed  ItemStatus = "failed"
)

func (s ItemStatus) String() string { return string(s) }

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusSent, ItemStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status can no longer be changed by a dispatch run.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSent || s == ItemStatusFailed
}

// CanTransitionTo allows only pending -> sent and pending -> failed.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	return s == ItemStatusPending && next.IsTerminal()
}

func ParseItemStatusFromString(s string) (ItemStatus, error) {
	st := ItemStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid item status %q", ErrValidation, s)
	}
	return st, nil
}

// Metadata is the free-form JSON blob attached to queue items and activities.
type Metadata map[string]any

// MetadataAssetLink is the call-to-action link key set by upstream producers.
const MetadataAssetLink = "asset_link"

// String returns the trimmed string value stored under key, or "".
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Clone returns a shallow copy that is safe to extend.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// QueueItem is one pending or resolved outbound message in the backlog store.
type QueueItem struct {
	ID             string
	RecipientEmail string
	Subject        string
	Body           string
	ProjectID      *string
	// Jurisdiction is resolved from the owning project; empty when unknown.
	Jurisdiction  string
	PriorityScore int
	Status        ItemStatus
	Metadata      Metadata
	ErrorMessage  *string
	AttemptCount  int
	CreatedAt     time.Time
	SentAt        *time.Time
	NextRetryAt   *time.Time
}

func (q *QueueItem) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if strings.TrimSpace(q.RecipientEmail) == "" {
		return fmt.Errorf("%w: recipient email is required", ErrValidation)
	}
	if strings.TrimSpace(q.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(q.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !q.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, q.Status)
	}
	return nil
}

// ProjectIDValue returns the owning project id or "" when the item has none.
func (q *QueueItem) ProjectIDValue() string {
	if q == nil || q.ProjectID == nil {
		return ""
	}
	return *q.ProjectID
}
