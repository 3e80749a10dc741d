package queue

import (
	"context"
	"fmt"
)

// Publisher emits activity events for downstream consumers (CRM sync, reporting).
type Publisher interface {
	Publish(ctx context.Context, event ActivityEvent) error
	Close() error
}

const (
	// ActivityQueueName receives one event per resolved send attempt.
	ActivityQueueName = "outreach.activity"
	dlxExchangeName   = "outreach.dlx"
)

// DLQName returns the dead-letter queue name, e.g. dlq.outreach.activity.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ActivityEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
