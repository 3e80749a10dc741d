package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var _ Publisher = (*RabbitMQPublisher)(nil)

// RabbitMQPublisher publishes activity events as persistent messages and waits
// for the broker to confirm each one.
type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event ActivityEvent) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid activity event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := p.client.confirmChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		MessageId:     event.ActivityID,
		CorrelationId: event.RunID,
		Type:          string(event.Status),
		Body:          payload,
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", ActivityQueueName, true, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish activity event to queue %q: %w", ActivityQueueName, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("activity event %s not confirmed: %w", event.ActivityID, err)
	}
	if !acked {
		return fmt.Errorf("activity event %s nacked by broker", event.ActivityID)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
