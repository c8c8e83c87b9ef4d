package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) PublishBatchCompleted(ctx context.Context, msg BatchCompletedMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	publishing, routingKey, err := buildPublishing(msg, time.Now().UTC())
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, EventsExchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish batch completion %q: %w", msg.BatchID, err)
	}

	return nil
}

func buildPublishing(msg BatchCompletedMessage, now time.Time) (amqp.Publishing, string, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, "", fmt.Errorf("invalid batch completed message: %w", err)
	}

	routingKey, err := RoutingKey(msg.Kind)
	if err != nil {
		return amqp.Publishing{}, "", err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, "", fmt.Errorf("failed to marshal batch completed message: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		MessageId:    fmt.Sprintf("%s:%s", msg.Kind, msg.BatchID),
		Type:         routingKey,
		Body:         payload,
	}, routingKey, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
