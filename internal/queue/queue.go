package queue

import (
	"context"
	"fmt"
)

const (
	// EventsExchange is the topic exchange batch lifecycle events are published to.
	EventsExchange = "payslip.events"
	// BatchCompletedQueue collects every batch completion summary.
	BatchCompletedQueue = "batch.completed"

	batchCompletedBinding = "batch.completed.#"
)

var routingKeys = map[string]string{
	"generation": "batch.completed.generation",
	"send":       "batch.completed.send",
}

// Publisher publishes batch lifecycle events.
type Publisher interface {
	PublishBatchCompleted(ctx context.Context, msg BatchCompletedMessage) error
	Close() error
}

// RoutingKey returns the routing key for a completion of the given kind.
func RoutingKey(kind string) (string, error) {
	key, ok := routingKeys[kind]
	if !ok {
		return "", fmt.Errorf("no routing key for batch kind %q", kind)
	}
	return key, nil
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishBatchCompleted(context.Context, BatchCompletedMessage) error { return nil }

func (NopPublisher) Close() error { return nil }
