package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func validMessage() BatchCompletedMessage {
	return BatchCompletedMessage{
		BatchID:    "session-1",
		Kind:       "generation",
		Total:      3,
		Succeeded:  2,
		Failed:     1,
		StartedAt:  time.Unix(1_700_000_000, 0).UTC(),
		FinishedAt: time.Unix(1_700_000_060, 0).UTC(),
	}
}

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		kind    string
		want    string
		wantErr bool
	}{
		{kind: "generation", want: "batch.completed.generation"},
		{kind: "send", want: "batch.completed.send"},
		{kind: "upload", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, err := RoutingKey(tt.kind)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("RoutingKey(%q) expected error", tt.kind)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("RoutingKey(%q) = %q, %v; want %q", tt.kind, got, err, tt.want)
			}
		})
	}
}

func TestBatchCompletedMessageValidate(t *testing.T) {
	msg := validMessage()
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.BatchID = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty batch id")
	}

	msg = validMessage()
	msg.Kind = "upload"
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for unknown kind")
	}

	msg = validMessage()
	msg.Failed = 0
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for counts that do not add up")
	}

	msg.Unresolved = 1
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error with unresolved items: %v", err)
	}
}

func TestBuildPublishing(t *testing.T) {
	now := time.Unix(1_700_000_100, 0).UTC()
	publishing, routingKey, err := buildPublishing(validMessage(), now)
	if err != nil {
		t.Fatalf("buildPublishing() unexpected error: %v", err)
	}

	if routingKey != "batch.completed.generation" {
		t.Fatalf("routingKey = %q", routingKey)
	}
	if publishing.DeliveryMode != amqp.Persistent || publishing.ContentType != "application/json" {
		t.Fatalf("publishing headers = %+v", publishing)
	}
	if publishing.MessageId != "generation:session-1" || !publishing.Timestamp.Equal(now) {
		t.Fatalf("publishing id/timestamp = %q/%s", publishing.MessageId, publishing.Timestamp)
	}

	var decoded BatchCompletedMessage
	if err := json.Unmarshal(publishing.Body, &decoded); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	want := validMessage()
	if decoded.BatchID != want.BatchID || decoded.Succeeded != want.Succeeded || !decoded.FinishedAt.Equal(want.FinishedAt) {
		t.Fatalf("decoded body = %+v", decoded)
	}

	bad := validMessage()
	bad.Kind = ""
	if _, _, err := buildPublishing(bad, now); err == nil {
		t.Fatal("expected error for invalid message")
	}
}

func TestPublisherGuards(t *testing.T) {
	var p *RabbitMQPublisher
	if err := p.PublishBatchCompleted(context.Background(), validMessage()); err == nil {
		t.Fatal("expected error for nil publisher")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() on nil publisher = %v", err)
	}

	var nop Publisher = NopPublisher{}
	if err := nop.PublishBatchCompleted(context.Background(), validMessage()); err != nil {
		t.Fatalf("NopPublisher.PublishBatchCompleted() = %v", err)
	}

	if _, err := NewRabbitMQ(" "); err == nil {
		t.Fatal("expected error for empty url")
	}
}
