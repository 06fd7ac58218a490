package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	rejects int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejects++
	f.requeue = requeue
	return nil
}

func TestRecordCreatedQueueArgs(t *testing.T) {
	args := recordCreatedQueueArgs()
	if args["x-dead-letter-exchange"] != "pair.dlx" {
		t.Fatalf("x-dead-letter-exchange = %v, want pair.dlx", args["x-dead-letter-exchange"])
	}
	if args["x-dead-letter-routing-key"] != RecordCreatedQueue {
		t.Fatalf("x-dead-letter-routing-key = %v, want %s", args["x-dead-letter-routing-key"], RecordCreatedQueue)
	}
	if RecordCreatedDLQ != "dlq."+RecordCreatedQueue {
		t.Fatalf("RecordCreatedDLQ = %q", RecordCreatedDLQ)
	}
}

func TestDecodeRecordCreated(t *testing.T) {
	msg, err := decodeRecordCreated(amqp.Delivery{
		CorrelationId: "corr-header",
		Body:          []byte(`{"relationshipId":"u1_u2","notificationId":"n1","correlationId":"corr-body"}`),
	})
	if err != nil {
		t.Fatalf("decodeRecordCreated() error = %v", err)
	}
	if msg.CorrelationID != "corr-body" {
		t.Fatalf("CorrelationID = %q, want body value to win", msg.CorrelationID)
	}

	if _, err := decodeRecordCreated(amqp.Delivery{Body: []byte(`[]`)}); err == nil {
		t.Fatal("expected error for non-object body")
	}
}

func TestSettleWrapsAcknowledgerError(t *testing.T) {
	if err := settle(nil, "ack"); err != nil {
		t.Fatalf("settle(nil) = %v", err)
	}
	cause := errors.New("channel closed")
	if err := settle(cause, "nack"); !errors.Is(err, cause) {
		t.Fatalf("settle() = %v, want wrapped %v", err, cause)
	}
}

func TestRecordCreatedMessageValidate(t *testing.T) {
	msg := NewRecordCreatedMessage(domain.RecordKey{RelationshipID: "u1_u2", NotificationID: "n1"}, "corr-1")
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if msg.Key().String() != "u1_u2/n1" {
		t.Fatalf("Key() = %s, want u1_u2/n1", msg.Key())
	}

	msg.RelationshipID = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected relationshipId validation error")
	}

	msg.RelationshipID = "u1_u2"
	msg.NotificationID = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected notificationId validation error")
	}
}

func TestNewPublishing(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := NewRecordCreatedMessage(domain.RecordKey{RelationshipID: "u1_u2", NotificationID: "n1"}, "corr-1")

	publishing, err := newPublishing(msg, now)
	if err != nil {
		t.Fatalf("newPublishing() error = %v", err)
	}
	if publishing.MessageId != "u1_u2/n1" {
		t.Fatalf("MessageId = %q", publishing.MessageId)
	}
	if publishing.CorrelationId != "corr-1" || publishing.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected publishing headers: %+v", publishing)
	}

	var decoded map[string]string
	if err := json.Unmarshal(publishing.Body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded["relationshipId"] != "u1_u2" || decoded["notificationId"] != "n1" {
		t.Fatalf("body = %v", decoded)
	}

	if _, err := newPublishing(RecordCreatedMessage{}, now); err == nil {
		t.Fatal("expected error for invalid message")
	}
}

func TestHandleDelivery(t *testing.T) {
	validBody := []byte(`{"relationshipId":"u1_u2","notificationId":"n1"}`)

	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		wantCalls   int
		wantAcks    int
		wantNacks   int
		wantRejects int
		wantRequeue bool
	}{
		{name: "ack on success", body: validBody, wantCalls: 1, wantAcks: 1},
		{name: "requeue on handler error", body: validBody, handlerErr: errors.New("db down"), wantCalls: 1, wantNacks: 1, wantRequeue: true},
		{name: "reject invalid json", body: []byte(`{`), wantRejects: 1},
		{name: "reject missing ids", body: []byte(`{"relationshipId":"u1_u2"}`), wantRejects: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			consumer := NewRabbitMQConsumer(nil, 1, zap.NewNop())

			calls := 0
			handler := func(ctx context.Context, msg RecordCreatedMessage) error {
				calls++
				if msg.Key().String() != "u1_u2/n1" {
					t.Fatalf("handler got key %s", msg.Key())
				}
				return tt.handlerErr
			}

			d := amqp.Delivery{Acknowledger: ack, Body: tt.body}
			if err := consumer.handleDelivery(context.Background(), d, handler); err != nil {
				t.Fatalf("handleDelivery() error = %v", err)
			}

			if calls != tt.wantCalls {
				t.Fatalf("handler calls = %d, want %d", calls, tt.wantCalls)
			}
			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks || ack.rejects != tt.wantRejects {
				t.Fatalf("acks/nacks/rejects = %d/%d/%d, want %d/%d/%d",
					ack.acks, ack.nacks, ack.rejects, tt.wantAcks, tt.wantNacks, tt.wantRejects)
			}
			if ack.requeue != tt.wantRequeue {
				t.Fatalf("requeue = %v, want %v", ack.requeue, tt.wantRequeue)
			}
		})
	}
}

func TestHandleDeliveryPropagatesCorrelationID(t *testing.T) {
	consumer := NewRabbitMQConsumer(nil, 1, nil)

	var got string
	handler := func(ctx context.Context, msg RecordCreatedMessage) error {
		got, _ = observability.CorrelationIDFromContext(ctx)
		return nil
	}

	d := amqp.Delivery{
		Acknowledger:  &fakeAcknowledger{},
		CorrelationId: "corr-header",
		Body:          []byte(`{"relationshipId":"u1_u2","notificationId":"n1"}`),
	}
	if err := consumer.handleDelivery(context.Background(), d, handler); err != nil {
		t.Fatalf("handleDelivery() error = %v", err)
	}
	if got != "corr-header" {
		t.Fatalf("correlation id = %q, want corr-header", got)
	}
}
