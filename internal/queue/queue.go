package queue

import "context"

// Publisher publishes record-created events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg RecordCreatedMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg RecordCreatedMessage) error

// Consumer consumes record-created events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// RecordCreatedQueue carries one event per newly stored notification record.
	RecordCreatedQueue = "notifications.created"
	// RecordCreatedDLQ receives events the consumer rejects as malformed.
	RecordCreatedDLQ = "dlq.notifications.created"
)
