package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName  = "pair.dlx"
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	connectTimeout   = 15 * time.Second
)

// RabbitMQ owns one broker connection, redialing it when it drops. Every
// channel it hands out has the record-created topology declared.
type RabbitMQ struct {
	url string

	mu     sync.Mutex
	conn   *amqp.Connection
	dialMu sync.Mutex
}

func NewRabbitMQ(ctx context.Context, url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	r := &RabbitMQ{url: url}
	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// Ping reports whether the broker connection is currently open.
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.open() == nil {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

func (r *RabbitMQ) open() *amqp.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn
}

// connection returns the open connection, dialing a new one if needed.
// Concurrent callers share a single redial.
func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn := r.open(); conn != nil {
		return conn, nil
	}

	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	if conn := r.open(); conn != nil {
		return conn, nil
	}

	conn, err := dialWithBackoff(ctx, r.url)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	return conn, nil
}

func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil && conn.IsClosed() {
		// The connection dropped after it was handed out.
		if conn, err = r.connection(ctx); err != nil {
			return nil, err
		}
		ch, err = conn.Channel()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := declareRecordCreatedTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func dialWithBackoff(ctx context.Context, url string) (*amqp.Connection, error) {
	wait := reconnectBackoff
	for {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled, last error %v: %w", err, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
}

// declareRecordCreatedTopology declares the work queue and the dead-letter
// queue that receives its rejected events through the dlx exchange.
func declareRecordCreatedTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(RecordCreatedDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlq %q: %w", RecordCreatedDLQ, err)
	}
	if err := ch.QueueBind(RecordCreatedDLQ, RecordCreatedQueue, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind dlq %q: %w", RecordCreatedDLQ, err)
	}

	if _, err := ch.QueueDeclare(RecordCreatedQueue, true, false, false, false, recordCreatedQueueArgs()); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", RecordCreatedQueue, err)
	}
	return nil
}

func recordCreatedQueueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": RecordCreatedQueue,
	}
}
