package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	"github.com/kursadbilgin/pair-notify/internal/queue"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// Dispatcher makes the immediate, best-effort send for each newly created
// record. A failed send leaves the record as it was for the RetrySweeper.
type Dispatcher struct {
	notifications repository.NotificationRepository
	sender        *PushSender
	consumer      queue.Consumer
	concurrency   int
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	sender *PushSender,
	consumer queue.Consumer,
	concurrency int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("push sender is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		notifications: notifications,
		sender:        sender,
		consumer:      consumer,
		concurrency:   concurrency,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Start consumes record-created events until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if d.consumer == nil {
		return fmt.Errorf("consumer is required to start the dispatcher")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			d.logger.Info("dispatcher worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.RecordCreatedQueue),
			)

			err := d.consumer.Consume(groupCtx, queue.RecordCreatedQueue, d.handleMessage)
			if err != nil {
				d.logger.Error("dispatcher worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			d.logger.Info("dispatcher worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg queue.RecordCreatedMessage) error {
	return d.OnRecordCreated(ctx, msg.Key())
}

// OnRecordCreated handles one (possibly duplicated) record-created event.
// It returns an error only when the record could not be read, so the event
// can be redelivered.
func (d *Dispatcher) OnRecordCreated(ctx context.Context, key domain.RecordKey) error {
	logger := observability.WithContextLogger(d.logger, ctx).
		With(observability.RecordFields(key.RelationshipID, key.NotificationID)...)

	if err := key.Validate(); err != nil {
		logger.Warn("ignoring event with invalid record key", zap.Error(err))
		return nil
	}

	record, err := d.notifications.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("record no longer exists, skipping")
			d.metrics.IncRecordSkipped(observability.PathImmediate, "not_found")
			return nil
		}
		return fmt.Errorf("failed to load record %s: %w", key, err)
	}

	if record.Sent {
		logger.Debug("record already sent, skipping")
		d.metrics.IncRecordSkipped(observability.PathImmediate, "already_sent")
		return nil
	}

	result := d.sender.SendRecord(ctx, observability.PathImmediate, record)
	if result.Outcome != OutcomeSent {
		// Nothing is written on the immediate path; the sweeper owns retries.
		logger.Debug("immediate send not completed", zap.String("outcome", string(result.Outcome)))
		return nil
	}

	marked, err := d.notifications.MarkSent(ctx, key, d.now().UTC())
	if err != nil {
		logger.Error("push sent but marking record as sent failed", zap.Error(err))
		return nil
	}
	if !marked {
		logger.Info("record was marked sent concurrently")
		return nil
	}

	logger.Info("notification delivered", zap.String("messageId", result.MessageID))
	return nil
}
