package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultSweepLimit    = 500
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	RunID     string
	Selected  int
	Sent      int
	Failed    int
	Skipped   int
	Exhausted int
}

// RetrySweeper re-attempts unsent records that still have retry budget.
// Each failed attempt costs one unit of budget; records that reach
// domain.MaxRetryCount are never selected again.
type RetrySweeper struct {
	notifications repository.NotificationRepository
	sender        *PushSender
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	limit         int
	now           func() time.Time
}

func NewRetrySweeper(
	notifications repository.NotificationRepository,
	sender *PushSender,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetrySweeper, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("push sender is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetrySweeper{
		notifications: notifications,
		sender:        sender,
		logger:        logger,
		interval:      interval,
		limit:         limit,
		now:           time.Now,
	}, nil
}

func (s *RetrySweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *RetrySweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.RunSweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry sweeper initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RunSweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry sweep failed", zap.Error(err))
			}
		}
	}
}

// RunSweep walks the whole eligible backlog once, sequentially, one page of
// limit records at a time. Per-record failures are logged and never stop the
// sweep; only a failed query or a canceled context is returned.
func (s *RetrySweeper) RunSweep(ctx context.Context) (SweepReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	report := SweepReport{RunID: observability.NewRunID("sweep")}
	ctx = observability.WithCorrelationID(ctx, report.RunID)
	logger := observability.WithContextLogger(s.logger, ctx)

	start := s.now()
	defer func() {
		s.metrics.ObserveSweepDuration(s.now().Sub(start))
	}()

	// Keyset pages over (created_at, key); every eligible record is visited once per pass.
	var cursor *repository.SweepCursor
	for {
		page, err := s.notifications.ListUnsentRetryable(ctx, domain.MaxRetryCount, cursor, s.limit)
		if err != nil {
			return report, fmt.Errorf("failed to query unsent records: %w", err)
		}
		report.Selected += len(page)

		for i := range page {
			if err := ctx.Err(); err != nil {
				logger.Warn("retry sweep interrupted",
					zap.Int("selected", report.Selected),
					zap.Int("remainingInPage", len(page)-i),
				)
				return report, err
			}

			s.processRecord(ctx, logger, &page[i], &report)
		}

		if len(page) < s.limit {
			break
		}
		cursor = repository.CursorAfter(page[len(page)-1])
	}

	logger.Info("retry sweep finished",
		zap.Int("selected", report.Selected),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("exhausted", report.Exhausted),
	)
	return report, nil
}

func (s *RetrySweeper) processRecord(ctx context.Context, logger *zap.Logger, record *domain.NotificationRecord, report *SweepReport) {
	logger = logger.With(observability.RecordFields(record.Key.RelationshipID, record.Key.NotificationID)...)

	if !record.Retryable() {
		report.Skipped++
		return
	}

	result := s.sender.SendRecord(ctx, observability.PathRetry, record)
	switch result.Outcome {
	case OutcomeSent:
		report.Sent++
		marked, err := s.notifications.MarkSent(ctx, record.Key, s.now().UTC())
		if err != nil {
			logger.Error("push sent but marking record as sent failed", zap.Error(err))
			return
		}
		if !marked {
			logger.Info("record was marked sent concurrently")
			return
		}
		logger.Info("notification delivered on retry", zap.Int("retryCount", record.RetryCount))

	case OutcomeFailed:
		report.Failed++
		if ctx.Err() != nil {
			// Interrupted by shutdown; the budget is left untouched.
			return
		}

		incremented, err := s.notifications.IncrementRetry(ctx, record.Key, s.now().UTC(), domain.MaxRetryCount)
		if err != nil {
			logger.Error("failed to record retry attempt", zap.Error(err))
			return
		}
		if !incremented {
			logger.Info("record changed during sweep, retry not recorded")
			return
		}

		s.metrics.IncRetryIncremented()
		if record.RetryCount+1 >= domain.MaxRetryCount {
			report.Exhausted++
			s.metrics.IncRetryExhausted()
			logger.Warn("retry budget exhausted, record will no longer be swept",
				zap.Int("retryCount", record.RetryCount+1),
			)
		}

	default:
		report.Skipped++
	}
}
