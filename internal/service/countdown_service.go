package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/countdown"
	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"go.uber.org/zap"
)

// DailyGuard lets a relationship's reminder go out once per local date.
type DailyGuard interface {
	Acquire(ctx context.Context, relationshipID string, date string) (bool, error)
}

// CountdownReport summarizes one daily run.
type CountdownReport struct {
	RunID         string
	Date          string
	Relationships int
	Active        int
	Guarded       int
	Sent          int
	Failed        int
	Skipped       int
}

// CountdownService sends the daily "days until" reminder to both members of
// every relationship with an active countdown. Nothing is persisted and
// failed sends are not retried.
type CountdownService struct {
	relationships repository.RelationshipRepository
	sender        *PushSender
	guard         DailyGuard
	location      *time.Location
	logger        *zap.Logger
	now           func() time.Time
}

func NewCountdownService(
	relationships repository.RelationshipRepository,
	sender *PushSender,
	guard DailyGuard,
	location *time.Location,
	logger *zap.Logger,
) (*CountdownService, error) {
	if relationships == nil {
		return nil, fmt.Errorf("relationship repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("push sender is required")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CountdownService{
		relationships: relationships,
		sender:        sender,
		guard:         guard,
		location:      location,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// RunDaily scans every relationship once. Only a failed scan or a canceled
// context is returned.
func (s *CountdownService) RunDaily(ctx context.Context) (CountdownReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	today := s.now().In(s.location)
	report := CountdownReport{
		RunID: observability.NewRunID("countdown"),
		Date:  countdown.DateString(today),
	}
	ctx = observability.WithCorrelationID(ctx, report.RunID)
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("date", report.Date))

	relationships, err := s.relationships.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list relationships: %w", err)
	}
	report.Relationships = len(relationships)

	for i := range relationships {
		if err := ctx.Err(); err != nil {
			logger.Warn("countdown run interrupted", zap.Int("processed", i))
			return report, err
		}

		s.remind(ctx, logger, &relationships[i], today, &report)
	}

	logger.Info("countdown run finished",
		zap.Int("relationships", report.Relationships),
		zap.Int("active", report.Active),
		zap.Int("guarded", report.Guarded),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (s *CountdownService) remind(
	ctx context.Context,
	logger *zap.Logger,
	relationship *domain.Relationship,
	today time.Time,
	report *CountdownReport,
) {
	if !relationship.Countdown.Active() {
		return
	}
	report.Active++

	logger = logger.With(zap.String("relationshipId", relationship.ID))

	first, second, err := domain.MemberIDs(relationship.ID)
	if err != nil {
		logger.Warn("cannot derive relationship members, skipping", zap.Error(err))
		report.Skipped++
		return
	}

	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, relationship.ID, report.Date)
		switch {
		case err != nil:
			logger.Warn("countdown guard unavailable, sending anyway", zap.Error(err))
		case !acquired:
			logger.Debug("countdown already sent today")
			report.Guarded++
			return
		}
	}

	remaining := countdown.RemainingDays(*relationship.Countdown.TargetAt, today, s.location)
	content := countdown.Select(
		relationship.Countdown.Title(),
		remaining,
		countdown.SeedKey(relationship.ID, today),
	)

	for _, uid := range []string{first, second} {
		result := s.sender.Deliver(ctx, Delivery{
			Path:           observability.PathCountdown,
			RecipientUID:   uid,
			RelationshipID: relationship.ID,
			Type:           domain.PushTypeCountdown,
			Title:          content.Title,
			Body:           content.Body,
		})

		switch result.Outcome {
		case OutcomeSent:
			report.Sent++
		case OutcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	logger.Info("countdown reminder processed",
		zap.Int("remainingDays", remaining),
		zap.String("tier", content.Tier.String()),
	)
}
