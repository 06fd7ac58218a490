package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	"github.com/kursadbilgin/pair-notify/internal/queue"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"go.uber.org/zap"
)

// CreateRecordInput is a message composed for one member of a relationship.
type CreateRecordInput struct {
	RelationshipID string
	NotificationID string
	ToUID          string
	Title          *string
	Text           string
}

type CreateRecordResult struct {
	Record *domain.NotificationRecord
	// Created is false when a record with the same key already existed.
	Created bool
	// Published is false when the record-created event could not be sent;
	// the record is then left for the retry sweeper.
	Published bool
}

// RecordService stores new notification records and announces them to the dispatcher.
type RecordService struct {
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	newID         func() string
	now           func() time.Time
}

func NewRecordService(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*RecordService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecordService{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
		newID:         uuid.NewString,
		now:           time.Now,
	}, nil
}

func (s *RecordService) Create(ctx context.Context, input CreateRecordInput) (*CreateRecordResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	record, err := s.prepareRecord(input)
	if err != nil {
		return nil, err
	}

	logger := observability.WithContextLogger(s.logger, ctx).
		With(observability.RecordFields(record.Key.RelationshipID, record.Key.NotificationID)...)

	if err := s.notifications.Create(ctx, record); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}

		existing, getErr := s.notifications.Get(ctx, record.Key)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load existing record after conflict: %w", getErr)
		}
		logger.Info("record already exists, returning stored copy")
		return &CreateRecordResult{Record: existing}, nil
	}

	correlationID, ok := observability.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = s.newID()
	}

	msg := queue.NewRecordCreatedMessage(record.Key, correlationID)
	if err := s.publisher.Publish(ctx, queue.RecordCreatedQueue, msg); err != nil {
		logger.Warn("failed to publish record created event, leaving record for sweep", zap.Error(err))
		return &CreateRecordResult{Record: record, Created: true}, nil
	}

	return &CreateRecordResult{Record: record, Created: true, Published: true}, nil
}

func (s *RecordService) Get(ctx context.Context, key domain.RecordKey) (*domain.NotificationRecord, error) {
	key.RelationshipID = strings.TrimSpace(key.RelationshipID)
	key.NotificationID = strings.TrimSpace(key.NotificationID)
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.notifications.Get(ctx, key)
}

func (s *RecordService) prepareRecord(input CreateRecordInput) (*domain.NotificationRecord, error) {
	record := &domain.NotificationRecord{
		Key: domain.RecordKey{
			RelationshipID: strings.TrimSpace(input.RelationshipID),
			NotificationID: strings.TrimSpace(input.NotificationID),
		},
		ToUID: strings.TrimSpace(input.ToUID),
		Title: normalizeOptionalString(input.Title),
		Text:  strings.TrimSpace(input.Text),
	}
	if record.Key.NotificationID == "" {
		record.Key.NotificationID = s.newID()
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	first, second, err := domain.MemberIDs(record.Key.RelationshipID)
	if err != nil {
		return nil, err
	}
	if record.ToUID != first && record.ToUID != second {
		return nil, fmt.Errorf("%w: toUid %q is not a member of relationship %q",
			domain.ErrValidation, record.ToUID, record.Key.RelationshipID)
	}

	now := s.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	return record, nil
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
