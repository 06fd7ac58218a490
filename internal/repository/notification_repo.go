package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	Create(ctx context.Context, r *domain.NotificationRecord) error
	Get(ctx context.Context, key domain.RecordKey) (*domain.NotificationRecord, error)
	ListUnsentRetryable(ctx context.Context, maxRetries int, after *SweepCursor, limit int) ([]domain.NotificationRecord, error)
	MarkSent(ctx context.Context, key domain.RecordKey, sentAt time.Time) (bool, error)
	IncrementRetry(ctx context.Context, key domain.RecordKey, triedAt time.Time, maxRetries int) (bool, error)
}

// SweepCursor is the position of the last record returned by a backlog page.
// Pages are ordered by (created_at, relationship_id, notification_id).
type SweepCursor struct {
	CreatedAt time.Time
	Key       domain.RecordKey
}

// CursorAfter returns the cursor positioned on record.
func CursorAfter(record domain.NotificationRecord) *SweepCursor {
	return &SweepCursor{CreatedAt: record.CreatedAt, Key: record.Key}
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

// Create inserts a new record. An existing record with the same key is left
// untouched and ErrConflict is returned.
func (r *GormNotificationRepo) Create(ctx context.Context, record *domain.NotificationRecord) error {
	model := recordModelFromDomain(record)
	if model == nil {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}

	*record = *recordModelToDomain(model)
	return nil
}

func (r *GormNotificationRepo) Get(ctx context.Context, key domain.RecordKey) (*domain.NotificationRecord, error) {
	var model NotificationRecordModel
	err := r.db.WithContext(ctx).
		Where("relationship_id = ? AND notification_id = ?", key.RelationshipID, key.NotificationID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recordModelToDomain(&model), nil
}

// ListUnsentRetryable returns one page of records, across every relationship,
// with sent=false and retry_count below maxRetries, strictly after the cursor.
// A nil cursor starts at the oldest record. A non-positive limit returns all matches.
func (r *GormNotificationRepo) ListUnsentRetryable(
	ctx context.Context,
	maxRetries int,
	after *SweepCursor,
	limit int,
) ([]domain.NotificationRecord, error) {
	query := r.db.WithContext(ctx).
		Where("sent = ? AND retry_count < ?", false, maxRetries)
	if after != nil {
		query = query.Where(
			"created_at > ? OR (created_at = ? AND (relationship_id > ? OR (relationship_id = ? AND notification_id > ?)))",
			after.CreatedAt, after.CreatedAt,
			after.Key.RelationshipID, after.Key.RelationshipID,
			after.Key.NotificationID,
		)
	}
	query = query.
		Order("created_at ASC").
		Order("relationship_id ASC").
		Order("notification_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []NotificationRecordModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]domain.NotificationRecord, 0, len(models))
	for i := range models {
		records = append(records, *recordModelToDomain(&models[i]))
	}

	return records, nil
}

// MarkSent flips sent to true. It reports false when the record was already
// sent or does not exist, so the transition happens at most once.
func (r *GormNotificationRepo) MarkSent(ctx context.Context, key domain.RecordKey, sentAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationRecordModel{}).
		Where("relationship_id = ? AND notification_id = ? AND sent = ?", key.RelationshipID, key.NotificationID, false).
		Updates(map[string]any{
			"sent":    true,
			"sent_at": sentAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementRetry records one failed sweep attempt. Sent records and records
// whose budget is already used up are not touched.
func (r *GormNotificationRepo) IncrementRetry(ctx context.Context, key domain.RecordKey, triedAt time.Time, maxRetries int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationRecordModel{}).
		Where("relationship_id = ? AND notification_id = ? AND sent = ? AND retry_count < ?",
			key.RelationshipID, key.NotificationID, false, maxRetries).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_tried_at": triedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
