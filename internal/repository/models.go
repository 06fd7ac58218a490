package repository

import (
	"time"

	"github.com/kursadbilgin/pair-notify/internal/domain"
)

// NotificationRecordModel is the persistence model for the notifications table.
// The relationship id is stored on the row rather than derived from a storage path.
type NotificationRecordModel struct {
	RelationshipID string  `gorm:"type:varchar(255);primaryKey"`
	NotificationID string  `gorm:"type:varchar(255);primaryKey"`
	ToUID          string  `gorm:"column:to_uid;type:varchar(255);not null;default:''"`
	Title          *string `gorm:"type:varchar(255)"`
	Text           string  `gorm:"type:text;not null;default:''"`
	Sent           bool    `gorm:"not null;default:false"`
	RetryCount     int     `gorm:"not null;default:0"`
	SentAt         *time.Time
	LastTriedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (NotificationRecordModel) TableName() string {
	return "notifications"
}

// CountdownColumns is embedded into RelationshipModel with the countdown_ prefix.
type CountdownColumns struct {
	Enabled       bool    `gorm:"not null;default:false"`
	NotifyEnabled bool    `gorm:"not null;default:false"`
	TargetAt      *time.Time
	EventTitle    *string `gorm:"type:varchar(255)"`
}

// RelationshipModel is the persistence model for relationships.
type RelationshipModel struct {
	ID        string           `gorm:"type:varchar(255);primaryKey"`
	Countdown CountdownColumns `gorm:"embedded;embeddedPrefix:countdown_"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RelationshipModel) TableName() string {
	return "relationships"
}

// UserModel carries the push token registered by a user's device.
type UserModel struct {
	UID       string  `gorm:"column:uid;type:varchar(255);primaryKey"`
	FCMToken  *string `gorm:"column:fcm_token;type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func recordModelFromDomain(r *domain.NotificationRecord) *NotificationRecordModel {
	if r == nil {
		return nil
	}

	return &NotificationRecordModel{
		RelationshipID: r.Key.RelationshipID,
		NotificationID: r.Key.NotificationID,
		ToUID:          r.ToUID,
		Title:          r.Title,
		Text:           r.Text,
		Sent:           r.Sent,
		RetryCount:     r.RetryCount,
		SentAt:         r.SentAt,
		LastTriedAt:    r.LastTriedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func recordModelToDomain(m *NotificationRecordModel) *domain.NotificationRecord {
	if m == nil {
		return nil
	}

	return &domain.NotificationRecord{
		Key: domain.RecordKey{
			RelationshipID: m.RelationshipID,
			NotificationID: m.NotificationID,
		},
		ToUID:       m.ToUID,
		Title:       m.Title,
		Text:        m.Text,
		Sent:        m.Sent,
		RetryCount:  m.RetryCount,
		SentAt:      m.SentAt,
		LastTriedAt: m.LastTriedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func relationshipModelFromDomain(r *domain.Relationship) *RelationshipModel {
	if r == nil {
		return nil
	}

	return &RelationshipModel{
		ID: r.ID,
		Countdown: CountdownColumns{
			Enabled:       r.Countdown.Enabled,
			NotifyEnabled: r.Countdown.NotifyEnabled,
			TargetAt:      r.Countdown.TargetAt,
			EventTitle:    r.Countdown.EventTitle,
		},
	}
}

func relationshipModelToDomain(m *RelationshipModel) *domain.Relationship {
	if m == nil {
		return nil
	}

	return &domain.Relationship{
		ID: m.ID,
		Countdown: domain.Countdown{
			Enabled:       m.Countdown.Enabled,
			NotifyEnabled: m.Countdown.NotifyEnabled,
			TargetAt:      m.Countdown.TargetAt,
			EventTitle:    m.Countdown.EventTitle,
		},
	}
}
