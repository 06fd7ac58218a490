package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxRetryCount is the retry budget. Records at or above it are never swept again.
	MaxRetryCount = 5

	DefaultMessageTitle = "new message"

	MaxMessageText = 1000
)

// RecordKey is the composite identity of a notification record.
type RecordKey struct {
	RelationshipID string
	NotificationID string
}

func (k RecordKey) String() string {
	return k.RelationshipID + "/" + k.NotificationID
}

func (k RecordKey) Validate() error {
	if strings.TrimSpace(k.RelationshipID) == "" {
		return fmt.Errorf("%w: relationship id is required", ErrValidation)
	}
	if strings.TrimSpace(k.NotificationID) == "" {
		return fmt.Errorf("%w: notification id is required", ErrValidation)
	}
	return nil
}

// NotificationRecord is one outbound message to a single recipient.
// Sent is a one-way flag and RetryCount only grows.
type NotificationRecord struct {
	Key         RecordKey
	ToUID       string
	Title       *string
	Text        string
	Sent        bool
	RetryCount  int
	SentAt      *time.Time
	LastTriedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayTitle returns the stored title or the default one.
func (r *NotificationRecord) DisplayTitle() string {
	if r == nil || r.Title == nil || strings.TrimSpace(*r.Title) == "" {
		return DefaultMessageTitle
	}
	return *r.Title
}

// Deliverable reports whether the record carries enough data to be sent.
func (r *NotificationRecord) Deliverable() bool {
	if r == nil {
		return false
	}
	return strings.TrimSpace(r.ToUID) != "" && strings.TrimSpace(r.Text) != ""
}

// Retryable reports whether the sweeper may still pick the record up.
func (r *NotificationRecord) Retryable() bool {
	return r != nil && !r.Sent && r.RetryCount < MaxRetryCount
}

// Validate checks a record about to be created.
func (r *NotificationRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: record is required", ErrValidation)
	}
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.ToUID) == "" {
		return fmt.Errorf("%w: toUid is required", ErrValidation)
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrValidation)
	}
	if n := len([]rune(r.Text)); n > MaxMessageText {
		return fmt.Errorf("%w: text exceeds %d characters (got %d)", ErrValidation, MaxMessageText, n)
	}
	return nil
}
