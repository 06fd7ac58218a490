package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/pair-notify/internal/domain"
)

// RecordCreatedMessage announces that a notification record was stored.
// It only carries the record key; consumers always re-read the record.
type RecordCreatedMessage struct {
	RelationshipID string `json:"relationshipId"`
	NotificationID string `json:"notificationId"`
	CorrelationID  string `json:"correlationId,omitempty"`
}

func NewRecordCreatedMessage(key domain.RecordKey, correlationID string) RecordCreatedMessage {
	return RecordCreatedMessage{
		RelationshipID: key.RelationshipID,
		NotificationID: key.NotificationID,
		CorrelationID:  correlationID,
	}
}

func (m RecordCreatedMessage) Key() domain.RecordKey {
	return domain.RecordKey{
		RelationshipID: m.RelationshipID,
		NotificationID: m.NotificationID,
	}
}

func (m RecordCreatedMessage) Validate() error {
	if strings.TrimSpace(m.RelationshipID) == "" {
		return fmt.Errorf("relationshipId is required")
	}
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	return nil
}
