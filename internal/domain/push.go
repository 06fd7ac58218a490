package domain

import (
	"fmt"
	"strings"
)

// PushType drives client-side routing of a push.
type PushType string

const (
	PushTypeMessage   PushType = "message"
	PushTypeCountdown PushType = "countdown"
)

func (t PushType) String() string { return string(t) }

const (
	PriorityHigh = "high"

	DisplayChannel    = "baby_channel"
	DisplayVisibility = "public"
	DisplaySound      = "default"
)

type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type DisplayHints struct {
	Channel    string `json:"channel"`
	Visibility string `json:"visibility"`
	Sound      string `json:"sound"`
}

// PushMessage is the wire payload handed to the push transport.
type PushMessage struct {
	Target       string            `json:"target"`
	Notification *PushNotification `json:"notification,omitempty"`
	Data         map[string]string `json:"data"`
	Priority     string            `json:"priority"`
	DisplayHints DisplayHints      `json:"displayHints"`
}

// NewPushMessage builds a high-priority display push with the foreground channel hints.
func NewPushMessage(token string, title string, body string, pushType PushType, relationshipID string) PushMessage {
	return PushMessage{
		Target: token,
		Notification: &PushNotification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"relationshipId": relationshipID,
			"type":           pushType.String(),
		},
		Priority: PriorityHigh,
		DisplayHints: DisplayHints{
			Channel:    DisplayChannel,
			Visibility: DisplayVisibility,
			Sound:      DisplaySound,
		},
	}
}

func (m PushMessage) Validate() error {
	if strings.TrimSpace(m.Target) == "" {
		return fmt.Errorf("%w: push target is required", ErrValidation)
	}
	if m.Data == nil {
		return fmt.Errorf("%w: push data is required", ErrValidation)
	}
	return nil
}
