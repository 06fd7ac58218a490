package domain

import (
	"fmt"
	"strings"
	"time"
)

// RelationshipIDDelimiter separates the two member ids inside a relationship id.
const RelationshipIDDelimiter = "_"

const DefaultEventTitle = "event"

// Countdown is the per-relationship reminder configuration. It is read-only here.
type Countdown struct {
	Enabled       bool
	NotifyEnabled bool
	TargetAt      *time.Time
	EventTitle    *string
}

// Active reports whether daily reminders should be generated.
func (c Countdown) Active() bool {
	return c.Enabled && c.NotifyEnabled && c.TargetAt != nil
}

func (c Countdown) Title() string {
	if c.EventTitle == nil || strings.TrimSpace(*c.EventTitle) == "" {
		return DefaultEventTitle
	}
	return *c.EventTitle
}

type Relationship struct {
	ID        string
	Countdown Countdown
}

// MemberIDs splits a relationship id into its two member user ids.
func MemberIDs(relationshipID string) (string, string, error) {
	parts := strings.Split(relationshipID, RelationshipIDDelimiter)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("%w: relationship id %q must contain exactly two members", ErrValidation, relationshipID)
	}
	return parts[0], parts[1], nil
}
