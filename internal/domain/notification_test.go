package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNotificationRecordValidate(t *testing.T) {
	t.Parallel()

	base := NotificationRecord{
		Key:   RecordKey{RelationshipID: "u1_u2", NotificationID: "n1"},
		ToUID: "u1",
		Text:  "hi",
	}

	tests := []struct {
		name    string
		mutate  func(*NotificationRecord)
		wantErr bool
	}{
		{
			name: "valid record",
			mutate: func(r *NotificationRecord) {
				// keep base
			},
		},
		{
			name: "missing relationship id",
			mutate: func(r *NotificationRecord) {
				r.Key.RelationshipID = " "
			},
			wantErr: true,
		},
		{
			name: "missing notification id",
			mutate: func(r *NotificationRecord) {
				r.Key.NotificationID = ""
			},
			wantErr: true,
		},
		{
			name: "missing recipient",
			mutate: func(r *NotificationRecord) {
				r.ToUID = ""
			},
			wantErr: true,
		},
		{
			name: "missing text",
			mutate: func(r *NotificationRecord) {
				r.Text = ""
			},
			wantErr: true,
		},
		{
			name: "rune-aware text length accepted",
			mutate: func(r *NotificationRecord) {
				r.Text = strings.Repeat("愛", MaxMessageText)
			},
		},
		{
			name: "text over limit",
			mutate: func(r *NotificationRecord) {
				r.Text = strings.Repeat("a", MaxMessageText+1)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestNotificationRecordDisplayTitle(t *testing.T) {
	t.Parallel()

	blank := "   "
	custom := "Dinner?"

	if got := (&NotificationRecord{}).DisplayTitle(); got != DefaultMessageTitle {
		t.Fatalf("DisplayTitle() nil = %q, want %q", got, DefaultMessageTitle)
	}
	if got := (&NotificationRecord{Title: &blank}).DisplayTitle(); got != DefaultMessageTitle {
		t.Fatalf("DisplayTitle() blank = %q, want %q", got, DefaultMessageTitle)
	}
	if got := (&NotificationRecord{Title: &custom}).DisplayTitle(); got != custom {
		t.Fatalf("DisplayTitle() = %q, want %q", got, custom)
	}
}

func TestNotificationRecordRetryable(t *testing.T) {
	t.Parallel()

	sentAt := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name   string
		record *NotificationRecord
		want   bool
	}{
		{name: "nil", record: nil, want: false},
		{name: "fresh", record: &NotificationRecord{}, want: true},
		{name: "below budget", record: &NotificationRecord{RetryCount: MaxRetryCount - 1}, want: true},
		{name: "budget exhausted", record: &NotificationRecord{RetryCount: MaxRetryCount}, want: false},
		{name: "sent", record: &NotificationRecord{Sent: true, SentAt: &sentAt}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.record.Retryable(); got != tt.want {
				t.Fatalf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotificationRecordDeliverable(t *testing.T) {
	t.Parallel()

	if (&NotificationRecord{ToUID: "u1"}).Deliverable() {
		t.Fatal("record without text should not be deliverable")
	}
	if (&NotificationRecord{Text: "hi"}).Deliverable() {
		t.Fatal("record without recipient should not be deliverable")
	}
	if !(&NotificationRecord{ToUID: "u1", Text: "hi"}).Deliverable() {
		t.Fatal("record with recipient and text should be deliverable")
	}
}

func TestMemberIDs(t *testing.T) {
	t.Parallel()

	a, b, err := MemberIDs("u1_u2")
	if err != nil {
		t.Fatalf("MemberIDs() unexpected error = %v", err)
	}
	if a != "u1" || b != "u2" {
		t.Fatalf("MemberIDs() = (%q, %q), want (u1, u2)", a, b)
	}

	for _, id := range []string{"", "u1", "u1_", "_u2", "u1_u2_u3"} {
		if _, _, err := MemberIDs(id); !errors.Is(err, ErrValidation) {
			t.Fatalf("MemberIDs(%q) error = %v, want ErrValidation", id, err)
		}
	}
}

func TestCountdownActive(t *testing.T) {
	t.Parallel()

	target := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	if !(Countdown{Enabled: true, NotifyEnabled: true, TargetAt: &target}).Active() {
		t.Fatal("fully configured countdown should be active")
	}
	if (Countdown{Enabled: true, NotifyEnabled: false, TargetAt: &target}).Active() {
		t.Fatal("countdown with notifications off should not be active")
	}
	if (Countdown{Enabled: false, NotifyEnabled: true, TargetAt: &target}).Active() {
		t.Fatal("disabled countdown should not be active")
	}
	if (Countdown{Enabled: true, NotifyEnabled: true}).Active() {
		t.Fatal("countdown without target should not be active")
	}
}

func TestNewPushMessage(t *testing.T) {
	t.Parallel()

	msg := NewPushMessage("tok-1", "Trip", "3 days left", PushTypeCountdown, "u1_u2")

	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
	if msg.Priority != PriorityHigh {
		t.Fatalf("priority = %q, want %q", msg.Priority, PriorityHigh)
	}
	if msg.Data["type"] != "countdown" || msg.Data["relationshipId"] != "u1_u2" {
		t.Fatalf("data = %v, want countdown/u1_u2", msg.Data)
	}
	if msg.DisplayHints.Channel != "baby_channel" || msg.DisplayHints.Visibility != "public" || msg.DisplayHints.Sound != "default" {
		t.Fatalf("display hints = %+v", msg.DisplayHints)
	}

	msg.Target = ""
	if err := msg.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
