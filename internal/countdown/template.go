// Package countdown picks reminder wording for a relationship countdown.
//
// Selection is a pure function of (event title, remaining days, seed key): the
// same inputs always produce the same title and body, so a reminder generated
// twice on the same day reads the same.
package countdown

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// Tier buckets remaining days into a body template pool.
type Tier string

const (
	TierToday Tier = "today"
	TierLast  Tier = "last"
	TierNear  Tier = "near"
	TierMid   Tier = "mid"
	TierFar   Tier = "far"
)

func (t Tier) String() string { return string(t) }

const (
	placeholderTitle = "{title}"
	placeholderDays  = "{days}"

	defaultEventTitle = "event"

	dateLayout = "2006-01-02"
)

var titlePool = []string{
	"Almost there!",
	"Counting down!",
	"Get ready!",
	"Mark the date!",
	"Not long now!",
	"Here it comes!",
}

var bodyPools = map[Tier][]string{
	TierToday: {
		"{title} is today!",
		"Today is the day: {title}!",
	},
	TierLast: {
		"{title} is tomorrow, just {days} day to go!",
	},
	TierNear: {
		"Only {days} days until {title}!",
		"{title} is {days} days away, almost time!",
		"{days} more days and it's {title}!",
	},
	TierMid: {
		"{days} days until {title}.",
		"{title} is coming up in {days} days.",
		"Less than two weeks: {days} days to {title}.",
	},
	TierFar: {
		"{days} days to go until {title}.",
		"{title} is {days} days away.",
		"Still {days} days until {title}, keep counting!",
		"Another day closer: {days} days to {title}.",
	},
}

// Content is the selected reminder wording.
type Content struct {
	Title string
	Body  string
	Tier  Tier
}

// TierFor maps remaining days to a tier.
func TierFor(remainingDays int) Tier {
	switch {
	case remainingDays <= 0:
		return TierToday
	case remainingDays <= 1:
		return TierLast
	case remainingDays <= 5:
		return TierNear
	case remainingDays <= 10:
		return TierMid
	default:
		return TierFar
	}
}

// Select deterministically picks and fills the reminder title and body.
func Select(eventTitle string, remainingDays int, seedKey string) Content {
	if strings.TrimSpace(eventTitle) == "" {
		eventTitle = defaultEventTitle
	}

	tier := TierFor(remainingDays)
	pool := bodyPools[tier]
	days := strconv.Itoa(remainingDays)

	template := pool[pickIndex(seedKey+days, len(pool))]
	body := strings.NewReplacer(
		placeholderTitle, eventTitle,
		placeholderDays, days,
	).Replace(template)

	return Content{
		Title: titlePool[pickIndex(seedKey, len(titlePool))],
		Body:  body,
		Tier:  tier,
	}
}

// SeedKey scopes selection to one relationship on one local calendar day.
func SeedKey(relationshipID string, day time.Time) string {
	return relationshipID + "_" + day.Format(dateLayout)
}

// DateString formats the local calendar date used in seed keys and run guards.
func DateString(day time.Time) string {
	return day.Format(dateLayout)
}

// RemainingDays counts whole calendar days from now's date to target's date in loc.
// Past targets clamp to zero.
func RemainingDays(target time.Time, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}

	targetDay := calendarDay(target.In(loc))
	today := calendarDay(now.In(loc))

	days := int(targetDay.Sub(today).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// calendarDay re-anchors a local date at UTC midnight so day arithmetic ignores DST shifts.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pickIndex(key string, size int) int {
	if size <= 0 {
		return 0
	}
	h := int64(hashString(key))
	if h < 0 {
		h = -h
	}
	return int(h % int64(size))
}

// hashString is the 31-multiplier polynomial hash over UTF-16 code units, wrapped to int32.
func hashString(s string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	return h
}
