package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultGuardTTL   = 48 * time.Hour
	dailyGuardKeyBase = "pair-notify:countdown"
)

// DailyGuard marks a relationship's countdown reminder as handled for one
// local date, so a re-run of the daily job does not send it twice.
type DailyGuard struct {
	client goredis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

func NewDailyGuard(client goredis.Cmdable, ttl time.Duration) (*DailyGuard, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}

	return &DailyGuard{client: client, ttl: ttl, now: time.Now}, nil
}

// Acquire reports true the first time it is called for a relationship and date.
// The stored value is the acquisition time, for inspecting a day's runs.
func (g *DailyGuard) Acquire(ctx context.Context, relationshipID string, date string) (bool, error) {
	if g == nil || g.client == nil {
		return false, fmt.Errorf("daily guard is not initialized")
	}

	rid := strings.TrimSpace(relationshipID)
	day := strings.TrimSpace(date)
	if rid == "" || day == "" {
		return false, fmt.Errorf("relationship id and date are required")
	}

	acquired, err := g.client.SetNX(ctx, dailyGuardKey(rid, day), g.now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire countdown guard: %w", err)
	}
	return acquired, nil
}

func dailyGuardKey(relationshipID string, date string) string {
	return fmt.Sprintf("%s:%s:%s", dailyGuardKeyBase, relationshipID, date)
}
