package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 100
	rateLimitKeyPrefix       = "pair-notify:ratelimit"
)

// countInWindow increments the counter of one window and returns the new
// count. The key outlives its window by one second, long enough to be read.
var countInWindow = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], 2)
end
return n
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter paces pushes across every process that shares the same
// Redis. Each wall-clock second is a window of at most limitPerSec sends.
type RedisRateLimiter struct {
	client      goredis.Scripter
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client goredis.Scripter, limitPerSec int) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	limit := int64(limitPerSec)
	if limit <= 0 {
		limit = defaultLimitPerSec
	}

	return &RedisRateLimiter{
		client:      client,
		limitPerSec: limit,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

// Allow takes one slot of the current window for scope, if any is left.
func (r *RedisRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	_, allowed, err := r.take(ctx, scope)
	return allowed, err
}

// Wait blocks until scope gets a slot or ctx ends. A full window means
// sleeping until the next second starts.
func (r *RedisRateLimiter) Wait(ctx context.Context, scope string) error {
	for {
		window, allowed, err := r.take(ctx, scope)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, window.Add(time.Second).Sub(r.now())); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) take(ctx context.Context, scope string) (time.Time, bool, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return time.Time{}, false, fmt.Errorf("rate limit scope is required")
	}

	window := r.now().UTC().Truncate(time.Second)
	key := fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, scope, window.Unix())
	count, err := countInWindow.Run(ctx, r.client, []string{key}).Int64()
	if err != nil {
		return window, false, fmt.Errorf("failed to count push window: %w", err)
	}

	return window, count <= r.limitPerSec, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
