package ratelimit

import "context"

// ScopePush is the shared bucket for every outbound push, whatever the delivery path.
const ScopePush = "push"

// RateLimiter controls outbound throughput per scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
