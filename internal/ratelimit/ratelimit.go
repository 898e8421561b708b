// Package ratelimit provides Redis-based rate limiting for the save path.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter throttles persistence traffic using Redis counters. A nil Limiter
// or one without Redis allows everything (fail-open for availability).
type Limiter struct {
	redis *redis.Client
}

func NewLimiter(redis *redis.Client) *Limiter {
	return &Limiter{redis: redis}
}

// SaveLimits defines how often a drawing may be persisted.
type SaveLimits struct {
	// Per-connection: how many saves a single connection may issue.
	ConnectionLimit  int
	ConnectionWindow time.Duration

	// Per-session: combined save pressure on one durable record. Every save
	// is a read-modify-append, so a hot session hurts more than a hot client.
	SessionLimit  int
	SessionWindow time.Duration
}

// DefaultSaveLimits returns the recommended limits. Clients send deltas, so
// legitimate traffic is a handful of saves per minute.
func DefaultSaveLimits() SaveLimits {
	return SaveLimits{
		ConnectionLimit:  30,
		ConnectionWindow: time.Minute,
		SessionLimit:     120,
		SessionWindow:    time.Minute,
	}
}

// CheckSave checks both limits for one save request. Returns nil if allowed.
func (l *Limiter) CheckSave(ctx context.Context, connectionID, sessionID string) error {
	if l == nil || l.redis == nil {
		return nil
	}

	limits := DefaultSaveLimits()

	connKey := fmt.Sprintf("ratelimit:save:conn:%s", connectionID)
	if err := l.checkLimit(ctx, connKey, limits.ConnectionLimit, limits.ConnectionWindow); err != nil {
		return ErrRateLimited
	}

	sessionKey := fmt.Sprintf("ratelimit:save:session:%s", sessionID)
	if err := l.checkLimit(ctx, sessionKey, limits.SessionLimit, limits.SessionWindow); err != nil {
		return ErrRateLimited
	}

	return nil
}

// checkLimit performs the actual check using Redis INCR.
func (l *Limiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		// Fail-open on Redis errors to maintain availability.
		return nil
	}

	// First request in the window sets the expiry.
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}

	if int(count) > limit {
		return ErrRateLimited
	}
	return nil
}
