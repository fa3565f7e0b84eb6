// Package ratelimit implements per-API-key sliding-window admission control
// backed by the shared counter store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JuanCabardoneschi/clip-search-api/internal/metrics"
)

const (
	minuteWindow = 60 * time.Second
	hourWindow   = 3600 * time.Second
)

// CounterStore is the consumer interface for window counters. Incr must be
// atomic increment-and-read.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Config holds the admission ceilings.
type Config struct {
	CallsPerMinute int
	CallsPerHour   int
}

// Window reports the state of one admission window after an increment.
type Window struct {
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Decision is the outcome of one admission check. When the store is
// unreachable FailOpen is set and the request is admitted anyway.
type Decision struct {
	Allowed  bool
	Bypassed bool
	FailOpen bool
	Minute   Window
	Hour     Window

	// RetryAfter is the time until the exceeded window resets.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter guards the pipeline entry point. Counters live in the shared
// store; the limiter holds no counter state in process memory.
type Limiter struct {
	store  CounterStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Limiter.
func New(store CounterStore, cfg Config, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Allow increments both window counters for the API key and decides
// admission. Counters increment even on rejection: the count reflects total
// attempts. Requests without an API key bypass rate limiting; authentication
// rejects them earlier. A store outage fails open.
func (l *Limiter) Allow(ctx context.Context, apiKey string) Decision {
	if apiKey == "" {
		metrics.RateLimitDecisionsTotal.WithLabelValues("bypass").Inc()
		return Decision{Allowed: true, Bypassed: true}
	}

	now := l.now()

	minuteCount, err := l.bump(ctx, l.windowKey(apiKey, "minute", now, minuteWindow), minuteWindow)
	if err != nil {
		return l.failOpen(err)
	}
	hourCount, err := l.bump(ctx, l.windowKey(apiKey, "hour", now, hourWindow), hourWindow)
	if err != nil {
		return l.failOpen(err)
	}

	d := Decision{
		Allowed: true,
		Minute:  windowState(l.cfg.CallsPerMinute, minuteCount, now, minuteWindow),
		Hour:    windowState(l.cfg.CallsPerHour, hourCount, now, hourWindow),
	}

	switch {
	case minuteCount > int64(l.cfg.CallsPerMinute):
		d.Allowed = false
		d.RetryAfter = d.Minute.ResetAfter
	case hourCount > int64(l.cfg.CallsPerHour):
		d.Allowed = false
		d.RetryAfter = d.Hour.ResetAfter
	}

	if d.Allowed {
		metrics.RateLimitDecisionsTotal.WithLabelValues("allowed").Inc()
	} else {
		metrics.RateLimitDecisionsTotal.WithLabelValues("rejected").Inc()
	}
	return d
}

// bump increments a window counter and arms its expiry on first increment.
func (l *Limiter) bump(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := l.store.Expire(ctx, key, window, true); err != nil {
			l.logger.Warn("Failed to arm rate window expiry", zap.String("key", key), zap.Error(err))
		}
	}
	return count, nil
}

// failOpen admits the request when the counter store is unreachable.
// Availability is prioritized over strict enforcement.
func (l *Limiter) failOpen(err error) Decision {
	l.logger.Warn("Rate limit store unavailable, failing open", zap.Error(err))
	metrics.RateLimitDecisionsTotal.WithLabelValues("fail_open").Inc()
	return Decision{
		Allowed:  true,
		FailOpen: true,
		Minute:   Window{Limit: l.cfg.CallsPerMinute, Remaining: -1},
		Hour:     Window{Limit: l.cfg.CallsPerHour, Remaining: -1},
	}
}

func (l *Limiter) windowKey(apiKey, granularity string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("rate_limit:%s:%s:%d", apiKey, granularity, now.Unix()/int64(window.Seconds()))
}

func windowState(limit int, count int64, now time.Time, window time.Duration) Window {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	secs := int64(window.Seconds())
	return Window{
		Limit:      limit,
		Remaining:  int(remaining),
		ResetAfter: time.Duration(secs-now.Unix()%secs) * time.Second,
	}
}
