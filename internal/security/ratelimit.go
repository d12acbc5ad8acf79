package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key exceeds its allowance.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig holds the per-key limit. Zero disables limiting.
type RateLimitConfig struct {
	MessagesPerMin int `yaml:"messages_per_min"`
}

// RateLimiter implements a sliding-window limit per key: a Dialogflow user
// id for the webhook, a client address for admin auth failures.
// Each key tracks timestamps of its recent events within the window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithClock sets the time source used for windows.
func WithClock(now func() time.Time) LimiterOption {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter creates a rate limiter from cfg.
func NewRateLimiter(cfg RateLimitConfig, opts ...LimiterOption) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string][]time.Time),
		limit:   cfg.MessagesPerMin,
		window:  time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Len returns the number of keys currently tracked.
func (rl *RateLimiter) Len() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Enabled reports whether a limit is configured.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.limit > 0
}

// Allow records an event for key. It returns ErrRateLimited, without
// recording, when key already used its allowance in the current window.
func (rl *RateLimiter) Allow(key string) error {
	if !rl.Enabled() {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	events := evict(rl.buckets[key], now.Add(-rl.window))
	if len(events) >= rl.limit {
		rl.buckets[key] = events
		return ErrRateLimited
	}
	rl.buckets[key] = append(events, now)
	return nil
}

// Exceeded reports whether key has used its allowance in the current
// window. Unlike Allow it records nothing.
func (rl *RateLimiter) Exceeded(key string) bool {
	if !rl.Enabled() {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	events, ok := rl.buckets[key]
	if !ok {
		return false
	}
	events = evict(events, rl.now().Add(-rl.window))
	rl.buckets[key] = events
	return len(events) >= rl.limit
}

// Sweep drops keys with no events inside the window and returns how many
// were dropped.
func (rl *RateLimiter) Sweep() int {
	if !rl.Enabled() {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	dropped := 0
	for key, events := range rl.buckets {
		if len(evict(events, cutoff)) == 0 {
			delete(rl.buckets, key)
			dropped++
		}
	}
	return dropped
}

// evict removes events at or before cutoff. Events are chronological.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return events[i:]
}
