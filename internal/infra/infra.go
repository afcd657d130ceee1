// Package infra provides shared infrastructure components used across
// the application: rate limiting, the serial request queue, retries,
// HTTP helpers and logging.
package infra

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// --- Rate limiter ---

// RateLimiter allows at most limit acquisitions within any rolling window.
// It keeps a log of the most recent start times and, when full, waits until
// the oldest one leaves the window.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	starts []time.Time
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter that allows limit starts per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		starts: make([]time.Time, 0, limit),
		now:    time.Now,
	}
}

// Wait blocks until a slot is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a start if the window has room, otherwise it reports how
// long until the oldest start expires.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	i := 0
	for i < len(rl.starts) && now.Sub(rl.starts[i]) >= rl.window {
		i++
	}
	if i > 0 {
		rl.starts = append(rl.starts[:0], rl.starts[i:]...)
	}
	if len(rl.starts) < rl.limit {
		rl.starts = append(rl.starts, now)
		return 0, true
	}
	return rl.starts[0].Add(rl.window).Sub(now), false
}

// InWindow returns how many starts fall inside the current window.
func (rl *RateLimiter) InWindow() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	n := 0
	for _, s := range rl.starts {
		if now.Sub(s) < rl.window {
			n++
		}
	}
	return n
}

// --- HTTP errors ---

// ErrHTTP wraps a non-2xx upstream response.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}
