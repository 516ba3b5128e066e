package service

import (
	"sync"
	"time"
)

// RateLimiter bounds external model calls to maxCalls per fixed window.
// The window resets lazily on the first check after it elapses; bursts
// straddling a window boundary are accepted behavior. Safe for
// concurrent use across requests.
type RateLimiter struct {
	mu          sync.Mutex
	maxCalls    int
	window      time.Duration
	windowStart time.Time
	calls       int
	now         func() time.Time
}

// NewRateLimiter builds a limiter allowing maxCalls per window.
func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxCalls:    maxCalls,
		window:      window,
		windowStart: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether another model call may start. It does not
// consume a slot; cache hits check but never consume.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetIfElapsed()
	return l.calls < l.maxCalls
}

// Mark consumes one slot. Call it only when a model call is actually
// dispatched.
func (l *RateLimiter) Mark() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetIfElapsed()
	l.calls++
}

func (l *RateLimiter) resetIfElapsed() {
	if l.now().Sub(l.windowStart) > l.window {
		l.windowStart = l.now()
		l.calls = 0
	}
}
