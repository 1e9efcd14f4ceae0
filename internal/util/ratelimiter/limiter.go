package ratelimiter

import (
	"sync"
	"time"
)

// Limiter lets one action through per interval and is safe for concurrent use.
// A limiter with a non-positive interval never allows anything, which is how
// progress reporting is switched off.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
	now         func() time.Time
}

// New creates a new rate limiter with the specified interval.
// The first call to Allow is not allowed until one interval has passed,
// so short operations produce no output at all.
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, time.Now)
}

// NewWithClock creates a limiter that reads time from now
func NewWithClock(interval time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		interval:    interval,
		lastAllowed: now(),
		now:         now,
	}
}

// Allow reports whether an action may run now and, if so, records it
func (l *Limiter) Allow() bool {
	if l.interval <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastAllowed) < l.interval {
		return false
	}
	l.lastAllowed = now
	return true
}

// Reset restarts the interval from now
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.lastAllowed = l.now()
	l.mu.Unlock()
}

// Interval returns the configured interval
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
