package content

import (
	"sync"
	"time"
)

// IntervalLimiter enforces a minimum interval between successive calls to
// a costly service, process-wide. Before each call the caller invokes
// Wait, which sleeps out whatever remains of the interval since the last
// recorded call; after a successful call the caller invokes Record.
//
// Failed calls are deliberately not recorded, so a failure does not delay
// the re-run. The limiter is owned by the content generator and injected,
// never a package global, and it is safe for concurrent use.
type IntervalLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// IntervalLimiterOption is a functional option for configuring an
// IntervalLimiter.
type IntervalLimiterOption func(*IntervalLimiter)

// WithClock overrides the time source and sleep function. This is
// intended for testing with a fake clock.
func WithClock(now func() time.Time, sleep func(time.Duration)) IntervalLimiterOption {
	return func(l *IntervalLimiter) {
		l.now = now
		l.sleep = sleep
	}
}

// NewIntervalLimiter creates a limiter enforcing the given minimum
// interval between recorded calls.
func NewIntervalLimiter(interval time.Duration, opts ...IntervalLimiterOption) *IntervalLimiter {
	l := &IntervalLimiter{
		interval: interval,
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the minimum interval since the last recorded call has
// elapsed. The first call never waits.
func (l *IntervalLimiter) Wait() {
	l.mu.Lock()
	last := l.last
	l.mu.Unlock()

	if last.IsZero() {
		return
	}
	if remaining := l.interval - l.now().Sub(last); remaining > 0 {
		l.sleep(remaining)
	}
}

// Record marks now as the timestamp of the last successful call.
func (l *IntervalLimiter) Record() {
	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
}
