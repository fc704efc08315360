package resilience

import (
	"sync"
	"time"
)

// LimiterOpts configures a Limiter.
type LimiterOpts struct {
	// Rate is tokens replenished per second.
	Rate float64
	// Burst is the bucket capacity. Values below 1 become 1.
	Burst int
}

// Limiter is a token bucket for shedding load. Allow never blocks;
// the HTTP layer turns a refusal into a 429. Callers that want to
// queue instead should pace with x/time/rate.
type Limiter struct {
	mu     sync.Mutex
	opts   LimiterOpts
	tokens float64
	last   time.Time
	now    func() time.Time
}

func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Limiter{opts: opts, tokens: float64(opts.Burst), now: time.Now}
}

// Allow spends a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() {
		l.tokens += now.Sub(l.last).Seconds() * l.opts.Rate
		if limit := float64(l.opts.Burst); l.tokens > limit {
			l.tokens = limit
		}
	}
	l.last = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
