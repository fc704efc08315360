// Package resilience guards calls to dependencies that can fail or
// saturate. The circuit breaker fronts the LLM classifier so a dead
// upstream fails fast instead of burning the request deadline, and
// the token bucket sheds excess chat traffic at the HTTP edge.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call while the breaker is rejecting
// traffic after a run of failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	stateClosed = iota
	stateOpen
	stateHalfOpen
)

// BreakerOpts configures a Breaker. Zero fields take defaults.
type BreakerOpts struct {
	// FailThreshold is the run of consecutive failures that trips
	// the breaker open.
	FailThreshold int
	// Timeout is how long the breaker rejects calls before letting
	// probes through.
	Timeout time.Duration
	// HalfOpenMax caps in-flight probes while half-open.
	HalfOpenMax int
}

func (o BreakerOpts) withDefaults() BreakerOpts {
	if o.FailThreshold <= 0 {
		o.FailThreshold = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.HalfOpenMax <= 0 {
		o.HalfOpenMax = 1
	}
	return o
}

// Breaker counts consecutive failures. At FailThreshold it rejects
// every call for Timeout, then admits up to HalfOpenMax probes: one
// probe success closes it, one probe failure reopens it.
type Breaker struct {
	mu       sync.Mutex
	opts     BreakerOpts
	state    int
	failures int
	openedAt time.Time
	probes   int
	now      func() time.Time
}

func NewBreaker(opts BreakerOpts) *Breaker {
	return &Breaker{opts: opts.withDefaults(), now: time.Now}
}

// Call runs f unless the breaker is open. Errors from f pass through
// unchanged so callers can still inspect them.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err != nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = stateHalfOpen
		b.probes = 0
	}

	switch b.state {
	case stateOpen:
		return ErrCircuitOpen
	case stateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.failures++
		if b.state == stateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = stateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.probes = 0
		}
		return
	}

	if b.state == stateHalfOpen {
		b.state = stateClosed
	}
	b.failures = 0
}
