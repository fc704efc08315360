package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failing(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestBreakerPassesThroughWhileClosed(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	if err := b.Call(ctx, failing(nil)); err != nil {
		t.Fatalf("Call = %v", err)
	}
	upstream := errors.New("model timeout")
	if err := b.Call(ctx, failing(upstream)); !errors.Is(err, upstream) {
		t.Fatalf("Call = %v, want the upstream error unchanged", err)
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()
	fail := errors.New("fail")

	for i := 0; i < 3; i++ {
		_ = b.Call(ctx, failing(fail))
	}

	ran := false
	err := b.Call(ctx, func(context.Context) error { ran = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Call = %v, want ErrCircuitOpen", err)
	}
	if ran {
		t.Fatal("the call ran while the breaker was open")
	}
}

func TestBreakerSuccessResetsTheCount(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()
	fail := errors.New("fail")

	_ = b.Call(ctx, failing(fail))
	_ = b.Call(ctx, failing(fail))
	_ = b.Call(ctx, failing(nil))
	_ = b.Call(ctx, failing(fail))
	_ = b.Call(ctx, failing(fail))

	// Two failures since the success, threshold is three.
	if err := b.Call(ctx, failing(nil)); err != nil {
		t.Fatalf("Call = %v, breaker tripped on a broken count", err)
	}
}

func TestBreakerProbesAfterTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 5 * time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failing(errors.New("fail")))
	if err := b.Call(ctx, failing(nil)); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Call before timeout = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(6 * time.Second)
	if err := b.Call(ctx, failing(nil)); err != nil {
		t.Fatalf("probe = %v, want nil", err)
	}
	// The successful probe closed the breaker.
	if err := b.Call(ctx, failing(nil)); err != nil {
		t.Fatalf("Call after recovery = %v", err)
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 5 * time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()
	fail := errors.New("fail")

	_ = b.Call(ctx, failing(fail))
	now = now.Add(6 * time.Second)
	_ = b.Call(ctx, failing(fail))

	if err := b.Call(ctx, failing(nil)); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Call after failed probe = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerCapsConcurrentProbes(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 5 * time.Second, HalfOpenMax: 1})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failing(errors.New("fail")))
	now = now.Add(6 * time.Second)

	release := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- b.Call(ctx, func(context.Context) error {
			<-release
			return nil
		})
	}()

	// Let the probe get admitted before crowding it.
	time.Sleep(10 * time.Millisecond)
	if err := b.Call(ctx, failing(nil)); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second probe = %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-probeDone; err != nil {
		t.Fatalf("first probe = %v", err)
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker(BreakerOpts{})
	if b.opts.FailThreshold != 5 || b.opts.Timeout != 30*time.Second || b.opts.HalfOpenMax != 1 {
		t.Fatalf("defaults = %+v", b.opts)
	}
}
