package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts bounds Retry: at most MaxAttempts calls, exponential backoff
// starting at InitialWait and, when MaxWait is set, capped there, with
// optional jitter.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// Retry calls f until it succeeds or the attempts are spent, sleeping
// between attempts. On exhaustion the last failed Result comes back; a
// context cancelled during a wait surfaces ctx.Err instead.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	wait := opts.InitialWait
	for attempt := 1; ; attempt++ {
		last := f(ctx)
		if last.IsOk() || attempt >= opts.MaxAttempts {
			return last
		}

		d := wait
		if opts.Jitter {
			d = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && d > opts.MaxWait {
			d = opts.MaxWait
		}
		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(d):
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}
