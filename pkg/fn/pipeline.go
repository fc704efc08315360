package fn

import (
	"context"

	"go.opentelemetry.io/otel"
)

// Stage transforms In to Out under a context. The ingest pipeline and the
// query path are chains of stages composed with Then.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then chains two stages, short-circuiting on the first error. Each half
// runs under its own span so a slow stage shows up in traces by name.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, a A) Result[C] {
		sctx, span := otel.Tracer("pkg/fn").Start(ctx, "stage.first")
		rb := first(sctx, a)
		span.End()

		b, err := rb.Unwrap()
		if err != nil {
			return Err[C](err)
		}

		sctx, span = otel.Tracer("pkg/fn").Start(ctx, "stage.second")
		defer span.End()
		return second(sctx, b)
	}
}
