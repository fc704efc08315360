package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FixwellAI/fixwell-mvp/engine/ingest"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
	"github.com/FixwellAI/fixwell-mvp/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// PublishAll drains scrape results into the catalog ingest subject and
// returns how many listings were published. A publish failure aborts the
// drain: if the broker is down, every remaining message would fail too.
func PublishAll(ctx context.Context, nc *nats.Conn, results <-chan fn.Result[ingest.RawListing], log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	published := 0
	for r := range results {
		listing, err := r.Unwrap()
		if err != nil {
			log.Warn("scrape: listing dropped", "error", err)
			continue
		}
		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, listing); err != nil {
			return published, fmt.Errorf("publish listing: %w", err)
		}
		published++
	}
	return published, nil
}
