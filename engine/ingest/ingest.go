// Package ingest provides the catalog ingestion pipeline that processes
// scraped part listings through validation, normalization, and storage.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
	"github.com/FixwellAI/fixwell-mvp/pkg/metrics"
	"github.com/nats-io/nats.go"
)

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Store        *catalog.Store
	DeduplicateF func(ctx context.Context, partID string) (bool, error) // returns true if already ingested
	Logger       *slog.Logger
	Metrics      *metrics.Registry
}

// --- Pipeline Stages ---

// Validate rejects listings that carry no usable identity or look like
// injection attempts, before any normalization work is spent on them.
var Validate fn.Stage[RawListing, RawListing] = func(_ context.Context, l RawListing) fn.Result[RawListing] {
	if strings.TrimSpace(l.Name) == "" &&
		strings.TrimSpace(l.ManufacturerNumber) == "" &&
		strings.TrimSpace(l.PartselectNumber) == "" {
		return fn.Err[RawListing](fmt.Errorf("listing %q: %w", l.URL, domain.ErrMissingIdentity))
	}
	if domain.ContainsInjection(l.Name) || domain.ContainsInjection(l.Description) {
		return fn.Err[RawListing](fmt.Errorf("listing %q: %w", l.URL, domain.ErrSuspiciousContent))
	}
	return fn.Ok(l)
}

// NormalizeStage converts a RawListing into a validated NormalizedListing.
var NormalizeStage fn.Stage[RawListing, NormalizedListing] = func(_ context.Context, l RawListing) fn.Result[NormalizedListing] {
	n, err := Normalize(l)
	if err != nil {
		return fn.Err[NormalizedListing](err)
	}
	return fn.Ok(n)
}

// NewStoreStage creates a Store stage that writes the part, its videos,
// and its cross-reference edges to the catalog. A dangling edge is logged
// and skipped: its target part may simply not be ingested yet.
func NewStoreStage(store *catalog.Store, log *slog.Logger) fn.Stage[NormalizedListing, string] {
	return func(ctx context.Context, n NormalizedListing) fn.Result[string] {
		id, err := store.UpsertPart(ctx, n.Part)
		if err != nil {
			return fn.Err[string](fmt.Errorf("part upsert: %w", err))
		}

		for _, v := range n.Videos {
			if err := store.UpsertVideo(ctx, v); err != nil {
				return fn.Err[string](fmt.Errorf("video upsert: %w", err))
			}
		}

		for _, e := range n.Edges {
			if err := store.UpsertEdge(ctx, e); err != nil {
				if errors.Is(err, domain.ErrDanglingEdge) {
					log.Warn("ingest: dangling edge skipped",
						"from", e.FromPartID, "to", e.ToPartID, "relation", e.Relation)
					continue
				}
				return fn.Err[string](fmt.Errorf("edge upsert: %w", err))
			}
		}

		return fn.Ok(id)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[RawListing, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// Compose: Validate → Normalize → Store with logging taps between stages.
	validated := fn.Then(LoggedTap[RawListing]("validate", log), Validate)
	normalized := fn.Then(validated, fn.Then(LoggedTap[RawListing]("normalize", log), NormalizeStage))
	stored := fn.Then(normalized, fn.Then(LoggedTap[NormalizedListing]("store", log), NewStoreStage(deps.Store, log)))

	return stored
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Listing RawListing `json:"listing"`
	Error   string     `json:"error"`
	Retries int        `json:"retries"`
}

// StartConsumer starts a NATS consumer that runs scraped listings through
// the ingestion pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	var received, succeeded, failed, deadLettered *metrics.Counter
	if deps.Metrics != nil {
		received = deps.Metrics.Counter("fixwell_ingest_messages_total", "Listings received on the ingest subject.")
		succeeded = deps.Metrics.Counter("fixwell_ingest_success_total", "Listings stored successfully.")
		failed = deps.Metrics.Counter("fixwell_ingest_failures_total", "Pipeline failures, including retried attempts.")
		deadLettered = deps.Metrics.Counter("fixwell_ingest_dlq_total", "Listings given up on and sent to the DLQ.")
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		if received != nil {
			received.Inc()
		}

		var listing RawListing
		if err := json.Unmarshal(msg.Data, &listing); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		// Get retry count from header.
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		// Deduplication check, keyed on the derived part id. Only fresh
		// deliveries are checked: a retried message marked itself on its
		// first delivery and would otherwise skip its own retry.
		if retries == 0 && deps.DeduplicateF != nil {
			if partID, err := deriveKey(listing); err == nil {
				exists, err := deps.DeduplicateF(ctx, partID)
				if err != nil {
					log.Warn("ingest: dedup check failed", "error", err)
				} else if exists {
					log.Info("ingest: skipping duplicate", "part_id", partID)
					if msg.Reply != "" {
						_ = msg.Ack()
					}
					return
				}
			}
		}

		result := pipeline(ctx, listing)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			if failed != nil {
				failed.Inc()
			}
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"url", listing.URL,
				"retry", retries,
			)

			if retries >= MaxRetries || !retryable(pipeErr) {
				dlq := dlqMessage{
					Listing: listing,
					Error:   pipeErr.Error(),
					Retries: retries,
				}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				if deadLettered != nil {
					deadLettered.Inc()
				}
			} else {
				// Re-publish with incremented retry count.
				retryMsg := nats.NewMsg(IngestSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			partID, _ := result.Unwrap()
			if succeeded != nil {
				succeeded.Inc()
			}
			log.Info("ingest: success", "part_id", partID)
		}

		// Ack if JetStream.
		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}

// retryable reports whether a pipeline error is worth another attempt.
// Validation rejections are permanent; only store outages are transient.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrStoreUnavailable)
}
