// Package scraper fetches vendor part catalogs over HTTP and emits raw
// listings for the ingestion pipeline.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/engine/ingest"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
	"golang.org/x/time/rate"
)

// CatalogScraper walks configured vendor feeds, rate limited across all
// sources, deduplicating listings that appear in more than one feed.
type CatalogScraper struct {
	cfg        *Config
	limiter    *rate.Limiter
	httpClient *http.Client
	log        *slog.Logger
	retryWait  time.Duration
	seen       sync.Map // listing identity dedup across feeds
}

// New creates a scraper from a loaded source config.
func New(cfg *Config, log *slog.Logger) *CatalogScraper {
	if log == nil {
		log = slog.Default()
	}
	return &CatalogScraper{
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(time.Duration(cfg.RateMillis)*time.Millisecond), cfg.Burst),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		log:        log,
		retryWait:  500 * time.Millisecond,
	}
}

// ScrapeOpts filters a scrape run.
type ScrapeOpts struct {
	Brands []string // case-insensitive; empty means every configured source
}

func (o ScrapeOpts) wantsBrand(brand string) bool {
	if len(o.Brands) == 0 {
		return true
	}
	for _, b := range o.Brands {
		if strings.EqualFold(strings.TrimSpace(b), brand) {
			return true
		}
	}
	return false
}

// FetchSource fetches one feed with bounded retries. Timeouts, 429s, and
// 5xx responses count as transient and are retried with backoff.
func (s *CatalogScraper) FetchSource(ctx context.Context, src Source) fn.Result[[]ingest.RawListing] {
	opts := fn.RetryOpts{
		MaxAttempts: s.cfg.MaxAttempts,
		InitialWait: s.retryWait,
		MaxWait:     10 * time.Second,
		Jitter:      true,
	}
	return fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[[]ingest.RawListing] {
		return s.fetchSource(ctx, src)
	})
}

func (s *CatalogScraper) fetchSource(ctx context.Context, src Source) fn.Result[[]ingest.RawListing] {
	if err := s.limiter.Wait(ctx); err != nil {
		return fn.Err[[]ingest.RawListing](err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return fn.Err[[]ingest.RawListing](err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fn.Err[[]ingest.RawListing](fmt.Errorf("get %s: %w", src.URL, errors.Join(domain.ErrFetchTransient, err)))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fn.Err[[]ingest.RawListing](fmt.Errorf("get %s: status %d: %w", src.URL, resp.StatusCode, domain.ErrFetchTransient))
	default:
		return fn.Err[[]ingest.RawListing](fmt.Errorf("get %s: status %d", src.URL, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fn.Err[[]ingest.RawListing](fmt.Errorf("read %s: %w", src.URL, errors.Join(domain.ErrFetchTransient, err)))
	}

	var listings []ingest.RawListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return fn.Err[[]ingest.RawListing](fmt.Errorf("parse %s: %w", src.URL, err))
	}

	// A feed is per brand and appliance, so listings may omit both.
	for i := range listings {
		if strings.TrimSpace(listings[i].Brand) == "" {
			listings[i].Brand = src.Brand
		}
		if strings.TrimSpace(listings[i].ApplianceType) == "" {
			listings[i].ApplianceType = src.ApplianceType
		}
	}
	return fn.Ok(listings)
}

// Scrape runs over every matching source and streams listings. A source
// that stays unreachable after retries is logged and skipped; the run
// itself never fails.
func (s *CatalogScraper) Scrape(ctx context.Context, opts ScrapeOpts) <-chan fn.Result[ingest.RawListing] {
	ch := make(chan fn.Result[ingest.RawListing], 32)

	go func() {
		defer close(ch)
		for _, src := range s.cfg.Sources {
			if ctx.Err() != nil {
				return
			}
			if !opts.wantsBrand(src.Brand) {
				continue
			}

			result := s.FetchSource(ctx, src)
			listings, err := result.Unwrap()
			if err != nil {
				s.log.Warn("scrape: source skipped",
					"brand", src.Brand, "appliance", src.ApplianceType, "error", err)
				continue
			}
			s.log.Info("scrape: source fetched",
				"brand", src.Brand, "appliance", src.ApplianceType, "listings", len(listings))

			for _, l := range listings {
				if s.duplicate(l) {
					continue
				}
				select {
				case ch <- fn.Ok(l):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch
}

// duplicate reports whether an identical listing was already emitted
// this run. Feeds overlap: the same OEM part shows up under several
// brands' compatibility pages.
func (s *CatalogScraper) duplicate(l ingest.RawListing) bool {
	key := strings.ToUpper(strings.TrimSpace(l.ManufacturerNumber)) + "|" +
		strings.ToUpper(strings.TrimSpace(l.PartselectNumber)) + "|" +
		strings.ToLower(strings.TrimSpace(l.Name))
	if key == "||" {
		return false
	}
	_, loaded := s.seen.LoadOrStore(key, true)
	return loaded
}
