// Command scraper-catalog fetches vendor part catalog feeds and publishes
// raw listings to the ingest subject, or prints them with -dry-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/ingest"
	"github.com/FixwellAI/fixwell-mvp/engine/scraper"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
	"github.com/FixwellAI/fixwell-mvp/pkg/metrics"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var met = metrics.New()

var (
	mRuns      = met.Counter("fixwell_scraper_runs_total", "Completed scrape runs")
	mListings  = met.Counter("fixwell_scraper_listings_total", "Listings emitted across all runs")
	mRunErrors = met.Counter("fixwell_scraper_run_errors_total", "Scrape runs that failed")
	mLastRun   = met.Gauge("fixwell_scraper_last_run_timestamp", "Epoch of last completed run")
	mRunDur    = met.Histogram("fixwell_scraper_run_duration_seconds", "Wall time per scrape run", nil)
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	var (
		sourcesPath = flag.String("sources", envOr("SOURCES_FILE", "sources.yaml"), "YAML source list")
		brandsFlag  = flag.String("brands", "", "comma-separated brand filter (empty = all sources)")
		dryRun      = flag.Bool("dry-run", false, "print listings to stdout instead of publishing")
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS URL")
		interval    = flag.Duration("interval", 0, "re-scrape interval (0 = one-shot)")
		metricsPort = flag.Int("metrics-port", 9092, "metrics listen port (interval mode)")
	)
	flag.Parse()

	// Logs go to stderr; stdout carries listing JSON in dry-run mode.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	brands := splitBrands(*brandsFlag)

	if err := run(*sourcesPath, brands, *dryRun, *natsURL, *interval, *metricsPort, logger); err != nil {
		logger.Error("scraper exited with error", "err", err)
		os.Exit(1)
	}
}

func run(sourcesPath string, brands []string, dryRun bool, natsURL string, interval time.Duration, metricsPort int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := scraper.LoadConfig(sourcesPath)
	if err != nil {
		return err
	}
	logger.Info("sources loaded", "file", sourcesPath, "sources", len(cfg.Sources))

	var nc *nats.Conn
	if !dryRun {
		nc, err = nats.Connect(natsURL, nats.Name("fixwell-scraper-catalog"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		logger.Info("connected to NATS", "url", natsURL)
	}

	scr := scraper.New(cfg, logger)
	opts := scraper.ScrapeOpts{Brands: brands}

	once := func() error {
		start := time.Now()
		results := scr.Scrape(ctx, opts)

		var n int
		if dryRun {
			n, err = printAll(results)
		} else {
			n, err = scraper.PublishAll(ctx, nc, results, logger)
		}
		if err != nil {
			mRunErrors.Inc()
			return err
		}

		mRuns.Inc()
		mListings.Add(int64(n))
		mLastRun.Set(time.Now().Unix())
		mRunDur.Since(start)
		logger.Info("scrape run complete", "listings", n, "took", time.Since(start).Round(time.Millisecond))
		return nil
	}

	if interval <= 0 {
		return once()
	}

	met.ServeAsync(metricsPort)
	if err := once(); err != nil {
		logger.Error("scrape run failed", "err", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := once(); err != nil {
				logger.Error("scrape run failed", "err", err)
			}
		}
	}
}

// printAll writes each listing as a JSON line to stdout.
func printAll(results <-chan fn.Result[ingest.RawListing]) (int, error) {
	enc := json.NewEncoder(os.Stdout)
	n := 0
	for r := range results {
		listing, err := r.Unwrap()
		if err != nil {
			continue
		}
		if err := enc.Encode(listing); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func splitBrands(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var brands []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brands = append(brands, b)
		}
	}
	return brands
}
