// Command ingest runs the catalog ingestion worker. By default it consumes
// scraped listings from NATS; -dir loads snapshot files instead, and
// -watch keeps re-ingesting snapshots as they change.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/FixwellAI/fixwell-mvp/engine/ingest"
	"github.com/FixwellAI/fixwell-mvp/pkg/metrics"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var met = metrics.New()

// dedupWindow bounds how long a part id suppresses repeat listings.
// Later scrape runs must get through so stock and price stay current.
const dedupWindow = 15 * time.Minute

// Config holds environment-based connection settings.
type Config struct {
	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string
	NATSURL   string
}

func loadConfig() Config {
	return Config{
		Neo4jURL:  envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser: envOr("NEO4J_USER", "neo4j"),
		Neo4jPass: envOr("NEO4J_PASS", "password"),
		NATSURL:   envOr("NATS_URL", nats.DefaultURL),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	var (
		dir         = flag.String("dir", os.Getenv("SNAPSHOT_DIR"), "load part snapshots from this directory instead of consuming NATS")
		watch       = flag.Bool("watch", false, "with -dir, keep watching for snapshot changes after the initial load")
		metricsPort = flag.Int("metrics-port", 9091, "metrics listen port for long-running modes")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, *dir, *watch, *metricsPort, logger); err != nil {
		logger.Error("ingest exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, dir string, watch bool, metricsPort int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch && dir == "" {
		return fmt.Errorf("-watch needs -dir (or SNAPSHOT_DIR)")
	}

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j verify: %w", err)
	}
	logger.Info("connected to Neo4j", "url", cfg.Neo4jURL)

	store := catalog.New(driver)

	// --- Snapshot modes ---
	if dir != "" {
		sum, err := ingest.LoadDir(ctx, store, dir, logger)
		if err != nil {
			return fmt.Errorf("load %s: %w", dir, err)
		}
		logger.Info("snapshot load complete",
			"files", sum.Files, "parts", sum.Parts, "videos", sum.Videos,
			"edges", sum.Edges, "skipped", sum.Skipped, "dangling", sum.Dangling)
		if !watch {
			return nil
		}

		met.ServeAsync(metricsPort)
		if err := ingest.Watch(ctx, store, dir, logger); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	// --- Consumer mode ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("fixwell-ingest"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	met.ServeAsync(metricsPort)

	deps := ingest.Deps{
		Store:        store,
		DeduplicateF: newDedupWindow(dedupWindow),
		Logger:       logger,
		Metrics:      met,
	}

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("consuming listings", "subject", ingest.IngestSubject)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// newDedupWindow returns a dedup check that forgets part ids after the
// window passes, so repeat listings within one scrape run are skipped
// while later runs still refresh the catalog.
func newDedupWindow(window time.Duration) func(context.Context, string) (bool, error) {
	var mu sync.Mutex
	seen := make(map[string]time.Time)
	return func(_ context.Context, partID string) (bool, error) {
		now := time.Now()
		mu.Lock()
		defer mu.Unlock()
		if at, ok := seen[partID]; ok && now.Sub(at) < window {
			return true, nil
		}
		for id, at := range seen {
			if now.Sub(at) >= window {
				delete(seen, id)
			}
		}
		seen[partID] = now
		return false, nil
	}
}
