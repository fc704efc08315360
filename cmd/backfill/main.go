// Command backfill retries cross-reference edges that were dangling when
// their listings first arrived. Scrape runs land one brand at a time, so a
// listing can reference a replacement part that only reaches the catalog
// days later. Re-deriving edges from the snapshot directory links those up
// without rewriting any part.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/FixwellAI/fixwell-mvp/engine/ingest"
	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds environment-based connection settings.
type Config struct {
	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string
}

func loadConfig() Config {
	return Config{
		Neo4jURL:  envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser: envOr("NEO4J_USER", "neo4j"),
		Neo4jPass: envOr("NEO4J_PASS", "password"),
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

	dir := flag.String("dir", envOr("SNAPSHOT_DIR", "data/snapshots"), "directory of *-Parts.json snapshots")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), *dir, logger); err != nil {
		logger.Error("backfill failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, dir string, logger *slog.Logger) error {
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j verify: %w", err)
	}

	store := catalog.New(driver)

	sum, err := ingest.BackfillEdges(ctx, store, dir, logger)
	if err != nil {
		return fmt.Errorf("backfill %s: %w", dir, err)
	}
	logger.Info("backfill complete",
		"files", sum.Files, "edges", sum.Edges, "dangling", sum.Dangling, "skipped", sum.Skipped)
	return nil
}
