// Command seed loads part snapshot files straight into the catalog store
// and reports what the store holds afterwards. Local development helper;
// no broker involved.
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
		logger.Error("seed failed", "err", err)
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

	sum, err := ingest.LoadDir(ctx, store, dir, logger)
	if err != nil {
		return fmt.Errorf("load %s: %w", dir, err)
	}
	logger.Info("snapshots loaded",
		"files", sum.Files, "parts", sum.Parts, "videos", sum.Videos,
		"edges", sum.Edges, "skipped", sum.Skipped, "dangling", sum.Dangling)

	// Read the counts back so a broken load is visible immediately.
	parts, err := store.PartCounts(ctx)
	if err != nil {
		return fmt.Errorf("verify part counts: %w", err)
	}
	edges, err := store.EdgeCounts(ctx)
	if err != nil {
		return fmt.Errorf("verify edge counts: %w", err)
	}
	brands, err := store.BrandCounts(ctx, 5)
	if err != nil {
		return fmt.Errorf("verify brand counts: %w", err)
	}

	total := int64(0)
	for appliance, n := range parts {
		logger.Info("catalog parts", "appliance", appliance, "count", n)
		total += n
	}
	for relation, n := range edges {
		logger.Info("catalog edges", "relation", relation, "count", n)
	}
	for _, b := range brands {
		logger.Info("catalog brand", "brand", b.Brand, "parts", b.Parts)
	}
	if total == 0 {
		return fmt.Errorf("catalog still empty after load")
	}

	logger.Info("seed complete", "total_parts", total)
	return nil
}
