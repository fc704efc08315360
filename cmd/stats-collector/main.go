// Command stats-collector polls the API stats endpoint, computes growth
// since the previous poll, and writes JSON files for the catalog dashboard.
// Meant to run from cron; each run appends one delta to the history file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Stats mirrors the API stats response.
type Stats struct {
	Parts  map[string]int64 `json:"parts"`
	Edges  map[string]int64 `json:"edges"`
	Brands []struct {
		Brand string `json:"brand"`
		Parts int64  `json:"parts"`
	} `json:"brands"`
}

// Delta represents catalog growth between two consecutive polls.
type Delta struct {
	Timestamp time.Time        `json:"timestamp"`
	Period    string           `json:"period"`
	NewParts  map[string]int64 `json:"new_parts"`
	NewEdges  map[string]int64 `json:"new_edges"`
	NewBrands []string         `json:"new_brands"`
}

// period is the cron cadence, recorded in each delta for the dashboard.
const period = "5m"

// maxHistory caps the history file at a day of 5-minute polls.
const maxHistory = 288

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("FIXWELL_API_URL", "http://localhost:8080"), "Fixwell API base URL")
	docsDir := flag.String("docs-dir", "docs", "dashboard directory for output")
	push := flag.Bool("push", false, "git commit and push after update")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := collect(*apiURL, filepath.Join(*docsDir, "data"), logger); err != nil {
		logger.Error("collect failed", "err", err)
		os.Exit(1)
	}
	if *push {
		gitCommitPush(*docsDir, logger)
	}
}

// collect fetches the current stats, writes the latest and history files
// under dataDir, and rotates the previous snapshot used for deltas.
func collect(apiURL, dataDir string, logger *slog.Logger) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(apiURL + "/api/stats")
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats endpoint returned %d: %s", resp.StatusCode, body)
	}

	var current Stats
	if err := json.Unmarshal(body, &current); err != nil {
		return fmt.Errorf("parse stats: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	latestPath := filepath.Join(dataDir, "stats-latest.json")
	historyPath := filepath.Join(dataDir, "stats-history.json")
	prevPath := filepath.Join(dataDir, ".stats-prev.json")

	// A missing or unreadable previous snapshot deltas against zero,
	// which is what a first run should report anyway.
	var prev Stats
	if data, err := os.ReadFile(prevPath); err == nil {
		_ = json.Unmarshal(data, &prev)
	}

	delta := computeDelta(current, prev)

	if err := os.WriteFile(latestPath, body, 0o644); err != nil {
		return fmt.Errorf("write latest: %w", err)
	}

	var history []Delta
	if data, err := os.ReadFile(historyPath); err == nil {
		_ = json.Unmarshal(data, &history)
	}
	history = append(history, delta)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	histData, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(historyPath, histData, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	if err := os.WriteFile(prevPath, body, 0o644); err != nil {
		return fmt.Errorf("write prev: %w", err)
	}

	logger.Info("stats collected",
		"parts", totalOf(current.Parts), "edges", totalOf(current.Edges),
		"new_parts", totalOf(delta.NewParts), "new_brands", len(delta.NewBrands))
	return nil
}

// computeDelta diffs two stats snapshots. Appliances and relations absent
// from the previous snapshot count from zero.
func computeDelta(current, prev Stats) Delta {
	d := Delta{
		Timestamp: time.Now().UTC(),
		Period:    period,
		NewParts:  make(map[string]int64),
		NewEdges:  make(map[string]int64),
	}
	for k, v := range current.Parts {
		d.NewParts[k] = v - prev.Parts[k]
	}
	for k, v := range current.Edges {
		d.NewEdges[k] = v - prev.Edges[k]
	}

	prevBrands := make(map[string]bool)
	for _, b := range prev.Brands {
		prevBrands[b.Brand] = true
	}
	for _, b := range current.Brands {
		if !prevBrands[b.Brand] {
			d.NewBrands = append(d.NewBrands, b.Brand)
		}
	}
	return d
}

func totalOf(m map[string]int64) int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}

func gitCommitPush(docsDir string, logger *slog.Logger) {
	cmds := [][]string{
		{"git", "add", filepath.Join(docsDir, "data")},
		{"git", "commit", "-m", fmt.Sprintf("stats: snapshot %s", time.Now().UTC().Format("2006-01-02T15:04"))},
		{"git", "push"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			logger.Error("git failed", "args", args, "err", err)
		}
	}
}
