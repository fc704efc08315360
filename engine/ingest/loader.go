package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/fn"
)

// loadWorkers bounds how many snapshot files are loaded concurrently.
const loadWorkers = 4

// Summary aggregates what a batch load accomplished.
type Summary struct {
	Files    int
	Parts    int
	Videos   int
	Edges    int
	Skipped  int // listings dropped by validation
	Dangling int // edges whose target part never appeared
}

// report is the per-file outcome. Edges are returned unapplied so callers
// can write them after every file's parts exist.
type report struct {
	parts   int
	videos  int
	skipped int
	edges   []domain.CompatibilityEdge
}

// snapshotName extracts brand and appliance type from a snapshot filename
// like "Whirlpool-Refrigerator-Parts.json". Hyphenated brands keep their
// hyphens ("Jenn-Air-Dishwasher-Parts.json").
func snapshotName(path string) (brand, appliance string) {
	base := strings.TrimSuffix(filepath.Base(path), ".json")
	base = strings.TrimSuffix(base, "-Parts")
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return "", base
	}
	return base[:i], base[i+1:]
}

// loadParts reads one snapshot file and stores its parts and videos.
// Listings the filename can disambiguate get brand and appliance type
// filled in before validation. Invalid listings are logged and skipped.
func loadParts(ctx context.Context, store *catalog.Store, path string, log *slog.Logger) (report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report{}, err
	}
	var listings []RawListing
	if err := json.Unmarshal(data, &listings); err != nil {
		return report{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	brand, appliance := snapshotName(path)

	var (
		parts  []domain.Part
		videos []domain.InstallationVideo
		edges  []domain.CompatibilityEdge
		r      report
	)
	for _, l := range listings {
		if strings.TrimSpace(l.Brand) == "" {
			l.Brand = brand
		}
		if strings.TrimSpace(l.ApplianceType) == "" {
			l.ApplianceType = appliance
		}
		if res := Validate(ctx, l); res.IsErr() {
			_, err := res.Unwrap()
			log.Warn("load: listing rejected", "file", filepath.Base(path), "error", err)
			r.skipped++
			continue
		}
		n, err := Normalize(l)
		if err != nil {
			log.Warn("load: listing rejected", "file", filepath.Base(path), "error", err)
			r.skipped++
			continue
		}
		parts = append(parts, n.Part)
		videos = append(videos, n.Videos...)
		edges = append(edges, n.Edges...)
	}

	if len(parts) > 0 {
		if err := store.SaveBatch(ctx, parts, videos, nil); err != nil {
			return report{}, err
		}
	}
	r.parts = len(parts)
	r.videos = len(videos)
	r.edges = edges
	return r, nil
}

// applyEdges writes edges one by one, collecting the dangling ones instead
// of failing. Any other store error aborts.
func applyEdges(ctx context.Context, store *catalog.Store, edges []domain.CompatibilityEdge) (int, []domain.CompatibilityEdge, error) {
	applied := 0
	var dangling []domain.CompatibilityEdge
	for _, e := range edges {
		if err := store.UpsertEdge(ctx, e); err != nil {
			if errors.Is(err, domain.ErrDanglingEdge) {
				dangling = append(dangling, e)
				continue
			}
			return applied, dangling, err
		}
		applied++
	}
	return applied, dangling, nil
}

// LoadFile loads a single snapshot file: parts and videos first, then
// cross-reference edges. Edges pointing at parts already in the catalog
// resolve; the rest are dropped with a warning.
func LoadFile(ctx context.Context, store *catalog.Store, path string, log *slog.Logger) (Summary, error) {
	r, err := loadParts(ctx, store, path, log)
	if err != nil {
		return Summary{}, err
	}
	applied, dangling, err := applyEdges(ctx, store, r.edges)
	if err != nil {
		return Summary{}, err
	}
	for _, e := range dangling {
		log.Warn("load: dangling edge dropped",
			"from", e.FromPartID, "to", e.ToPartID, "relation", e.Relation)
	}
	return Summary{
		Files:    1,
		Parts:    r.parts,
		Videos:   r.videos,
		Edges:    applied,
		Skipped:  r.skipped,
		Dangling: len(dangling),
	}, nil
}

// LoadDir loads every "*-Parts.json" snapshot under dir. Parts and videos
// from all files are stored before any edge is written, so cross-file
// references resolve regardless of file order. Per-file failures are
// joined into the returned error without stopping the rest of the batch.
func LoadDir(ctx context.Context, store *catalog.Store, dir string, log *slog.Logger) (Summary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*-Parts.json"))
	if err != nil {
		return Summary{}, err
	}
	if len(matches) == 0 {
		return Summary{}, fmt.Errorf("no part snapshots under %s", dir)
	}
	sort.Strings(matches)

	results := fn.ParMapResult(matches, loadWorkers, func(path string) fn.Result[report] {
		r, err := loadParts(ctx, store, path, log)
		if err != nil {
			return fn.Err[report](fmt.Errorf("%s: %w", filepath.Base(path), err))
		}
		log.Info("load: snapshot stored",
			"file", filepath.Base(path), "parts", r.parts, "videos", r.videos, "skipped", r.skipped)
		return fn.Ok(r)
	})

	var (
		sum   Summary
		edges []domain.CompatibilityEdge
		errs  []error
	)
	for _, res := range results {
		if res.IsErr() {
			_, err := res.Unwrap()
			log.Error("load: snapshot failed", "error", err)
			errs = append(errs, err)
			continue
		}
		r, _ := res.Unwrap()
		sum.Files++
		sum.Parts += r.parts
		sum.Videos += r.videos
		sum.Skipped += r.skipped
		edges = append(edges, r.edges...)
	}

	applied, dangling, err := applyEdges(ctx, store, edges)
	if err != nil {
		errs = append(errs, err)
	}
	for _, e := range dangling {
		log.Warn("load: dangling edge dropped",
			"from", e.FromPartID, "to", e.ToPartID, "relation", e.Relation)
	}
	sum.Edges = applied
	sum.Dangling = len(dangling)

	return sum, errors.Join(errs...)
}

// deriveEdges parses one snapshot and runs its listings through the same
// validation and normalization as a load, keeping only the edges.
func deriveEdges(ctx context.Context, path string) ([]domain.CompatibilityEdge, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var listings []RawListing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	brand, appliance := snapshotName(path)

	var edges []domain.CompatibilityEdge
	skipped := 0
	for _, l := range listings {
		if strings.TrimSpace(l.Brand) == "" {
			l.Brand = brand
		}
		if strings.TrimSpace(l.ApplianceType) == "" {
			l.ApplianceType = appliance
		}
		if res := Validate(ctx, l); res.IsErr() {
			skipped++
			continue
		}
		n, err := Normalize(l)
		if err != nil {
			skipped++
			continue
		}
		edges = append(edges, n.Edges...)
	}
	return edges, skipped, nil
}

// BackfillEdges re-derives cross-reference edges from every snapshot under
// dir and retries them against the current catalog. Parts and videos are
// not rewritten. Streamed ingest applies each listing's edges on arrival,
// so a reference to a part that only reaches the catalog later stays
// dangling until a pass like this retries it.
func BackfillEdges(ctx context.Context, store *catalog.Store, dir string, log *slog.Logger) (Summary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*-Parts.json"))
	if err != nil {
		return Summary{}, err
	}
	if len(matches) == 0 {
		return Summary{}, fmt.Errorf("no part snapshots under %s", dir)
	}
	sort.Strings(matches)

	var (
		sum   Summary
		edges []domain.CompatibilityEdge
		errs  []error
	)
	for _, path := range matches {
		es, skipped, err := deriveEdges(ctx, path)
		if err != nil {
			log.Error("backfill: snapshot unreadable", "error", err)
			errs = append(errs, err)
			continue
		}
		sum.Files++
		sum.Skipped += skipped
		edges = append(edges, es...)
	}

	applied, dangling, err := applyEdges(ctx, store, edges)
	if err != nil {
		errs = append(errs, err)
	}
	for _, e := range dangling {
		log.Warn("backfill: edge still dangling",
			"from", e.FromPartID, "to", e.ToPartID, "relation", e.Relation)
	}
	sum.Edges = applied
	sum.Dangling = len(dangling)

	return sum, errors.Join(errs...)
}
