package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/fsnotify/fsnotify"
)

// Watch monitors dir for part snapshots and loads each one as it is
// created or rewritten. It blocks until ctx is cancelled. A reload of a
// half-written file fails to parse and is retried on the next write
// event, so scrapers can stream snapshots straight into the directory.
func Watch(ctx context.Context, store *catalog.Store, dir string, log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("watching for snapshots", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, "-Parts.json") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			sum, err := LoadFile(ctx, store, event.Name, log)
			if err != nil {
				log.Warn("watch: reload failed", "file", filepath.Base(event.Name), "error", err)
				continue
			}
			log.Info("watch: snapshot loaded",
				"file", filepath.Base(event.Name),
				"parts", sum.Parts, "videos", sum.Videos, "edges", sum.Edges, "skipped", sum.Skipped)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: watcher error", "error", err)
		}
	}
}
