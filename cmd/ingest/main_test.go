package main

import (
	"context"
	"testing"
	"time"
)

func TestDedupWindow(t *testing.T) {
	dedup := newDedupWindow(50 * time.Millisecond)
	ctx := context.Background()

	if seen, _ := dedup(ctx, "WPW10321304"); seen {
		t.Fatal("first sighting reported as duplicate")
	}
	if seen, _ := dedup(ctx, "WPW10321304"); !seen {
		t.Fatal("repeat within the window not reported as duplicate")
	}
	if seen, _ := dedup(ctx, "PS11722128"); seen {
		t.Fatal("unrelated part id reported as duplicate")
	}

	time.Sleep(60 * time.Millisecond)
	if seen, _ := dedup(ctx, "WPW10321304"); seen {
		t.Fatal("sighting after the window still reported as duplicate")
	}
}
