package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("fixwell_chat_requests_total", "Chat requests handled")
	c.Inc()
	c.Inc()
	c.Add(5)
	if c.Value() != 7 {
		t.Fatalf("Value = %d, want 7", c.Value())
	}
	if r.Counter("fixwell_chat_requests_total", "") != c {
		t.Fatal("same name must return the same counter")
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("fixwell_catalog_parts", "Parts in the catalog")
	g.Set(42)
	g.Set(40)
	if g.Value() != 40 {
		t.Fatalf("Value = %d, want the latest sample", g.Value())
	}
	if r.Gauge("fixwell_catalog_parts", "") != g {
		t.Fatal("same name must return the same gauge")
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	r := New()
	h := r.Histogram("fixwell_store_query_seconds", "", []float64{0.1, 0.5, 1.0})
	for _, v := range []float64{0.05, 0.3, 0.8, 2.0} {
		h.Observe(v)
	}
	if want := []uint64{1, 2, 3}; h.hits[0] != want[0] || h.hits[1] != want[1] || h.hits[2] != want[2] {
		t.Fatalf("hits = %v, want %v", h.hits, want)
	}
	if h.total != 4 {
		t.Fatalf("total = %d, want 4", h.total)
	}
	if want := 0.05 + 0.3 + 0.8 + 2.0; h.sum != want {
		t.Fatalf("sum = %g, want %g", h.sum, want)
	}
}

func TestHistogramBoundaryLandsInItsBucket(t *testing.T) {
	r := New()
	h := r.Histogram("fixwell_classify_seconds", "", []float64{0.1, 0.5})
	h.Observe(0.1)
	if h.hits[0] != 1 {
		t.Fatalf("an observation equal to the bound belongs in that bucket, hits = %v", h.hits)
	}
}

func TestHistogramSortsBounds(t *testing.T) {
	r := New()
	h := r.Histogram("fixwell_scrape_seconds", "", []float64{1.0, 0.1, 0.5})
	if h.bounds[0] != 0.1 || h.bounds[2] != 1.0 {
		t.Fatalf("bounds = %v, want sorted", h.bounds)
	}
}

func TestHistogramSince(t *testing.T) {
	r := New()
	h := r.Histogram("fixwell_chat_latency_seconds", "", nil)
	h.Since(time.Now().Add(-100 * time.Millisecond))
	if h.total != 1 {
		t.Fatal("Since must record one observation")
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("fixwell_ingest_listings_total", "brand", "whirlpool", "appliance", "refrigerator")
	want := `fixwell_ingest_listings_total{brand="whirlpool",appliance="refrigerator"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if WithLabels("bare") != "bare" {
		t.Fatal("no pairs must return the name unchanged")
	}
	if WithLabels("odd", "only_key") != "odd" {
		t.Fatal("an odd pair list must return the name unchanged")
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, base, labels string
	}{
		{"fixwell_chat_requests_total", "fixwell_chat_requests_total", ""},
		{`fixwell_chat_intents_total{kind="find_part"}`, "fixwell_chat_intents_total", `kind="find_part"`},
		{`x{a="1",b="2"}`, "x", `a="1",b="2"`},
	}
	for _, tt := range tests {
		base, labels := splitName(tt.in)
		if base != tt.base || labels != tt.labels {
			t.Errorf("splitName(%q) = (%q, %q), want (%q, %q)", tt.in, base, labels, tt.base, tt.labels)
		}
	}
}

func TestRender(t *testing.T) {
	r := New()
	r.Counter("fixwell_chat_requests_total", "Chat requests").Add(10)
	r.Counter(WithLabels("fixwell_chat_intents_total", "kind", "find_part"), "Intents by kind").Add(7)
	r.Counter(WithLabels("fixwell_chat_intents_total", "kind", "check_compat"), "").Add(3)
	r.Gauge("fixwell_ingest_inflight", "In-flight batches").Set(5)
	h := r.Histogram(WithLabels("fixwell_store_query_seconds", "op", "search"), "Store latency", []float64{0.1, 0.5})
	h.Observe(0.05)
	h.Observe(0.3)

	out := r.Render()

	for _, want := range []string{
		"# HELP fixwell_chat_requests_total Chat requests",
		"# TYPE fixwell_chat_requests_total counter",
		"fixwell_chat_requests_total 10",
		"# TYPE fixwell_chat_intents_total counter",
		`fixwell_chat_intents_total{kind="check_compat"} 3`,
		`fixwell_chat_intents_total{kind="find_part"} 7`,
		"# TYPE fixwell_ingest_inflight gauge",
		"fixwell_ingest_inflight 5",
		"# TYPE fixwell_store_query_seconds histogram",
		`fixwell_store_query_seconds_bucket{le="0.1",op="search"} 1`,
		`fixwell_store_query_seconds_bucket{le="0.5",op="search"} 2`,
		`fixwell_store_query_seconds_bucket{le="+Inf",op="search"} 2`,
		`fixwell_store_query_seconds_sum{op="search"} 0.35`,
		`fixwell_store_query_seconds_count{op="search"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q, got:\n%s", want, out)
		}
	}

	// Families render in registration order.
	if strings.Index(out, "fixwell_chat_requests_total") > strings.Index(out, "fixwell_ingest_inflight") {
		t.Error("families out of registration order")
	}
}

func TestRenderSkipsHelpWhenEmpty(t *testing.T) {
	r := New()
	r.Counter("fixwell_quiet_total", "").Inc()
	if strings.Contains(r.Render(), "# HELP fixwell_quiet_total") {
		t.Error("empty help must not render a HELP line")
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("fixwell_chat_requests_total", "Chat requests").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("content type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "fixwell_chat_requests_total 1") {
		t.Error("metric missing from handler output")
	}
}
