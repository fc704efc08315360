// Package metrics is a small Prometheus-style registry for the engine
// binaries: counters, gauges, and histograms rendered in the text
// exposition format. Label sets ride inside the metric name (see
// WithLabels), so every label combination is its own series.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Latency buckets, 5ms out to a minute.
var defaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter only goes up.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()            { c.n.Add(1) }
func (c *Counter) Add(delta int64) { c.n.Add(delta) }
func (c *Counter) Value() int64    { return c.n.Load() }

// Gauge holds the latest sample of something measured, like catalog size.
type Gauge struct{ n atomic.Int64 }

func (g *Gauge) Set(v int64)  { g.n.Store(v) }
func (g *Gauge) Value() int64 { return g.n.Load() }

// Histogram counts observations against fixed upper bounds. Bucket
// counts are kept cumulative, the way the text format wants them, so
// rendering is a straight read.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	hits   []uint64
	sum    float64
	total  uint64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	for i := sort.SearchFloat64s(h.bounds, v); i < len(h.bounds); i++ {
		h.hits[i]++
	}
}

// Since observes the seconds elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

func (h *Histogram) render(b *strings.Builder, name string) {
	base, labels := splitName(name)
	suffix := ""
	if labels != "" {
		suffix = "{" + labels + "}"
	}
	le := func(bound string) string {
		if labels == "" {
			return `{le="` + bound + `"}`
		}
		return `{le="` + bound + `",` + labels + `}`
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, bound := range h.bounds {
		fmt.Fprintf(b, "%s_bucket%s %d\n", base, le(fmt.Sprintf("%g", bound)), h.hits[i])
	}
	fmt.Fprintf(b, "%s_bucket%s %d\n", base, le("+Inf"), h.total)
	fmt.Fprintf(b, "%s_sum%s %g\n", base, suffix, h.sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, suffix, h.total)
}

// Registry is a named collection of metrics. The accessors are
// get-or-create, so call sites self-register and repeated lookups
// return the same instance.
type Registry struct {
	mu         sync.RWMutex
	families   []family
	registered map[string]bool
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// family is the render metadata shared by every series of one base name.
type family struct {
	name string
	typ  string
	help string
}

func New() *Registry {
	return &Registry{
		registered: make(map[string]bool),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// register files the family on first sight. Later series of the same
// base name reuse the original type and help text.
func (r *Registry) register(name, typ, help string) {
	base, _ := splitName(name)
	if r.registered[base] {
		return
	}
	r.registered[base] = true
	r.families = append(r.families, family{name: base, typ: typ, help: help})
}

// Counter returns the counter registered under name, creating it on
// first use. Pass a WithLabels name for a labelled series.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.register(name, "counter", help)
	return c
}

// Gauge returns the gauge registered under name, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.register(name, "gauge", help)
	return g
}

// Histogram returns the histogram registered under name. Nil bounds
// take the default latency buckets.
func (r *Registry) Histogram(name, help string, bounds []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	if bounds == nil {
		bounds = defaultBuckets
	}
	sorted := make([]float64, len(bounds))
	copy(sorted, bounds)
	sort.Float64s(sorted)
	h := &Histogram{bounds: sorted, hits: make([]uint64, len(sorted))}
	r.histograms[name] = h
	r.register(name, "histogram", help)
	return h
}

// WithLabels appends a label set to a metric name:
//
//	WithLabels("fixwell_catalog_parts", "appliance", "refrigerator")
//
// yields fixwell_catalog_parts{appliance="refrigerator"}. An odd or
// empty pair list returns the name untouched.
func WithLabels(name string, pairs ...string) string {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return name
	}
	labels := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		labels = append(labels, fmt.Sprintf("%s=%q", pairs[i], pairs[i+1]))
	}
	return name + "{" + strings.Join(labels, ",") + "}"
}

// splitName separates foo{k="v"} into the base name and the inner
// label text.
func splitName(name string) (base, labels string) {
	i := strings.IndexByte(name, '{')
	if i < 0 {
		return name, ""
	}
	return name[:i], strings.TrimSuffix(name[i+1:], "}")
}

// Render writes every family in registration order, series sorted by
// name within each family.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, fam := range r.families {
		if fam.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", fam.name, fam.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", fam.name, fam.typ)

		switch fam.typ {
		case "counter":
			for _, name := range seriesOf(r.counters, fam.name) {
				fmt.Fprintf(&b, "%s %d\n", name, r.counters[name].Value())
			}
		case "gauge":
			for _, name := range seriesOf(r.gauges, fam.name) {
				fmt.Fprintf(&b, "%s %d\n", name, r.gauges[name].Value())
			}
		case "histogram":
			for _, name := range seriesOf(r.histograms, fam.name) {
				r.histograms[name].render(&b, name)
			}
		}
	}
	return b.String()
}

// seriesOf lists the names in m belonging to one family, sorted.
func seriesOf[M any](m map[string]*M, fam string) []string {
	var names []string
	for name := range m {
		if base, _ := splitName(name); base == fam {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		io.WriteString(w, r.Render())
	})
}

// ServeAsync exposes /metrics on its own port in a goroutine, for
// binaries with no HTTP surface of their own. The root path answers
// ok so the port doubles as a liveness check.
func (r *Registry) ServeAsync(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok\n")
	})
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			fmt.Printf("metrics listener on :%d: %v\n", port, err)
		}
	}()
}
