// Package metrics is a small Prometheus-compatible registry exposed in the
// text exposition format. It covers the counters, gauges, and histograms
// the indexing and evaluation jobs report, without pulling in a client
// library.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets suit embedding and upsert call latencies, in seconds.
var DefaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

func (c *Counter) render(b *strings.Builder, series string) {
	fmt.Fprintf(b, "%s %d\n", series, c.Value())
}

// Gauge is a value that can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

func (g *Gauge) render(b *strings.Builder, series string) {
	fmt.Fprintf(b, "%s %d\n", series, g.Value())
}

// Histogram tracks a distribution over fixed buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	total  uint64
}

func newHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)
	return &Histogram{bounds: b, counts: make([]uint64, len(b))}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	for i, bound := range h.bounds {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) render(b *strings.Builder, series string) {
	h.mu.Lock()
	bounds := h.bounds
	counts := make([]uint64, len(h.counts))
	copy(counts, h.counts)
	sum, total := h.sum, h.total
	h.mu.Unlock()

	base, labels := splitSeries(series)
	var cumulative uint64
	for i, bound := range bounds {
		cumulative += counts[i]
		fmt.Fprintf(b, "%s_bucket%s %d\n", base, mergeLabels(labels, fmt.Sprintf(`le="%g"`, bound)), cumulative)
	}
	fmt.Fprintf(b, "%s_bucket%s %d\n", base, mergeLabels(labels, `le="+Inf"`), total)
	fmt.Fprintf(b, "%s_sum%s %g\n", base, labels, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, labels, total)
}

type renderer interface {
	render(b *strings.Builder, series string)
}

// family groups every labeled series of one metric name under a single
// HELP/TYPE header.
type family struct {
	name   string
	typ    string
	help   string
	series map[string]renderer
}

// Registry holds named metrics and renders them in registration order.
type Registry struct {
	mu       sync.RWMutex
	families []*family
	byName   map[string]*family
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: map[string]*family{}}
}

func (r *Registry) family(base, typ, help string) *family {
	f, ok := r.byName[base]
	if !ok {
		f = &family{name: base, typ: typ, help: help, series: map[string]renderer{}}
		r.byName[base] = f
		r.families = append(r.families, f)
	}
	if f.help == "" {
		f.help = help
	}
	return f
}

// Counter returns or creates a counter. Labels are baked into the series
// name via WithLabels, so each label combination is its own counter.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(baseName(name), "counter", help)
	if c, ok := f.series[name].(*Counter); ok {
		return c
	}
	c := &Counter{}
	f.series[name] = c
	return c
}

// Gauge returns or creates a gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(baseName(name), "gauge", help)
	if g, ok := f.series[name].(*Gauge); ok {
		return g
	}
	g := &Gauge{}
	f.series[name] = g
	return g
}

// Histogram returns or creates a histogram. Nil buckets means
// DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(baseName(name), "histogram", help)
	if h, ok := f.series[name].(*Histogram); ok {
		return h
	}
	h := newHistogram(buckets)
	f.series[name] = h
	return h
}

// WithLabels appends label pairs to a metric name:
// WithLabels("foo", "k", "v") yields `foo{k="v"}`.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `%s=%q`, kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(series string) string {
	if i := strings.IndexByte(series, '{'); i != -1 {
		return series[:i]
	}
	return series
}

// splitSeries separates `foo{k="v"}` into `foo` and `{k="v"}`.
func splitSeries(series string) (base, labels string) {
	if i := strings.IndexByte(series, '{'); i != -1 {
		return series[:i], series[i:]
	}
	return series, ""
}

// mergeLabels injects an extra label into an existing label block.
func mergeLabels(labels, extra string) string {
	if labels == "" {
		return "{" + extra + "}"
	}
	return labels[:len(labels)-1] + "," + extra + "}"
}

// Render emits the registry in the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, f := range r.families {
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", f.name, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", f.name, f.typ)

		names := make([]string, 0, len(f.series))
		for n := range f.series {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			f.series[n].render(&b, n)
		}
	}
	return b.String()
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve blocks serving /metrics on addr.
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(addr, mux)
}

// ServeAsync serves /metrics in a goroutine, logging a failure to start.
func (r *Registry) ServeAsync(addr string, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	go func() {
		if err := r.Serve(addr); err != nil {
			log.Error("metrics: server stopped", "addr", addr, "error", err)
		}
	}()
}
