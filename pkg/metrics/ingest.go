package metrics

// IngestMetrics bundles what the indexing jobs report.
type IngestMetrics struct {
	DocumentsIndexed *Counter
	ListingsSkipped  *Counter
	BatchesFailed    *Counter
	InFlight         *Gauge
	IndexDuration    *Histogram
}

// NewIngestMetrics registers the indexing job metrics. A non-empty
// provider becomes a label on every series, keeping runs against
// different embedding backends apart.
func NewIngestMetrics(r *Registry, provider string) *IngestMetrics {
	name := func(base string) string {
		if provider == "" {
			return base
		}
		return WithLabels(base, "provider", provider)
	}
	return &IngestMetrics{
		DocumentsIndexed: r.Counter(name("documents_indexed_total"), "Documents written to the vector collection"),
		ListingsSkipped:  r.Counter(name("listings_skipped_total"), "Listings dropped by row validation"),
		BatchesFailed:    r.Counter(name("index_batches_failed_total"), "Indexing invocations that returned an error"),
		InFlight:         r.Gauge(name("index_inflight"), "Listings currently being indexed"),
		IndexDuration:    r.Histogram(name("index_duration_seconds"), "Wall time of one indexing invocation", nil),
	}
}
