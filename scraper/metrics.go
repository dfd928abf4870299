package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper and the enrich pipeline.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ListItemsTotal   prometheus.Counter
	OutputItemsTotal prometheus.Counter
	CacheHitsTotal   prometheus.Counter
	FallbacksTotal   prometheus.Counter
	CheckpointsTotal prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"endpoint"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	listItems := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_list_items_total",
			Help: "Total number of listing rows collected.",
		},
	)
	outputItems := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_output_items_total",
			Help: "Total number of enriched items produced.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_detail_cache_hits_total",
			Help: "Detail lookups served from the in-process cache.",
		},
	)
	fallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_enrich_fallbacks_total",
			Help: "Source items minified from listing data after a failed detail lookup.",
		},
	)
	checkpoints := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_checkpoints_total",
			Help: "Enriched dump checkpoints written.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, listItems, outputItems, cacheHits, fallbacks, checkpoints, errorsTotal)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		ListItemsTotal:   listItems,
		OutputItemsTotal: outputItems,
		CacheHitsTotal:   cacheHits,
		FallbacksTotal:   fallbacks,
		CheckpointsTotal: checkpoints,
		ErrorsTotal:      errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(endpoint string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// AddListItems adds to the listing rows counter.
func (m *Metrics) AddListItems(n int) {
	if m == nil {
		return
	}
	m.ListItemsTotal.Add(float64(n))
}

// AddOutputItems adds to the enriched items counter.
func (m *Metrics) AddOutputItems(n int) {
	if m == nil {
		return
	}
	m.OutputItemsTotal.Add(float64(n))
}

// IncCacheHit increments the detail cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncFallback increments the enrich fallback counter.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

// IncCheckpoint increments the checkpoint counter.
func (m *Metrics) IncCheckpoint() {
	if m == nil {
		return
	}
	m.CheckpointsTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
