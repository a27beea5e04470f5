// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	ItemsAlignedTotal     *prometheus.CounterVec
	CoercionWarningsTotal *prometheus.CounterVec
	ItemsSubmittedTotal   *prometheus.CounterVec
	BatchSize             prometheus.Histogram
	BatchDuration         prometheus.Histogram
	SchemaCacheHitsTotal  prometheus.Counter
	SchemaCacheMissTotal  prometheus.Counter
	SinkRequestDuration   *prometheus.HistogramVec
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ItemsAlignedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "items_aligned_total",
				Help: "Total documents aligned against a schema, by outcome (ok, missing_id, invalid_json).",
			},
			[]string{"outcome"},
		),
		CoercionWarningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coercion_warnings_total",
				Help: "Total soft alignment warnings by kind (dropped_field, coerced_value, injected_default, remapped_alias).",
			},
			[]string{"kind"},
		),
		ItemsSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "items_submitted_total",
				Help: "Total items submitted to the external sink by status (ok, error).",
			},
			[]string{"status"},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batch_documents",
				Help:    "Number of documents per batch submission.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 200},
			},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batch_duration_seconds",
				Help:    "Wall-clock duration of a full batch submission.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
		),
		SchemaCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "schema_cache_hits_total",
				Help: "Total number of schema cache hits.",
			},
		),
		SchemaCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "schema_cache_misses_total",
				Help: "Total number of schema cache misses.",
			},
		),
		SinkRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_request_duration_seconds",
				Help:    "Latency of upsert/delete calls against the external item sink.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ItemsAlignedTotal,
		m.CoercionWarningsTotal,
		m.ItemsSubmittedTotal,
		m.BatchSize,
		m.BatchDuration,
		m.SchemaCacheHitsTotal,
		m.SchemaCacheMissTotal,
		m.SinkRequestDuration,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
