package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the service, registered on its own
// registry so tests and batch runs never share global state.
type Metrics struct {
	registry *prometheus.Registry

	Lookups          *prometheus.CounterVec
	CatalogStates    prometheus.Gauge
	CatalogGen       prometheus.Gauge
	CatalogReloads   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	RateLimited      prometheus.Counter
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	ChangePercent    prometheus.Gauge
	ScrapeResults    *prometheus.CounterVec
	GateDecisions    *prometheus.CounterVec
	SourceDuration   *prometheus.HistogramVec
	SourceErrors     *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxrates_lookups_total",
			Help: "Rate lookups by resolution method and outcome",
		}, []string{"method", "supported"}),
		CatalogStates: f.NewGauge(prometheus.GaugeOpts{
			Name: "taxrates_catalog_states",
			Help: "Number of states in the loaded catalog",
		}),
		CatalogGen: f.NewGauge(prometheus.GaugeOpts{
			Name: "taxrates_catalog_generation",
			Help: "Generation of the loaded catalog snapshot",
		}),
		CatalogReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxrates_catalog_reloads_total",
			Help: "Catalog reload attempts by result",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxrates_http_requests_total",
			Help: "API requests by route and status code",
		}, []string{"route", "status"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "taxrates_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxrates_pipeline_runs_total",
			Help: "Update pipeline runs by verdict",
		}, []string{"verdict"}),
		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxrates_pipeline_duration_seconds",
			Help:    "Duration of update pipeline runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ChangePercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "taxrates_pipeline_change_percent",
			Help: "Change percent of the most recent diff report",
		}),
		ScrapeResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxrates_scrape_results_total",
			Help: "Scrape outcomes by state and status",
		}, []string{"state", "status"}),
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxrates_gate_decisions_total",
			Help: "Pre-commit gate decisions",
		}, []string{"decision"}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxrates_source_request_duration_seconds",
			Help:    "Duration of source downloads by host and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"host", "status"}),
		SourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxrates_source_request_errors_total",
			Help: "Failed source downloads by host",
		}, []string{"host"}),
	}
}

// NewWithRuntime also registers the Go runtime and process collectors, for
// long-running servers.
func NewWithRuntime() *Metrics {
	m := New()
	m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// RecordLookup counts one resolved rate request.
func (m *Metrics) RecordLookup(method string, supported bool) {
	if method == "" {
		method = "none"
	}
	m.Lookups.WithLabelValues(method, strconv.FormatBool(supported)).Inc()
}

// RecordCatalog publishes the size and generation of a loaded catalog.
func (m *Metrics) RecordCatalog(states int, generation uint64, ok bool) {
	if !ok {
		m.CatalogReloads.WithLabelValues("error").Inc()
		return
	}
	m.CatalogReloads.WithLabelValues("ok").Inc()
	m.CatalogStates.Set(float64(states))
	m.CatalogGen.Set(float64(generation))
}

// RecordRequestDuration implements the HTTP client's MetricsCollector.
func (m *Metrics) RecordRequestDuration(host string, statusCode int, duration time.Duration) {
	m.SourceDuration.WithLabelValues(host, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// RecordRequestError implements the HTTP client's MetricsCollector.
func (m *Metrics) RecordRequestError(host string) {
	m.SourceErrors.WithLabelValues(host).Inc()
}
