// Package metrics provides Prometheus metrics for the studylake service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager holds all Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// Lake build / snapshot metrics
	lakeBuildDuration    prometheus.Histogram
	lakeBuildErrors      prometheus.Counter
	lakeRows             prometheus.Gauge
	snapshotLastUnix     prometheus.Gauge
	snapshotTotal        prometheus.Counter
	malformedEvents      prometheus.Counter
	duplicateRowsDropped prometheus.Counter
	referenceFetchFails  *prometheus.CounterVec

	// Report metrics
	reportRequests *prometheus.CounterVec
	reportNoData   prometheus.Counter

	// Ingest metrics
	eventsIngested   prometheus.Counter
	ingestQueueDepth prometheus.Gauge
	ingestErrors     prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry sets the Prometheus registerer to register collectors on.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry so /metrics serves only our collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "studylake",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.lakeBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "lake_build_duration_seconds",
		Help:      "Time spent building one lake snapshot.",
		Buckets:   prometheus.DefBuckets,
	})
	m.lakeBuildErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "lake_build_errors_total",
		Help:      "Number of snapshot builds that failed entirely.",
	})
	m.lakeRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "lake_rows",
		Help:      "Row count of the currently published snapshot.",
	})
	m.snapshotLastUnix = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "snapshot_last_unix",
		Help:      "Unix time of the last successful snapshot publication.",
	})
	m.snapshotTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "snapshot_total",
		Help:      "Number of snapshots published since start.",
	})
	m.malformedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "malformed_events_total",
		Help:      "Events dropped during normalization due to malformed payloads.",
	})
	m.duplicateRowsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "duplicate_rows_dropped_total",
		Help:      "Rows dropped by metric-tuple deduplication.",
	})
	m.referenceFetchFails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reference_fetch_failures_total",
		Help:      "Reference-data fetches that degraded to an empty table.",
	}, []string{"source"})

	m.reportRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "report_requests_total",
		Help:      "Report computations by kind.",
	}, []string{"kind"})
	m.reportNoData = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "report_no_data_total",
		Help:      "Report requests that matched no events.",
	})

	m.eventsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_ingested_total",
		Help:      "Telemetry events accepted for storage.",
	})
	m.ingestQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "ingest_queue_depth",
		Help:      "Events waiting in the ingest queue.",
	})
	m.ingestErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ingest_errors_total",
		Help:      "Events that failed to be stored.",
	})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	m.registry.MustRegister(
		m.lakeBuildDuration,
		m.lakeBuildErrors,
		m.lakeRows,
		m.snapshotLastUnix,
		m.snapshotTotal,
		m.malformedEvents,
		m.duplicateRowsDropped,
		m.referenceFetchFails,
		m.reportRequests,
		m.reportNoData,
		m.eventsIngested,
		m.ingestQueueDepth,
		m.ingestErrors,
		m.httpRequests,
		m.httpRequestDuration,
	)

	return m
}

// GetRegistry returns the registry backing the global manager, for serving.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers on the global manager.

func RecordLakeBuildDuration(seconds float64) { globalManager.lakeBuildDuration.Observe(seconds) }
func RecordLakeBuildError()                   { globalManager.lakeBuildErrors.Inc() }
func UpdateLakeRows(n int)                    { globalManager.lakeRows.Set(float64(n)) }
func UpdateSnapshotLastUnix(ts float64)       { globalManager.snapshotLastUnix.Set(ts) }
func IncrementSnapshotCount()                 { globalManager.snapshotTotal.Inc() }
func RecordMalformedEvent()                   { globalManager.malformedEvents.Inc() }
func RecordDuplicateRowDropped()              { globalManager.duplicateRowsDropped.Inc() }

func RecordReferenceFetchFailure(source string) {
	globalManager.referenceFetchFails.WithLabelValues(source).Inc()
}

func RecordReportRequest(kind string) { globalManager.reportRequests.WithLabelValues(kind).Inc() }
func RecordReportNoData()             { globalManager.reportNoData.Inc() }

func RecordEventIngested()      { globalManager.eventsIngested.Inc() }
func UpdateIngestQueueDepth(n int) { globalManager.ingestQueueDepth.Set(float64(n)) }
func RecordIngestError()        { globalManager.ingestErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}
