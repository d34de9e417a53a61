// Package metrics provides Prometheus metrics for the feedmill service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus instruments for the service.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	// Source fetch metrics
	fetchRequests    *prometheus.CounterVec // source, outcome: hit|miss|error|shared|stale
	fetchDuration    *prometheus.HistogramVec
	breakerRejections *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec // tier: memory|durable
	cacheMisses prometheus.Counter
	cacheErrors *prometheus.CounterVec

	// Enrichment metrics
	enrichmentsAI       prometheus.Counter
	enrichmentsFallback prometheus.Counter
	enrichmentDuration  prometheus.Histogram

	// Feed metrics
	feedBuilds        prometheus.Counter
	feedBuildDuration prometheus.Histogram
	feedItemsServed   prometheus.Counter

	// Persistence metrics
	persistSuccess *prometheus.CounterVec // category
	persistFailure *prometheus.CounterVec // category
	persistRetries prometheus.Counter

	// Queue metrics
	queueDepth       prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueueErrs prometheus.Counter

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithRegistry sets the Prometheus registerer to install instruments on.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithHistogramBuckets overrides the default duration buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// Custom registry so default Go runtime collectors stay out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// GetRegistry returns the registry /metrics should serve.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a metrics manager and registers all instruments.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "feedmill",
		subsystem: "pipeline",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.fetchRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fetch_requests_total",
		Help: "Source fetch requests by source and outcome (hit, miss, error, shared, stale)",
	}, []string{"source", "outcome"})

	m.fetchDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "fetch_duration_seconds",
		Help:    "Upstream fetch latency per source",
		Buckets: m.buckets,
	}, []string{"source"})

	m.breakerRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "breaker_rejections_total",
		Help: "Fetches rejected by an open circuit breaker, per source",
	}, []string{"source"})

	m.cacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_hits_total",
		Help: "Cache hits by tier (memory, durable)",
	}, []string{"tier"})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_misses_total",
		Help: "Lookups that missed every cache tier",
	})

	m.cacheErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_errors_total",
		Help: "Cache tier failures that were logged and swallowed",
	}, []string{"tier"})

	m.enrichmentsAI = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "enrichments_ai_total",
		Help: "Items enriched by the AI scorer",
	})

	m.enrichmentsFallback = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "enrichments_fallback_total",
		Help: "Items enriched by the keyword fallback estimator",
	})

	m.enrichmentDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "enrichment_duration_seconds",
		Help:    "Latency of a single item enrichment",
		Buckets: m.buckets,
	})

	m.feedBuilds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_builds_total",
		Help: "Full feed materializations (cache misses on the mixed snapshot)",
	})

	m.feedBuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "feed_build_duration_seconds",
		Help:    "Wall time of a full feed build across all sources",
		Buckets: m.buckets,
	})

	m.feedItemsServed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_items_served_total",
		Help: "Feed items returned to clients",
	})

	m.persistSuccess = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_success_total",
		Help: "Successful snapshot writes per category",
	}, []string{"category"})

	m.persistFailure = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_failure_total",
		Help: "Snapshot writes that failed after retry exhaustion, per category",
	}, []string{"category"})

	m.persistRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_retries_total",
		Help: "Individual snapshot write retries",
	})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_queue_depth",
		Help: "Jobs waiting in the persistence queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_queue_capacity",
		Help: "Configured capacity of the persistence queue",
	})

	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_queue_enqueue_errors_total",
		Help: "Persistence jobs dropped because the queue was full or closed",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by endpoint, method and status code",
		Buckets: m.buckets,
	}, []string{"endpoint", "method", "status"})

	return m
}

// Package-level recording helpers delegating to the global manager.

func RecordFetch(source, outcome string)    { globalManager.fetchRequests.WithLabelValues(source, outcome).Inc() }
func RecordFetchDuration(source string, seconds float64) {
	globalManager.fetchDuration.WithLabelValues(source).Observe(seconds)
}
func RecordBreakerRejection(source string) {
	globalManager.breakerRejections.WithLabelValues(source).Inc()
}

func RecordCacheHit(tier string)   { globalManager.cacheHits.WithLabelValues(tier).Inc() }
func RecordCacheMiss()             { globalManager.cacheMisses.Inc() }
func RecordCacheError(tier string) { globalManager.cacheErrors.WithLabelValues(tier).Inc() }

func RecordEnrichmentAI()       { globalManager.enrichmentsAI.Inc() }
func RecordEnrichmentFallback() { globalManager.enrichmentsFallback.Inc() }
func RecordEnrichmentDuration(seconds float64) {
	globalManager.enrichmentDuration.Observe(seconds)
}

func RecordFeedBuild()                        { globalManager.feedBuilds.Inc() }
func RecordFeedBuildDuration(seconds float64) { globalManager.feedBuildDuration.Observe(seconds) }
func RecordFeedItemsServed(n int)             { globalManager.feedItemsServed.Add(float64(n)) }

func RecordPersistSuccess(category string) {
	globalManager.persistSuccess.WithLabelValues(category).Inc()
}
func RecordPersistFailure(category string) {
	globalManager.persistFailure.WithLabelValues(category).Inc()
}
func RecordPersistRetry() { globalManager.persistRetries.Inc() }

func UpdateQueueDepth(n int)       { globalManager.queueDepth.Set(float64(n)) }
func UpdateQueueCapacity(n int)    { globalManager.queueCapacity.Set(float64(n)) }
func RecordQueueEnqueueError()     { globalManager.queueEnqueueErrs.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}
func RecordHTTPRequestDuration(endpoint, method, status string, seconds float64) {
	globalManager.httpDuration.WithLabelValues(endpoint, method, status).Observe(seconds)
}
