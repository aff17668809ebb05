// Package metrics provides Prometheus metrics for the stride coaching service.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// readinessBuckets cover the 0..100 readiness score in steps of ten.
var readinessBuckets = prometheus.LinearBuckets(10, 10, 10) //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Coaching metrics
	dashboardsComputed prometheus.Counter
	insightsSelected   *prometheus.CounterVec
	readinessScore     prometheus.Histogram
	staleServed        *prometheus.CounterVec
	snapshots          prometheus.Gauge

	// Write path
	calendarMutations   *prometheus.CounterVec
	activitiesIngested  prometheus.Counter
	activitiesDuplicate prometheus.Counter
	gatewayErrors       *prometheus.CounterVec

	// Refresh pipeline
	refreshQueueSize prometheus.Gauge
	refreshEnqueued  *prometheus.CounterVec
	refreshDropped   *prometheus.CounterVec
	refreshWorkers   prometheus.Gauge
	refreshLatency   prometheus.Histogram
	refreshWait      prometheus.Histogram
	refreshErrors    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpPanics          prometheus.Counter
	httpRateLimited     *prometheus.CounterVec

	// Coaching events
	eventsPublished *prometheus.CounterVec
	eventsFailed    *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global metrics on a fresh registry with opts
// applied. It must run before metrics are served or recorded concurrently.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "stride",
		subsystem:        "coach",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.dashboardsComputed = auto.NewCounter(m.counter("dashboards_computed_total", "Total number of dashboards computed"))
	m.insightsSelected = auto.NewCounterVec(m.counter("insights_selected_total", "Insights selected, by rule"), []string{"rule"})
	m.readinessScore = auto.NewHistogram(m.histogram("readiness_score", "Distribution of computed readiness scores", readinessBuckets))
	m.staleServed = auto.NewCounterVec(m.counter("stale_snapshots_served_total", "Last-good snapshots served after a gateway failure, by view"), []string{"view"})
	m.snapshots = auto.NewGauge(m.gauge("snapshots", "Number of users with a cached dashboard snapshot"))

	m.calendarMutations = auto.NewCounterVec(m.counter("calendar_mutations_total", "Calendar mutations, by operation"), []string{"op"})
	m.activitiesIngested = auto.NewCounter(m.counter("activities_ingested_total", "Activities stored"))
	m.activitiesDuplicate = auto.NewCounter(m.counter("activities_duplicate_total", "Activity uploads acknowledged as replays"))
	m.gatewayErrors = auto.NewCounterVec(m.counter("gateway_errors_total", "Gateway call failures, by operation"), []string{"op"})

	m.refreshQueueSize = auto.NewGauge(m.gauge("refresh_queue_size", "Pending dashboard refresh requests"))
	m.refreshEnqueued = auto.NewCounterVec(m.counter("refresh_enqueued_total", "Refresh requests accepted, by reason"), []string{"reason"})
	m.refreshDropped = auto.NewCounterVec(m.counter("refresh_dropped_total", "Refresh requests dropped, by cause"), []string{"cause"})
	m.refreshWorkers = auto.NewGauge(m.gauge("refresh_workers", "Running refresh workers"))
	m.refreshLatency = auto.NewHistogram(m.histogram("refresh_duration_seconds", "Time to recompute one dashboard snapshot", m.histogramBuckets))
	m.refreshWait = auto.NewHistogram(m.histogram("refresh_wait_seconds", "Time a refresh request spent queued", m.histogramBuckets))
	m.refreshErrors = auto.NewCounter(m.counter("refresh_errors_total", "Failed dashboard refreshes"))

	m.httpRequests = auto.NewCounterVec(
		m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogram("http_request_duration_seconds", "HTTP request duration in seconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpPanics = auto.NewCounter(m.counter("http_panics_total", "Handler panics recovered by the HTTP server"))
	m.httpRateLimited = auto.NewCounterVec(m.counter("http_rate_limited_total", "Requests refused by the rate limiter, by route"), []string{"endpoint"})

	m.eventsPublished = auto.NewCounterVec(m.counter("events_published_total", "Coaching events delivered to the broker, by type"), []string{"type"})
	m.eventsFailed = auto.NewCounterVec(m.counter("events_failed_total", "Coaching events that could not be delivered, by type"), []string{"type"})
}

// RecordDashboardComputed increments the dashboards computed counter.
func RecordDashboardComputed() {
	globalManager.dashboardsComputed.Inc()
}

// RecordInsight counts one selection of rule.
func RecordInsight(rule string) {
	globalManager.insightsSelected.WithLabelValues(rule).Inc()
}

// ObserveReadiness records a computed readiness score.
func ObserveReadiness(score int) {
	globalManager.readinessScore.Observe(float64(score))
}

// RecordStaleServed counts a last-good snapshot served for view.
func RecordStaleServed(view string) {
	globalManager.staleServed.WithLabelValues(view).Inc()
}

// UpdateSnapshotCount sets the number of cached snapshots.
func UpdateSnapshotCount(n int) {
	globalManager.snapshots.Set(float64(n))
}

// RecordCalendarMutation counts a calendar write by operation.
func RecordCalendarMutation(op string) {
	globalManager.calendarMutations.WithLabelValues(op).Inc()
}

// RecordActivityIngested counts a stored activity.
func RecordActivityIngested() {
	globalManager.activitiesIngested.Inc()
}

// RecordActivityDuplicate counts a replayed activity upload.
func RecordActivityDuplicate() {
	globalManager.activitiesDuplicate.Inc()
}

// RecordGatewayError counts a failed gateway call by operation.
func RecordGatewayError(op string) {
	globalManager.gatewayErrors.WithLabelValues(op).Inc()
}

// UpdateRefreshQueueSize sets the number of pending refresh requests.
func UpdateRefreshQueueSize(size int) {
	globalManager.refreshQueueSize.Set(float64(size))
}

// RecordRefreshEnqueued counts an accepted refresh request.
func RecordRefreshEnqueued(reason string) {
	globalManager.refreshEnqueued.WithLabelValues(reason).Inc()
}

// RecordRefreshDropped counts a refresh request that was not enqueued.
func RecordRefreshDropped(cause string) {
	globalManager.refreshDropped.WithLabelValues(cause).Inc()
}

// UpdateRefreshWorkers sets the number of running refresh workers.
func UpdateRefreshWorkers(n int) {
	globalManager.refreshWorkers.Set(float64(n))
}

// RecordRefreshLatency records how long a refresh took, in seconds.
func RecordRefreshLatency(seconds float64) {
	globalManager.refreshLatency.Observe(seconds)
}

// RecordRefreshWait records how long a request waited in the queue, in seconds.
func RecordRefreshWait(seconds float64) {
	globalManager.refreshWait.Observe(seconds)
}

// RecordRefreshError increments the failed refresh counter.
func RecordRefreshError() {
	globalManager.refreshErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// RecordHTTPPanic counts a recovered handler panic.
func RecordHTTPPanic() {
	globalManager.httpPanics.Inc()
}

// RecordHTTPRateLimited counts a request refused by the rate limiter.
func RecordHTTPRateLimited(endpoint string) {
	globalManager.httpRateLimited.WithLabelValues(endpoint).Inc()
}

// RecordEventPublished counts a delivered coaching event.
func RecordEventPublished(eventType string) {
	globalManager.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed counts a coaching event that was not delivered.
func RecordEventFailed(eventType string) {
	globalManager.eventsFailed.WithLabelValues(eventType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RegisterRuntimeCollectors adds build info, Go runtime and process
// collectors to the registry.
func RegisterRuntimeCollectors() error {
	for _, c := range []prometheus.Collector{
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Register adds c to the registry. Registering the same collector twice is
// not an error.
func Register(c prometheus.Collector) error {
	err := customRegistry.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return nil
	}
	return err
}
