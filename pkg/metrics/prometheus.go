// Package metrics provides Prometheus metrics for the plushub service and
// its client-side interaction shell.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector plushub exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Mutation shell
	mutationsTotal     *prometheus.CounterVec
	mutationLatency    *prometheus.HistogramVec
	mutationsRejected  *prometheus.CounterVec
	validationFailures *prometheus.CounterVec

	// Query cache
	invalidationsTotal *prometheus.CounterVec
	cacheReads         *prometheus.CounterVec
	cacheEntries       prometheus.Gauge
	cacheEvictions     prometheus.Counter

	// Domain
	suggestionsCreated prometheus.Counter
	commentsAdded      prometheus.Counter
	vouchesRecorded    *prometheus.CounterVec
	eventsEdited       prometheus.Counter
	authzDenied        *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Notification queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
	deliveryErrors     prometheus.Counter
	deliveryLatency    prometheus.Histogram
	workerActiveCount  prometheus.Gauge
	errorsByComponent  *prometheus.CounterVec
	storeQueryLatency  *prometheus.HistogramVec
	systemGoroutines   prometheus.Gauge
	systemMemoryUsage  prometheus.Gauge
}

var (
	globalManager  atomic.Pointer[Manager]             //nolint:gochecknoglobals // singleton metrics manager
	customRegistry atomic.Pointer[prometheus.Registry] //nolint:gochecknoglobals // keeps Go collectors out of /healthz
)

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure rebuilds the global manager on a fresh registry with opts
// applied. Call it before anything records or serves metrics.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	m := NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry.Store(registry)
	globalManager.Store(m)
}

func global() *Manager { return globalManager.Load() }

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "plushub",
		subsystem:        "",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.mutationsTotal = m.counterVec("mutations_total", "Mutation attempts by name and outcome", "mutation", "outcome")
	m.mutationLatency = m.histogramVec("mutation_latency_milliseconds", "Remote mutation call latency", "mutation")
	m.mutationsRejected = m.counterVec("mutations_rejected_total", "Submissions rejected before dispatch", "mutation", "reason")
	m.validationFailures = m.counterVec("validation_failures_total", "Field validation failures", "schema", "field")

	m.invalidationsTotal = m.counterVec("query_invalidations_total", "Query topics marked stale", "topic")
	m.cacheReads = m.counterVec("query_cache_reads_total", "Query cache reads by topic and result", "topic", "result")
	m.cacheEntries = m.gauge("query_cache_entries", "Entries held in the query cache")
	m.cacheEvictions = m.counter("query_cache_evictions_total", "Entries evicted from the query cache")

	m.suggestionsCreated = m.counter("suggestions_created_total", "New plus suggestions")
	m.commentsAdded = m.counter("suggestion_comments_total", "Comments appended to existing suggestions")
	m.vouchesRecorded = m.counterVec("vouches_total", "Recorded vouches", "tier", "region")
	m.eventsEdited = m.counter("calendar_events_edited_total", "Calendar event edits")
	m.authzDenied = m.counterVec("authorization_denied_total", "Denied authorization decisions", "action")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("http_errors_total", "HTTP errors by endpoint and type", "endpoint", "method", "error_type")

	m.queueSize = m.gauge("notification_queue_size", "Notifications waiting for delivery")
	m.queueCapacity = m.gauge("notification_queue_capacity", "Notification queue capacity")
	m.queueEnqueueTotal = m.counter("notification_queue_enqueued_total", "Notifications enqueued")
	m.queueDequeueTotal = m.counter("notification_queue_dequeued_total", "Notifications dequeued")
	m.queueEnqueueErrors = m.counterVec("notification_queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")
	m.notificationsSent = m.counterVec("notifications_delivered_total", "Delivered notifications by kind", "kind")
	m.deliveryErrors = m.counter("notification_delivery_errors_total", "Failed notification deliveries")
	m.deliveryLatency = m.histogram("notification_delivery_latency_milliseconds", "Notification delivery latency")
	m.workerActiveCount = m.gauge("notification_workers", "Running notification workers")
	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")
	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Store operation latency", "store", "op")

	m.systemGoroutines = m.gauge("system_goroutines", "Current number of goroutines")
	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
}

// RecordMutation counts a resolved mutation attempt.
func RecordMutation(mutation, outcome string, latencyMs float64) {
	global().mutationsTotal.WithLabelValues(mutation, outcome).Inc()
	global().mutationLatency.WithLabelValues(mutation).Observe(latencyMs)
}

// RecordMutationRejected counts a submission stopped before it reached the network.
func RecordMutationRejected(mutation, reason string) {
	global().mutationsRejected.WithLabelValues(mutation, reason).Inc()
}

// RecordValidationFailure counts one failing field.
func RecordValidationFailure(schema, field string) {
	global().validationFailures.WithLabelValues(schema, field).Inc()
}

// RecordInvalidation counts one topic being marked stale.
func RecordInvalidation(topic string) {
	global().invalidationsTotal.WithLabelValues(topic).Inc()
}

// RecordCacheRead counts a query cache read; result is hit, miss or stale.
func RecordCacheRead(topic, result string) {
	global().cacheReads.WithLabelValues(topic, result).Inc()
}

// UpdateCacheEntries sets the number of cached entries.
func UpdateCacheEntries(n int) { global().cacheEntries.Set(float64(n)) }

// RecordCacheEviction counts an evicted cache entry.
func RecordCacheEviction() { global().cacheEvictions.Inc() }

// RecordSuggestionCreated counts a brand new suggestion.
func RecordSuggestionCreated() { global().suggestionsCreated.Inc() }

// RecordCommentAdded counts a resuggestion comment.
func RecordCommentAdded() { global().commentsAdded.Inc() }

// RecordVouch counts a vouch.
func RecordVouch(tier, region string) { global().vouchesRecorded.WithLabelValues(tier, region).Inc() }

// RecordEventEdited counts a calendar event edit.
func RecordEventEdited() { global().eventsEdited.Inc() }

// RecordAuthorizationDenied counts a denied policy decision.
func RecordAuthorizationDenied(action string) { global().authzDenied.WithLabelValues(action).Inc() }

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	global().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	global().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	global().errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateQueueSize sets the notification queue length.
func UpdateQueueSize(size int) { global().queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the notification queue capacity.
func UpdateQueueCapacity(capacity int) { global().queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted enqueue.
func RecordQueueEnqueue() { global().queueEnqueueTotal.Inc() }

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() { global().queueDequeueTotal.Inc() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	global().queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordNotificationDelivered counts a delivered notification.
func RecordNotificationDelivered(kind string, latencyMs float64) {
	global().notificationsSent.WithLabelValues(kind).Inc()
	global().deliveryLatency.Observe(latencyMs)
}

// RecordDeliveryError counts a failed delivery.
func RecordDeliveryError() { global().deliveryErrors.Inc() }

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) { global().workerActiveCount.Set(float64(count)) }

// RecordErrorByComponent counts an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	global().errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordStoreLatency observes a store operation.
func RecordStoreLatency(store, op string, latencyMs float64) {
	global().storeQueryLatency.WithLabelValues(store, op).Observe(latencyMs)
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { global().systemGoroutines.Set(float64(count)) }

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) { global().systemMemoryUsage.Set(float64(bytes)) }

// GetRegistry returns the registry all plushub collectors live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry.Load()
}
