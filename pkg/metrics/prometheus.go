// Package metrics provides Prometheus metrics for the nearby discovery service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Store
	activitiesTotal   prometheus.Gauge
	storeGeneration   prometheus.Gauge
	loadsTotal        *prometheus.CounterVec
	loadDuration      prometheus.Histogram
	recordsSkipped    prometheus.Counter
	locationFallbacks *prometheus.CounterVec

	// Change stream
	changesApplied    *prometheus.CounterVec
	changesDuplicate  prometheus.Counter
	changesIgnored    *prometheus.CounterVec
	deliveriesDeduped prometheus.Counter
	applyLatency      prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec

	// Resolution and filtering
	userInputResolutions *prometheus.CounterVec
	geocoderRequests     *prometheus.CounterVec
	filterEvaluations    *prometheus.CounterVec
	filterLatency        prometheus.Histogram
	filterResultSize     prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Supervision
	supervisorEvents *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
	customRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nearby",
		subsystem:        "discovery",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.activitiesTotal = m.gauge("activities", "Number of activities in the committed snapshot")
	m.storeGeneration = m.gauge("store_generation", "Generation of the committed snapshot")
	m.loadsTotal = m.counterVec("loads_total", "Bulk loads by outcome", "outcome")
	m.loadDuration = m.histogram("load_duration_milliseconds", "Bulk load duration in milliseconds", m.histogramBuckets)
	m.recordsSkipped = m.counter("records_skipped_total", "Raw records dropped because they could not be normalized")
	m.locationFallbacks = m.counterVec("location_fallbacks_total", "Stored locations replaced by the fallback coordinate", "source")

	m.changesApplied = m.counterVec("changes_applied_total", "Change events that mutated the store", "operation")
	m.changesDuplicate = m.counter("changes_duplicate_insert_total", "Insert events for ids already present")
	m.changesIgnored = m.counterVec("changes_ignored_total", "Change events ignored for unknown ids or bad payloads", "operation", "reason")
	m.deliveriesDeduped = m.counter("deliveries_deduped_total", "Redelivered change events dropped before apply")
	m.applyLatency = m.histogram("apply_latency_milliseconds", "Change apply latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Pending change events")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the change event queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")

	m.userInputResolutions = m.counterVec("user_input_resolutions_total", "Free-text location resolutions by strategy", "strategy")
	m.geocoderRequests = m.counterVec("geocoder_requests_total", "Geocoder requests by outcome", "outcome")
	m.filterEvaluations = m.counterVec("filter_evaluations_total", "Filter evaluations by outcome", "outcome")
	m.filterLatency = m.histogram("filter_latency_milliseconds", "Filter evaluation latency in milliseconds", m.histogramBuckets)
	m.filterResultSize = m.histogram("filter_result_size", "Activities returned per evaluation", prometheus.ExponentialBuckets(1, 4, 8))

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.supervisorEvents = m.counterVec("supervisor_events_total", "Supervisor events by service and kind", "service", "kind")
}

// Store metrics.

// UpdateActivities sets the activity gauge.
func UpdateActivities(count int) { globalManager.activitiesTotal.Set(float64(count)) }

// UpdateGeneration sets the store generation gauge.
func UpdateGeneration(gen uint64) { globalManager.storeGeneration.Set(float64(gen)) }

// RecordLoad records a bulk load outcome ("ok", "cancelled", "error") and its duration.
func RecordLoad(outcome string, durationMs float64) {
	globalManager.loadsTotal.WithLabelValues(outcome).Inc()
	globalManager.loadDuration.Observe(durationMs)
}

// RecordRecordSkipped counts a raw record dropped during normalization.
func RecordRecordSkipped() { globalManager.recordsSkipped.Inc() }

// RecordLocationFallback counts a fallback substitution; source is "load" or "change".
func RecordLocationFallback(source string) {
	globalManager.locationFallbacks.WithLabelValues(source).Inc()
}

// Change stream metrics.

// RecordChangeApplied counts a state-changing event.
func RecordChangeApplied(operation string) {
	globalManager.changesApplied.WithLabelValues(operation).Inc()
}

// RecordDuplicateInsert counts an idempotent insert no-op.
func RecordDuplicateInsert() { globalManager.changesDuplicate.Inc() }

// RecordChangeIgnored counts an event that did not touch the store.
func RecordChangeIgnored(operation, reason string) {
	globalManager.changesIgnored.WithLabelValues(operation, reason).Inc()
}

// RecordDeliveryDeduped counts a redelivery dropped by the dedupe window.
func RecordDeliveryDeduped() { globalManager.deliveriesDeduped.Inc() }

// RecordApplyLatency records how long a change took to apply.
func RecordApplyLatency(latencyMs float64) { globalManager.applyLatency.Observe(latencyMs) }

// Queue metrics.

// UpdateQueueSize sets the pending change gauge.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Resolution and filter metrics.

// RecordUserInputResolution counts which strategy resolved free text ("unparseable" on failure).
func RecordUserInputResolution(strategy string) {
	globalManager.userInputResolutions.WithLabelValues(strategy).Inc()
}

// RecordGeocoderRequest counts a geocoder call by outcome.
func RecordGeocoderRequest(outcome string) {
	globalManager.geocoderRequests.WithLabelValues(outcome).Inc()
}

// RecordFilterEvaluation records a filter evaluation.
func RecordFilterEvaluation(outcome string, latencyMs float64, resultSize int) {
	globalManager.filterEvaluations.WithLabelValues(outcome).Inc()
	globalManager.filterLatency.Observe(latencyMs)
	if outcome == "ok" {
		globalManager.filterResultSize.Observe(float64(resultSize))
	}
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Supervision metrics.

// RecordSupervisorEvent counts a supervisor event such as a restart or backoff.
func RecordSupervisorEvent(service, kind string) {
	globalManager.supervisorEvents.WithLabelValues(service, kind).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
