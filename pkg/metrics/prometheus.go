// Package metrics provides Prometheus metrics for the synheart state
// fusion runtime.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the runtime.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Pipeline metrics
	windowsClosed   *prometheus.CounterVec
	windowsSkipped  *prometheus.CounterVec
	statesPublished *prometheus.CounterVec
	fusionLatency   prometheus.Histogram
	framesAccepted  *prometheus.CounterVec
	framesRejected  *prometheus.CounterVec

	// Access control metrics
	accessOutcomes     *prometheus.CounterVec
	axisNulls          *prometheus.CounterVec
	capabilityRefresh  prometheus.Counter
	capabilityRejected prometheus.Counter
	consentUpdates     *prometheus.CounterVec

	// Export metrics
	exportQueueCapacity    prometheus.Gauge
	exportQueueSize        prometheus.Gauge
	exportQueueUtilization prometheus.Gauge
	exportQueueDrops       prometheus.Counter
	exportAttempts         prometheus.Counter
	exportDelivered        prometheus.Counter
	exportRetries          prometheus.Counter
	exportSpills           prometheus.Counter

	// Ingest verification metrics
	ingestRejected *prometheus.CounterVec

	// Stream metrics
	streamDrops prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "synheart",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.windowsClosed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "windows_closed_total",
			Help:      "Total number of windows closed, by class",
		},
		[]string{"class"},
	)

	m.windowsSkipped = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "windows_skipped_total",
			Help:      "Total number of windows skipped for lack of any modality data",
		},
		[]string{"class"},
	)

	m.statesPublished = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "states_published_total",
			Help:      "Total number of internal states published to subscribers",
		},
		[]string{"class"},
	)

	m.fusionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fusion_latency_milliseconds",
		Help:      "Histogram of fuse+assemble latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.framesAccepted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "frames_accepted_total",
			Help:      "Total number of feature batches accepted, by modality",
		},
		[]string{"modality"},
	)

	m.framesRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "frames_rejected_total",
			Help:      "Total number of malformed feature batches rejected, by modality",
		},
		[]string{"modality"},
	)

	m.accessOutcomes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "access_outcomes_total",
			Help:      "Total number of access decisions, by decision and reason",
		},
		[]string{"decision", "reason"},
	)

	m.axisNulls = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "axis_nulls_total",
			Help:      "Total number of axis values nulled during assembly, by reason",
		},
		[]string{"reason"},
	)

	m.capabilityRefresh = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "capability_refresh_total",
		Help:      "Total number of accepted capability token refreshes",
	})

	m.capabilityRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "capability_rejected_total",
		Help:      "Total number of rejected capability token refreshes",
	})

	m.consentUpdates = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "consent_updates_total",
			Help:      "Total number of consent updates, by type and direction",
		},
		[]string{"type", "granted"},
	)

	m.exportQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_queue_capacity",
		Help:      "Maximum upload queue capacity",
	})

	m.exportQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_queue_size",
		Help:      "Current number of snapshots awaiting upload",
	})

	m.exportQueueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_queue_utilization_ratio",
		Help:      "Upload queue utilization ratio (size / capacity)",
	})

	m.exportQueueDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_queue_drops_total",
		Help:      "Total number of snapshots dropped on queue overflow",
	})

	m.exportAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_attempts_total",
		Help:      "Total number of snapshot delivery attempts",
	})

	m.exportDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_delivered_total",
		Help:      "Total number of snapshots delivered successfully",
	})

	m.exportRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_retries_total",
		Help:      "Total number of delivery retries after failure",
	})

	m.exportSpills = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_spills_total",
		Help:      "Total number of snapshots moved to the persistent retry list",
	})

	m.ingestRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "ingest_rejected_total",
			Help:      "Total number of ingest envelopes rejected, by error code",
		},
		[]string{"code"},
	)

	m.streamDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_drops_total",
		Help:      "Total number of states shed from slow subscriber buffers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Pipeline metrics functions.

// RecordWindowClosed increments the closed-window counter for a class.
func RecordWindowClosed(class string) {
	globalManager.windowsClosed.WithLabelValues(class).Inc()
}

// RecordWindowSkipped increments the skipped-window counter for a class.
func RecordWindowSkipped(class string) {
	globalManager.windowsSkipped.WithLabelValues(class).Inc()
}

// RecordStatePublished increments the published-state counter for a class.
func RecordStatePublished(class string) {
	globalManager.statesPublished.WithLabelValues(class).Inc()
}

// RecordFusionLatency records fuse+assemble latency in milliseconds.
func RecordFusionLatency(latencyMs float64) {
	globalManager.fusionLatency.Observe(latencyMs)
}

// RecordFrameAccepted increments the accepted-batch counter for a modality.
func RecordFrameAccepted(modality string) {
	globalManager.framesAccepted.WithLabelValues(modality).Inc()
}

// RecordFrameRejected increments the rejected-batch counter for a modality.
func RecordFrameRejected(modality string) {
	globalManager.framesRejected.WithLabelValues(modality).Inc()
}

// Access control metrics functions.

// RecordAccessOutcome records one access decision.
func RecordAccessOutcome(decision, reason string) {
	globalManager.accessOutcomes.WithLabelValues(decision, reason).Inc()
}

// RecordAxisNull records an axis nulled during assembly.
func RecordAxisNull(reason string) {
	globalManager.axisNulls.WithLabelValues(reason).Inc()
}

// RecordCapabilityRefresh increments the accepted token refresh counter.
func RecordCapabilityRefresh() {
	globalManager.capabilityRefresh.Inc()
}

// RecordCapabilityRefreshError increments the rejected token refresh counter.
func RecordCapabilityRefreshError() {
	globalManager.capabilityRejected.Inc()
}

// RecordConsentUpdate records a consent grant or revoke.
func RecordConsentUpdate(consentType string, granted bool) {
	label := "false"
	if granted {
		label = "true"
	}
	globalManager.consentUpdates.WithLabelValues(consentType, label).Inc()
}

// Export metrics functions.

// UpdateExportQueueCapacity sets the upload queue capacity gauge.
func UpdateExportQueueCapacity(capacity int) {
	globalManager.exportQueueCapacity.Set(float64(capacity))
}

// UpdateExportQueueSize sets the upload queue size gauge.
func UpdateExportQueueSize(size int) {
	globalManager.exportQueueSize.Set(float64(size))
}

// UpdateExportQueueUtilization sets the upload queue utilization gauge.
func UpdateExportQueueUtilization(ratio float64) {
	globalManager.exportQueueUtilization.Set(ratio)
}

// RecordExportQueueDrop increments the overflow drop counter.
func RecordExportQueueDrop() {
	globalManager.exportQueueDrops.Inc()
}

// RecordExportAttempt increments the delivery attempt counter.
func RecordExportAttempt() {
	globalManager.exportAttempts.Inc()
}

// RecordExportDelivered increments the delivered counter.
func RecordExportDelivered() {
	globalManager.exportDelivered.Inc()
}

// RecordExportRetry increments the retry counter.
func RecordExportRetry() {
	globalManager.exportRetries.Inc()
}

// RecordExportSpill increments the persistent-retry spill counter.
func RecordExportSpill() {
	globalManager.exportSpills.Inc()
}

// RecordIngestRejected records an ingest envelope rejection by error code.
func RecordIngestRejected(code string) {
	globalManager.ingestRejected.WithLabelValues(code).Inc()
}

// Stream metrics functions.

// RecordStreamDrop increments the slow-subscriber shed counter.
func RecordStreamDrop() {
	globalManager.streamDrops.Inc()
}

// HTTP metrics functions.

// RecordHTTPRequest records an HTTP request with its outcome.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// System metrics functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
