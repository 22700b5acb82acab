// Package metrics provides Prometheus metrics for the dasha timeline service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Timeline computation
	timelinesComputed *prometheus.CounterVec
	timelineErrors    *prometheus.CounterVec
	timelineLatency   *prometheus.HistogramVec
	timelinePeriods   *prometheus.HistogramVec
	systemsRegistered prometheus.Gauge
	cacheLookups      *prometheus.CounterVec

	// Batch requests
	batchRequests prometheus.Counter
	batchItems    prometheus.Histogram

	// Worker pool
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerQueueSize         prometheus.Gauge
	workerQueueCapacity     prometheus.Gauge
	workerJobs              prometheus.Counter
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dasha",
		subsystem:        "timeline",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval is how often runtime gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.timelinesComputed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "computed_total",
		Help:        "Timelines computed successfully, by system",
		ConstLabels: labels,
	}, []string{"system"})

	m.timelineErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Timeline computations rejected, by system and error kind",
		ConstLabels: labels,
	}, []string{"system", "kind"})

	m.timelineLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "compute_duration_milliseconds",
		Help:        "Timeline computation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"system"})

	m.timelinePeriods = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "periods",
		Help:        "Number of periods in each computed timeline",
		Buckets:     prometheus.ExponentialBuckets(10, 4, 8),
		ConstLabels: labels,
	}, []string{"system"})

	m.systemsRegistered = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "systems_registered",
		Help:        "Number of period systems available for lookup",
		ConstLabels: labels,
	})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_lookups_total",
		Help:        "Timeline cache lookups by result",
		ConstLabels: labels,
	}, []string{"result"})

	m.batchRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "batch",
		Name:        "requests_total",
		Help:        "Batch timeline requests received",
		ConstLabels: labels,
	})

	m.batchItems = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "batch",
		Name:        "items",
		Help:        "Items per batch request",
		Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 250},
		ConstLabels: labels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "count",
		Help:        "Configured number of pool workers",
		ConstLabels: labels,
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "active_count",
		Help:        "Workers currently running a job",
		ConstLabels: labels,
	})

	m.workerQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "queue_size",
		Help:        "Jobs waiting for a worker",
		ConstLabels: labels,
	})

	m.workerQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "queue_capacity",
		Help:        "Capacity of the job queue",
		ConstLabels: labels,
	})

	m.workerJobs = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "jobs_total",
		Help:        "Jobs run by the pool",
		ConstLabels: labels,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "errors_total",
		Help:        "Jobs that returned an error",
		ConstLabels: labels,
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "processing_latency_milliseconds",
		Help:        "Job processing latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "HTTP requests by endpoint, method and status code",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Heap bytes in use",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutine_count",
		Help:        "Number of live goroutines",
		ConstLabels: labels,
	})
}

// RecordTimelineComputed counts a successful computation and its size.
func RecordTimelineComputed(system string, periods int, latencyMs float64) {
	globalManager.timelinesComputed.WithLabelValues(system).Inc()
	globalManager.timelinePeriods.WithLabelValues(system).Observe(float64(periods))
	globalManager.timelineLatency.WithLabelValues(system).Observe(latencyMs)
}

// RecordTimelineError counts a rejected computation.
func RecordTimelineError(system, kind string) {
	globalManager.timelineErrors.WithLabelValues(system, kind).Inc()
}

// RecordCacheLookup counts a timeline cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// UpdateSystemsRegistered sets the number of registered systems.
func UpdateSystemsRegistered(count int) {
	globalManager.systemsRegistered.Set(float64(count))
}

// RecordBatch counts a batch request and its size.
func RecordBatch(items int) {
	globalManager.batchRequests.Inc()
	globalManager.batchItems.Observe(float64(items))
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerQueue sets the queue depth and capacity.
func UpdateWorkerQueue(size, capacity int) {
	globalManager.workerQueueSize.Set(float64(size))
	globalManager.workerQueueCapacity.Set(float64(capacity))
}

// RecordWorkerJob records one finished job.
func RecordWorkerJob(latencyMs float64, failed bool) {
	globalManager.workerJobs.Inc()
	globalManager.workerProcessingLatency.Observe(latencyMs)
	if failed {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RefreshInterval is the sampling interval of the global manager.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
