// Package metrics provides Prometheus metrics for the rocatrun game service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Game Metrics
	charactersCreated   prometheus.Counter
	nicknameChecks      *prometheus.CounterVec
	nicknameRejections  *prometheus.CounterVec
	experienceGranted   prometheus.Counter
	levelUps            prometheus.Counter
	levelsGained        prometheus.Histogram
	progressionFailures *prometheus.CounterVec
	rankingQueries      prometheus.Counter
	rankedCharacters    prometheus.Gauge
	inventorySales      prometheus.Counter
	coinsEarned         prometheus.Counter
	imagesReplaced      prometheus.Counter

	// Game Result Pipeline
	resultsAccepted   prometheus.Counter
	resultsDuplicate  prometheus.Counter
	resultsApplied    prometheus.Counter
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueueError *prometheus.CounterVec
	workerCount       prometheus.Gauge
	workerLatency     prometheus.Histogram
	workerErrors      prometheus.Counter

	// Store Metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rocatrun",
		subsystem:        "game",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.charactersCreated = m.counter("characters_created_total", "Total number of game characters created")
	m.nicknameChecks = m.counterVec("nickname_checks_total", "Nickname duplicate checks by outcome", "outcome")
	m.nicknameRejections = m.counterVec("nickname_rejections_total", "Nicknames rejected by reason code", "code")
	m.experienceGranted = m.counter("experience_granted_total", "Total experience points granted to characters")
	m.levelUps = m.counter("level_ups_total", "Number of experience grants that raised a character level")
	m.levelsGained = m.histogram("levels_gained", "Levels gained by a single experience grant that leveled up",
		[]float64{1, 2, 3, 5, 10, 20, 50})
	m.progressionFailures = m.counterVec("progression_failures_total", "Experience grants that failed by reason", "reason")
	m.rankingQueries = m.counter("ranking_queries_total", "Number of ranking list queries")
	m.rankedCharacters = m.gauge("ranked_characters", "Number of characters tracked in the ranking index")
	m.inventorySales = m.counter("inventory_items_sold_total", "Number of inventory items sold")
	m.coinsEarned = m.counter("coins_earned_total", "Coins credited by inventory sales")
	m.imagesReplaced = m.counter("character_images_replaced_total", "Character image updates")

	m.resultsAccepted = m.counter("game_results_accepted_total", "Game results accepted onto the queue")
	m.resultsDuplicate = m.counter("game_results_duplicate_total", "Game results dropped as duplicates")
	m.resultsApplied = m.counter("game_results_applied_total", "Game results applied by workers")
	m.queueSize = m.gauge("queue_size", "Current number of queued game results")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued game results")
	m.queueEnqueueError = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Number of game result workers")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time to apply one game result", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Game results that failed to apply")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation errors", "operation")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration",
		"endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordCharacterCreated increments the created characters counter.
func RecordCharacterCreated() { globalManager.charactersCreated.Inc() }

// RecordNicknameCheck records a duplicate check outcome ("free" or "taken").
func RecordNicknameCheck(outcome string) { globalManager.nicknameChecks.WithLabelValues(outcome).Inc() }

// RecordNicknameRejected records a rejected nickname by its error code.
func RecordNicknameRejected(code string) { globalManager.nicknameRejections.WithLabelValues(code).Inc() }

// RecordExperienceGranted adds exp to the granted experience counter.
func RecordExperienceGranted(exp int) {
	if exp > 0 {
		globalManager.experienceGranted.Add(float64(exp))
	}
}

// RecordLevelUp records a grant that moved a character from oldLevel to newLevel.
func RecordLevelUp(oldLevel, newLevel int) {
	if newLevel <= oldLevel {
		return
	}
	globalManager.levelUps.Inc()
	globalManager.levelsGained.Observe(float64(newLevel - oldLevel))
}

// RecordProgressionFailure records a failed grant by reason.
func RecordProgressionFailure(reason string) {
	globalManager.progressionFailures.WithLabelValues(reason).Inc()
}

// RecordRankingQuery increments the ranking queries counter.
func RecordRankingQuery() { globalManager.rankingQueries.Inc() }

// UpdateRankedCharacters sets the ranking index size.
func UpdateRankedCharacters(n int) { globalManager.rankedCharacters.Set(float64(n)) }

// RecordInventorySale records a sale of items for coins.
func RecordInventorySale(items, coins int) {
	globalManager.inventorySales.Add(float64(items))
	globalManager.coinsEarned.Add(float64(coins))
}

// RecordImageReplaced increments the image update counter.
func RecordImageReplaced() { globalManager.imagesReplaced.Inc() }

// RecordResultAccepted increments the accepted game results counter.
func RecordResultAccepted() { globalManager.resultsAccepted.Inc() }

// RecordResultDuplicate increments the duplicate game results counter.
func RecordResultDuplicate() { globalManager.resultsDuplicate.Inc() }

// RecordResultApplied increments the applied game results counter.
func RecordResultApplied() { globalManager.resultsApplied.Inc() }

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueueError records a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueError.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes the time spent on one game result.
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordStoreLatency observes the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError increments the error counter of a store operation.
func RecordStoreError(operation string) { globalManager.storeErrors.WithLabelValues(operation).Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry holding the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
