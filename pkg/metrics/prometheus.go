// Package metrics provides Prometheus metrics for the b24stats service.
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

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Remote CRM calls
	remoteRequests        *prometheus.CounterVec
	remoteRequestDuration *prometheus.HistogramVec
	remoteErrors          *prometheus.CounterVec
	remotePages           *prometheus.CounterVec

	// Statistics computations
	computations         *prometheus.CounterVec
	computationDuration  prometheus.Histogram
	computationsInFlight prometheus.Gauge
	coalescedRequests    prometheus.Counter
	employeesReported    prometheus.Gauge
	companiesReported    prometheus.Gauge
	dealsReported        prometheus.Gauge
	emptyEmployeeResults prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "b24stats",
		subsystem:        "",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// RefreshInterval is how often process gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.remoteRequests = auto.NewCounterVec(
		m.counterOpts("remote_requests_total", "Remote CRM calls by method and outcome"),
		[]string{"method", "outcome"},
	)
	m.remoteRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("remote_request_duration_milliseconds", "Remote CRM call latency in milliseconds, all pages included"),
		[]string{"method"},
	)
	m.remoteErrors = auto.NewCounterVec(
		m.counterOpts("remote_errors_total", "Remote CRM failures by method and error kind"),
		[]string{"method", "kind"},
	)
	m.remotePages = auto.NewCounterVec(
		m.counterOpts("remote_pages_total", "Result pages fetched from the remote CRM"),
		[]string{"method"},
	)

	m.computations = auto.NewCounterVec(
		m.counterOpts("statistics_computations_total", "Statistics computations by outcome"),
		[]string{"outcome"},
	)
	m.computationDuration = auto.NewHistogram(
		m.histogramOpts("statistics_duration_milliseconds", "End-to-end statistics computation latency (fetch and aggregate)"),
	)
	m.computationsInFlight = auto.NewGauge(
		m.gaugeOpts("statistics_in_flight", "Statistics computations currently running"),
	)
	m.coalescedRequests = auto.NewCounter(
		m.counterOpts("statistics_coalesced_total", "Requests that joined an identical computation already in flight"),
	)
	m.employeesReported = auto.NewGauge(
		m.gaugeOpts("employees_reported", "Employees in the most recent statistics report"),
	)
	m.companiesReported = auto.NewGauge(
		m.gaugeOpts("companies_reported", "Current-period companies in the most recent statistics report"),
	)
	m.dealsReported = auto.NewGauge(
		m.gaugeOpts("deals_reported", "Current-period deals in the most recent statistics report"),
	)
	m.emptyEmployeeResults = auto.NewCounter(
		m.counterOpts("empty_employee_results_total", "Computations where the remote CRM returned no employees"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("http_errors_total", "HTTP error responses by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_bytes", "Heap bytes allocated by the process"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutines", "Number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_milliseconds",
		Help:        "Average GC pause in milliseconds",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
		ConstLabels: m.constLabels,
	})
}

// Remote CRM Functions.

// RecordRemoteRequest counts one remote call and its latency.
func (m *Manager) RecordRemoteRequest(method, outcome string, latencyMs float64) {
	m.remoteRequests.WithLabelValues(method, outcome).Inc()
	m.remoteRequestDuration.WithLabelValues(method).Observe(latencyMs)
}

// RecordRemoteError counts a remote failure of the given kind.
func (m *Manager) RecordRemoteError(method, kind string) {
	m.remoteErrors.WithLabelValues(method, kind).Inc()
}

// RecordRemotePage counts one fetched result page.
func (m *Manager) RecordRemotePage(method string) {
	m.remotePages.WithLabelValues(method).Inc()
}

// Statistics Functions.

// RecordComputation counts a finished computation and its latency.
func (m *Manager) RecordComputation(outcome string, latencyMs float64) {
	m.computations.WithLabelValues(outcome).Inc()
	m.computationDuration.Observe(latencyMs)
}

// ComputationStarted increments the in-flight gauge.
func (m *Manager) ComputationStarted() { m.computationsInFlight.Inc() }

// ComputationFinished decrements the in-flight gauge.
func (m *Manager) ComputationFinished() { m.computationsInFlight.Dec() }

// RecordCoalesced counts a request served by a shared computation.
func (m *Manager) RecordCoalesced() { m.coalescedRequests.Inc() }

// UpdateReportSize publishes the sizes of the latest report inputs.
func (m *Manager) UpdateReportSize(employees, companies, deals int) {
	m.employeesReported.Set(float64(employees))
	m.companiesReported.Set(float64(companies))
	m.dealsReported.Set(float64(deals))
}

// RecordEmptyEmployees counts a computation that saw zero employees.
func (m *Manager) RecordEmptyEmployees() { m.emptyEmployeeResults.Inc() }

// HTTP Functions.

// RecordHTTPRequest counts an HTTP request and its latency.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) { m.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func (m *Manager) UpdateSystemGoroutineCount(count int) {
	m.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func (m *Manager) RecordSystemGCPauseTime(pauseMs float64) { m.systemGCPauseTime.Observe(pauseMs) }

// Package-level helpers delegate to the global manager.

// Default returns the global manager.
func Default() *Manager { return globalManager }

// RecordRemoteRequest records on the global manager.
func RecordRemoteRequest(method, outcome string, latencyMs float64) {
	globalManager.RecordRemoteRequest(method, outcome, latencyMs)
}

// RecordRemoteError records on the global manager.
func RecordRemoteError(method, kind string) { globalManager.RecordRemoteError(method, kind) }

// RecordRemotePage records on the global manager.
func RecordRemotePage(method string) { globalManager.RecordRemotePage(method) }

// RecordComputation records on the global manager.
func RecordComputation(outcome string, latencyMs float64) {
	globalManager.RecordComputation(outcome, latencyMs)
}

// ComputationStarted records on the global manager.
func ComputationStarted() { globalManager.ComputationStarted() }

// ComputationFinished records on the global manager.
func ComputationFinished() { globalManager.ComputationFinished() }

// RecordCoalesced records on the global manager.
func RecordCoalesced() { globalManager.RecordCoalesced() }

// UpdateReportSize records on the global manager.
func UpdateReportSize(employees, companies, deals int) {
	globalManager.UpdateReportSize(employees, companies, deals)
}

// RecordEmptyEmployees records on the global manager.
func RecordEmptyEmployees() { globalManager.RecordEmptyEmployees() }

// RecordHTTPRequest records on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordErrorByEndpoint records on the global manager.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// UpdateSystemMemoryUsage records on the global manager.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }

// UpdateSystemGoroutineCount records on the global manager.
func UpdateSystemGoroutineCount(count int) { globalManager.UpdateSystemGoroutineCount(count) }

// RecordSystemGCPauseTime records on the global manager.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.RecordSystemGCPauseTime(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
