// Package metrics provides Prometheus metrics collection for the
// orchestrator control plane and execution engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec

	StepsExecutedTotal   *prometheus.CounterVec
	StepDuration         *prometheus.HistogramVec
	StepRetriesTotal     *prometheus.CounterVec
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	VerificationsTotal   *prometheus.CounterVec
	ManualInputsPending  prometheus.Gauge
	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	ActiveRuns           prometheus.Gauge

	ServiceInfo *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// which may be nil to skip registration (used in tests).
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),
		StepsExecutedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "step_executions_total",
				Help: "Total number of step executions by terminal status",
			},
			[]string{"status"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "step_duration_seconds",
				Help:    "Step execution duration in seconds, including retries",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step_name"},
		),
		StepRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "step_retries_total",
				Help: "Total number of step retry attempts",
			},
			[]string{"step_name"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "response_cache_hits_total",
				Help: "Total number of response cache hits",
			},
			[]string{"step_name"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "response_cache_misses_total",
				Help: "Total number of response cache misses",
			},
			[]string{"step_name"},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifications_total",
				Help: "Total number of verification evaluations by connector and outcome",
			},
			[]string{"connector", "passed"},
		),
		ManualInputsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "manual_inputs_pending",
				Help: "Current number of runs suspended awaiting manual input",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runs_total",
				Help: "Total number of runs by terminal status",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "run_duration_seconds",
				Help:    "Run duration in seconds from start to terminal status",
				Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_runs",
				Help: "Current number of runs in a non-terminal state",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.StepsExecutedTotal,
			m.StepDuration,
			m.StepRetriesTotal,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.VerificationsTotal,
			m.ManualInputsPending,
			m.RunsTotal,
			m.RunDuration,
			m.ActiveRuns,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0").Set(1)

	return m
}

// RecordHTTPRequest records a completed control-plane HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error by type and operation.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordStep records a step's terminal status and total duration.
func (m *Metrics) RecordStep(stepName, status string, duration time.Duration) {
	m.StepsExecutedTotal.WithLabelValues(status).Inc()
	m.StepDuration.WithLabelValues(stepName).Observe(duration.Seconds())
}

// RecordRetry records a single retry attempt for a step.
func (m *Metrics) RecordRetry(stepName string) {
	m.StepRetriesTotal.WithLabelValues(stepName).Inc()
}

// RecordCacheHit records a response cache hit for a step.
func (m *Metrics) RecordCacheHit(stepName string) {
	m.CacheHitsTotal.WithLabelValues(stepName).Inc()
}

// RecordCacheMiss records a response cache miss for a step.
func (m *Metrics) RecordCacheMiss(stepName string) {
	m.CacheMissesTotal.WithLabelValues(stepName).Inc()
}

// RecordVerification records a verification outcome for a connector.
func (m *Metrics) RecordVerification(connector string, passed bool) {
	m.VerificationsTotal.WithLabelValues(connector, boolLabel(passed)).Inc()
}

// SetManualInputsPending sets the gauge of runs suspended on manual input.
func (m *Metrics) SetManualInputsPending(count int) {
	m.ManualInputsPending.Set(float64(count))
}

// RecordRun records a run's terminal status and duration.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetActiveRuns sets the gauge of runs currently in a non-terminal state.
func (m *Metrics) SetActiveRuns(count int) {
	m.ActiveRuns.Set(float64(count))
}

// IncrementInFlight increments the in-flight HTTP request gauge.
func (m *Metrics) IncrementInFlight() { m.RequestsInFlight.Inc() }

// DecrementInFlight decrements the in-flight HTTP request gauge.
func (m *Metrics) DecrementInFlight() { m.RequestsInFlight.Dec() }

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the process-wide global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the process-wide global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
