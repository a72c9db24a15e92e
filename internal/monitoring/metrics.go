package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Engine metrics
	BuildsTotal       prometheus.Counter
	TransformFailures prometheus.Counter
	TokensIssued      prometheus.Counter
	AuditWarnings     prometheus.Counter

	// Execution metrics
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	PolicyViolations  *prometheus.CounterVec
	Timeouts          prometheus.Counter

	// Instance metrics
	InstancesActive prometheus.Gauge
	InstancesTotal  prometheus.Counter

	// Package store metrics
	PackagesInstalled prometheus.Gauge

	// Operation timing (build, transform, audit, install)
	OperationDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector. Metrics register on the
// default prometheus registry, so one collector per process.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsyne_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tsyne_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		BuildsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tsyne_builds_total",
				Help: "Total number of artifacts built",
			},
		),
		TransformFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tsyne_transform_failures_total",
				Help: "Total number of transform failures (unparseable source)",
			},
		),
		TokensIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tsyne_tokens_issued_total",
				Help: "Total number of sandbox tokens issued",
			},
		),
		AuditWarnings: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tsyne_audit_warnings_total",
				Help: "Total number of audit warnings raised",
			},
		),

		Executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsyne_executions_total",
				Help: "Total number of sandbox executions by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tsyne_execution_duration_seconds",
				Help:    "Sandbox execution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		PolicyViolations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsyne_policy_violations_total",
				Help: "Total number of policy violations by capability",
			},
			[]string{"capability"},
		),
		Timeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tsyne_timeouts_total",
				Help: "Total number of executions interrupted at budget",
			},
		),

		InstancesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tsyne_instances_active",
				Help: "Number of running instances",
			},
		),
		InstancesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tsyne_instances_total",
				Help: "Total number of instances launched",
			},
		),

		PackagesInstalled: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tsyne_packages_installed",
				Help: "Number of packages in the store",
			},
		),

		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tsyne_operation_duration_seconds",
				Help:    "Host operation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tsyne_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tsyne_uptime_seconds",
				Help: "Host uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBuild records one artifact build
func (m *Metrics) RecordBuild() {
	m.BuildsTotal.Inc()
}

// RecordTransformFailure records one rejected source
func (m *Metrics) RecordTransformFailure() {
	m.TransformFailures.Inc()
}

// RecordTokenIssued records one minted token
func (m *Metrics) RecordTokenIssued() {
	m.TokensIssued.Inc()
}

// RecordAuditWarnings records warnings from one audit pass
func (m *Metrics) RecordAuditWarnings(count int) {
	m.AuditWarnings.Add(float64(count))
}

// RecordExecution records a finished execution with its outcome
func (m *Metrics) RecordExecution(outcome string, duration time.Duration) {
	m.Executions.WithLabelValues(outcome).Inc()
	m.ExecutionDuration.Observe(duration.Seconds())
}

// RecordPolicyViolation records a violation attributed to a capability
func (m *Metrics) RecordPolicyViolation(capability string) {
	m.PolicyViolations.WithLabelValues(capability).Inc()
}

// RecordTimeout records an execution interrupted at its budget
func (m *Metrics) RecordTimeout() {
	m.Timeouts.Inc()
}

// SetInstancesActive sets the number of running instances
func (m *Metrics) SetInstancesActive(count int) {
	m.InstancesActive.Set(float64(count))
}

// IncInstancesTotal increments the launched-instances counter
func (m *Metrics) IncInstancesTotal() {
	m.InstancesTotal.Inc()
}

// SetPackagesInstalled sets the number of packages in the store
func (m *Metrics) SetPackagesInstalled(count int) {
	m.PackagesInstalled.Set(float64(count))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
