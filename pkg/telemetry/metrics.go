package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for graph executions.
type Metrics struct {
	config MetricsConfig

	// Execution metrics
	executionsStarted   *prometheus.CounterVec
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec

	// Node metrics
	nodesExecuted *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec

	// Token metrics
	tokensUsed *prometheus.CounterVec

	// Checkpoint metrics
	checkpointOps      *prometheus.CounterVec
	checkpointDuration *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// State metrics
	snapshotsRecorded *prometheus.CounterVec
	snapshotSizeBytes *prometheus.HistogramVec

	// System metrics
	activeExecutions prometheus.Gauge
	registeredGraphs prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Execution metrics
		executionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_started_total",
				Help:      "Total number of graph executions started",
			},
			[]string{"graph"},
		),
		executionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_completed_total",
				Help:      "Total number of graph executions completed",
			},
			[]string{"graph", "status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of graph executions in seconds",
				Buckets:   buckets,
			},
			[]string{"graph", "status"},
		),

		// Node metrics
		nodesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_executed_total",
				Help:      "Total number of node executions",
			},
			[]string{"graph", "node", "status"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node executions in seconds",
				Buckets:   buckets,
			},
			[]string{"graph", "node"},
		),

		// Token metrics
		tokensUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_used_total",
				Help:      "Total number of tokens consumed",
			},
			[]string{"graph", "node"},
		),

		// Checkpoint metrics
		checkpointOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoint_operations_total",
				Help:      "Total number of checkpoint operations",
			},
			[]string{"operation", "status"},
		),
		checkpointDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "checkpoint_operation_duration_seconds",
				Help:      "Duration of checkpoint operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// State metrics
		snapshotsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_recorded_total",
				Help:      "Total number of state snapshots recorded",
			},
			[]string{"graph"},
		),
		snapshotSizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_size_bytes",
				Help:      "Serialized size of state snapshots in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"graph"},
		),

		// System metrics
		activeExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Current number of running executions",
			},
		),
		registeredGraphs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registered_graphs",
				Help:      "Current number of registered graphs",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.executionsStarted,
		m.executionsCompleted,
		m.executionDuration,
		m.nodesExecuted,
		m.nodeDuration,
		m.tokensUsed,
		m.checkpointOps,
		m.checkpointDuration,
		m.errorsByClass,
		m.errorsByCode,
		m.snapshotsRecorded,
		m.snapshotSizeBytes,
		m.activeExecutions,
		m.registeredGraphs,
	)

	return m, nil
}

// Execution Metrics

// RecordExecutionStarted increments the counter for started executions.
func (m *Metrics) RecordExecutionStarted(graphID string) {
	if m.executionsStarted == nil {
		return
	}
	m.executionsStarted.WithLabelValues(graphID).Inc()
	m.activeExecutions.Inc()
}

// RecordExecutionCompleted records a finished execution with its
// terminal status and duration.
func (m *Metrics) RecordExecutionCompleted(graphID, status string, duration time.Duration) {
	if m.executionsCompleted == nil {
		return
	}
	m.executionsCompleted.WithLabelValues(graphID, status).Inc()
	m.executionDuration.WithLabelValues(graphID, status).Observe(duration.Seconds())
	m.activeExecutions.Dec()
}

// Node Metrics

// RecordNodeExecution records a single node execution.
func (m *Metrics) RecordNodeExecution(graphID, node, status string, duration time.Duration) {
	if m.nodesExecuted == nil {
		return
	}
	m.nodesExecuted.WithLabelValues(graphID, node, status).Inc()
	m.nodeDuration.WithLabelValues(graphID, node).Observe(duration.Seconds())
}

// RecordTokens records token usage attributed to a node.
func (m *Metrics) RecordTokens(graphID, node string, tokens uint64) {
	if m.tokensUsed == nil {
		return
	}
	m.tokensUsed.WithLabelValues(graphID, node).Add(float64(tokens))
}

// Checkpoint Metrics

// RecordCheckpointOp records a checkpoint store operation.
func (m *Metrics) RecordCheckpointOp(operation, status string, duration time.Duration) {
	if m.checkpointOps == nil {
		return
	}
	m.checkpointOps.WithLabelValues(operation, status).Inc()
	m.checkpointDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// State Metrics

// RecordSnapshot records a captured state snapshot and its size.
func (m *Metrics) RecordSnapshot(graphID string, sizeBytes int) {
	if m.snapshotsRecorded == nil {
		return
	}
	m.snapshotsRecorded.WithLabelValues(graphID).Inc()
	m.snapshotSizeBytes.WithLabelValues(graphID).Observe(float64(sizeBytes))
}

// System Metrics

// SetActiveExecutions sets the current number of running executions.
func (m *Metrics) SetActiveExecutions(count float64) {
	if m.activeExecutions == nil {
		return
	}
	m.activeExecutions.Set(count)
}

// SetRegisteredGraphs sets the current number of registered graphs.
func (m *Metrics) SetRegisteredGraphs(count float64) {
	if m.registeredGraphs == nil {
		return
	}
	m.registeredGraphs.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
