package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openfroyo/hostsync/pkg/engine"
)

// Metrics holds drift and execution metrics in a private registry. Nothing is
// served over HTTP; the registry is written to a node-exporter textfile.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	driftItems        *prometheus.GaugeVec
	scanErrors        *prometheus.CounterVec
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	runs              *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	lastRun           *prometheus.GaugeVec
}

// NewMetrics creates the metrics collector. A disabled configuration yields a
// collector whose methods do nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}
	namespace := cfg.Namespace

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),

		driftItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "drift_items",
				Help:      "Items per subsystem by drift state (pending, untracked, synced)",
			},
			[]string{"subsystem", "state"},
		),
		scanErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_errors_total",
				Help:      "Subsystem scans or manifest loads that failed",
			},
			[]string{"subsystem"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Executed operations by outcome",
			},
			[]string{"subsystem", "verb", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of executed operations in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"subsystem", "verb"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Executed plans by kind and status",
			},
			[]string{"kind", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of plan executions in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"kind"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last plan execution by kind",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.driftItems,
		m.scanErrors,
		m.operations,
		m.operationDuration,
		m.runs,
		m.runDuration,
		m.lastRun,
	)
	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Registry returns the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordDrift sets the drift gauges of one subsystem.
func (m *Metrics) RecordDrift(subsystem string, counts engine.DriftCounts) {
	if !m.enabled() {
		return
	}
	m.driftItems.WithLabelValues(subsystem, "pending").Set(float64(counts.Pending))
	m.driftItems.WithLabelValues(subsystem, "untracked").Set(float64(counts.Untracked))
	m.driftItems.WithLabelValues(subsystem, "synced").Set(float64(counts.Synced))
}

// RecordScanError counts a failed scan. The subsystem's drift gauges are
// removed so stale values are not exported.
func (m *Metrics) RecordScanError(subsystem string) {
	if !m.enabled() {
		return
	}
	m.scanErrors.WithLabelValues(subsystem).Inc()
	for _, state := range []string{"pending", "untracked", "synced"} {
		m.driftItems.DeleteLabelValues(subsystem, state)
	}
}

// RecordOperation counts an executed operation.
func (m *Metrics) RecordOperation(result engine.OperationResult) {
	if !m.enabled() {
		return
	}
	op := result.Operation
	m.operations.WithLabelValues(op.Subsystem, string(op.Verb), string(result.Status)).Inc()
	if result.Status != engine.OperationStatusSkipped {
		m.operationDuration.WithLabelValues(op.Subsystem, string(op.Verb)).Observe(result.Duration.Seconds())
	}
}

// RecordRun counts a finished plan execution.
func (m *Metrics) RecordRun(kind engine.PlanKind, report *engine.ExecutionReport) {
	if !m.enabled() || report == nil {
		return
	}
	m.runs.WithLabelValues(string(kind), string(report.Status)).Inc()
	m.runDuration.WithLabelValues(string(kind)).Observe(report.CompletedAt.Sub(report.StartedAt).Seconds())
	m.lastRun.WithLabelValues(string(kind)).Set(float64(report.CompletedAt.Unix()))
}

// WriteTextfile writes every metric to the configured textfile. It does nothing
// when metrics are disabled or no textfile is configured.
func (m *Metrics) WriteTextfile() error {
	if !m.enabled() || m.config.Textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(m.config.Textfile, m.registry)
}

// Timer measures elapsed time.
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
