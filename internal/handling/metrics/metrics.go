package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsProcessed tracks admitted errors per collection mode
	ErrorsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_errors_processed_total",
			Help: "Total number of errors admitted for processing",
		},
		[]string{"mode", "severity"},
	)

	// ErrorsRejected tracks rejected errors per reason
	ErrorsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_errors_rejected_total",
			Help: "Total number of errors rejected at admission",
		},
		[]string{"mode", "reason"},
	)

	// QueueSize tracks the current collector queue depth
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_queue_size",
			Help: "Current number of queued errors",
		},
	)

	// QueueOverflows tracks overflow evictions
	QueueOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_queue_overflow_total",
			Help: "Total number of queue overflow evictions",
		},
	)

	// ModeTransitions tracks collection mode changes
	ModeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_mode_transitions_total",
			Help: "Total number of collection mode transitions",
		},
		[]string{"from", "to"},
	)

	// PerformanceStatus exposes the current status (0=optimal 1=degraded 2=critical)
	PerformanceStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_performance_status",
			Help: "Current performance status (0=optimal, 1=degraded, 2=critical)",
		},
	)

	// OperationDuration tracks per-operation handling latency
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_operation_duration_seconds",
			Help:    "Error-handling operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RecoveryAttempts tracks executed recovery actions by type and outcome
	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_recovery_attempts_total",
			Help: "Total number of executed recovery actions",
		},
		[]string{"action_type", "outcome"},
	)

	// PlansGenerated tracks generated recovery plans
	PlansGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_recovery_plans_total",
			Help: "Total number of generated recovery plans",
		},
	)
)
