// Package perf samples system and process load and times error-handling
// operations. It is the telemetry source the adaptive collector reacts to.
//
// This package contains:
//   - Monitor: periodic sampler with per-operation rolling timing windows
//   - Snapshot: one immutable sample of load, timings and processing impact
//   - Thresholds: two-tier (degraded/critical) limits per tracked metric
package perf

import "time"

// OperationType identifies a timed error-handling operation.
type OperationType string

const (
	OpClassification OperationType = "classification"
	OpLogging        OperationType = "logging"
	OpTelemetry      OperationType = "telemetry"
)

// Status summarizes current system load.
type Status string

const (
	StatusOptimal  Status = "optimal"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// RecommendedMode is the collection mode the monitor suggests for the
// current status.
type RecommendedMode string

const (
	RecommendFull    RecommendedMode = "full"
	RecommendReduced RecommendedMode = "reduced"
	RecommendMinimal RecommendedMode = "minimal"
)

// OperationTimings holds per-operation-type average durations.
type OperationTimings struct {
	ClassificationMs float64 `json:"classification_ms"`
	LoggingMs        float64 `json:"logging_ms"`
	TelemetryMs      float64 `json:"telemetry_ms"`
	TotalOverheadMs  float64 `json:"total_overhead_ms"`
}

// SystemLoad holds sampled process/system load figures.
type SystemLoad struct {
	CPUPercent  float64 `json:"cpu_percent"`
	HeapPercent float64 `json:"heap_percent"`
	HeapMB      float64 `json:"heap_mb"`
	SchedLagMs  float64 `json:"sched_lag_ms"`
	GCPressure  float64 `json:"gc_pressure"` // 0-100
}

// ProcessingImpact describes how error processing itself is faring.
type ProcessingImpact struct {
	QueueSize         int     `json:"queue_size"`
	ProcessingDelayMs float64 `json:"processing_delay_ms"`
	DropRate          float64 `json:"drop_rate"`
}

// Snapshot is one immutable performance sample.
type Snapshot struct {
	Timestamp       time.Time        `json:"timestamp"`
	Timings         OperationTimings `json:"timings"`
	Load            SystemLoad       `json:"load"`
	Impact          ProcessingImpact `json:"impact"`
	Status          Status           `json:"status"`
	RecommendedMode RecommendedMode  `json:"recommended_mode"`
}

// AlertSeverity grades a performance alert.
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Alert reports a single metric at or above its degraded threshold.
type Alert struct {
	Metric         string        `json:"metric"`
	Severity       AlertSeverity `json:"severity"`
	Value          float64       `json:"value"`
	Threshold      float64       `json:"threshold"`
	Impact         string        `json:"impact"`
	Recommendation string        `json:"recommendation"`
}

// Tier holds the warning/degraded/critical limits for one metric.
type Tier struct {
	Warning  float64 `yaml:"warning"`
	Degraded float64 `yaml:"degraded"`
	Critical float64 `yaml:"critical"`
}

// Thresholds holds the per-metric limits used to derive Status.
type Thresholds struct {
	CPUPercent  Tier `yaml:"cpu_percent"`  // default 70/85/95
	HeapPercent Tier `yaml:"heap_percent"` // default 70/85/95
	SchedLagMs  Tier `yaml:"sched_lag_ms"` // default 10/50/100
	OverheadMs  Tier `yaml:"overhead_ms"`  // default 5/15/30 per error
}

// Config holds monitor configuration.
type Config struct {
	SampleInterval time.Duration
	MetricsWindow  int // snapshot history window (trimmed beyond 2x)
	MaxOpSamples   int // rolling timing samples kept per operation type
	Thresholds     Thresholds
}

// DefaultConfig returns the documented monitor defaults.
func DefaultConfig() Config {
	return Config{
		SampleInterval: 5 * time.Second,
		MetricsWindow:  500,
		MaxOpSamples:   1000,
		Thresholds: Thresholds{
			CPUPercent:  Tier{Warning: 70, Degraded: 85, Critical: 95},
			HeapPercent: Tier{Warning: 70, Degraded: 85, Critical: 95},
			SchedLagMs:  Tier{Warning: 10, Degraded: 50, Critical: 100},
			OverheadMs:  Tier{Warning: 5, Degraded: 15, Critical: 30},
		},
	}
}

// Recommendation maps the current status to a collection mode and actions.
type Recommendation struct {
	Mode      RecommendedMode `json:"mode"`
	Actions   []string        `json:"actions"`
	Reasoning string          `json:"reasoning"`
}
