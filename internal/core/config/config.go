package config

import (
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/handling/collector"
	"github.com/vietddude/triage/internal/handling/perf"
	"github.com/vietddude/triage/internal/handling/recovery"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Collector CollectorConfig `yaml:"collector"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MonitorConfig holds performance monitor settings. Durations are plain
// millisecond integers in the YAML.
type MonitorConfig struct {
	SampleIntervalMs int             `yaml:"sample_interval_ms"`
	MetricsWindow    int             `yaml:"metrics_window"`
	Thresholds       perf.Thresholds `yaml:"thresholds"`
}

// ToPerf converts to the monitor's config type.
func (m MonitorConfig) ToPerf() perf.Config {
	cfg := perf.DefaultConfig()
	if m.SampleIntervalMs > 0 {
		cfg.SampleInterval = time.Duration(m.SampleIntervalMs) * time.Millisecond
	}
	if m.MetricsWindow > 0 {
		cfg.MetricsWindow = m.MetricsWindow
	}
	if m.Thresholds != (perf.Thresholds{}) {
		cfg.Thresholds = m.Thresholds
	}
	return cfg
}

// ModeOverride selectively overrides one collection mode's defaults.
type ModeOverride struct {
	SeverityThreshold  string `yaml:"severity_threshold"`
	MaxErrorsPerSecond *int   `yaml:"max_errors_per_second"`
	MaxQueueSize       *int   `yaml:"max_queue_size"`
	BatchSize          *int   `yaml:"batch_size"`
	ProcessingDelayMs  *int   `yaml:"processing_delay_ms"`
}

// Apply overlays the override onto a base mode config.
func (o ModeOverride) Apply(base collector.ModeConfig) collector.ModeConfig {
	if o.SeverityThreshold != "" {
		base.SeverityThreshold = domain.Severity(o.SeverityThreshold)
	}
	if o.MaxErrorsPerSecond != nil {
		base.MaxErrorsPerSecond = *o.MaxErrorsPerSecond
	}
	if o.MaxQueueSize != nil {
		base.MaxQueueSize = *o.MaxQueueSize
	}
	if o.BatchSize != nil {
		base.BatchSize = *o.BatchSize
	}
	if o.ProcessingDelayMs != nil {
		base.ProcessingDelay = time.Duration(*o.ProcessingDelayMs) * time.Millisecond
	}
	return base
}

// CollectorConfig holds per-mode overrides keyed by mode name.
type CollectorConfig struct {
	Modes map[string]ModeOverride `yaml:"modes"`
}

// RecoveryConfig holds recovery planner settings.
type RecoveryConfig struct {
	PlanTTLMinutes    int  `yaml:"plan_ttl_minutes"`
	MaxAttemptHistory int  `yaml:"max_attempt_history"`
	AutoExecute       bool `yaml:"auto_execute"`
}

// ToPlanner converts to the planner's config type.
func (r RecoveryConfig) ToPlanner() recovery.Config {
	cfg := recovery.DefaultConfig()
	if r.PlanTTLMinutes > 0 {
		cfg.PlanTTL = time.Duration(r.PlanTTLMinutes) * time.Minute
	}
	if r.MaxAttemptHistory > 0 {
		cfg.MaxAttemptHistory = r.MaxAttemptHistory
	}
	return cfg
}
