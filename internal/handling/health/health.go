// Package health provides system health monitoring and status reporting.
package health

import (
	"github.com/vietddude/triage/internal/handling/collector"
	"github.com/vietddude/triage/internal/handling/perf"
	"github.com/vietddude/triage/internal/handling/recovery"
)

// SystemStatus represents the overall health state of the engine.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full engine health report.
type Report struct {
	Status         SystemStatus             `json:"status"`
	Performance    perf.Snapshot            `json:"performance"`
	CollectionMode collector.CollectionMode `json:"collection_mode"`
	QueueSize      int                      `json:"queue_size"`
	Recovery       recovery.Metrics         `json:"recovery"`
}
