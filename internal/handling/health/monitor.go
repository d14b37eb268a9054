package health

import (
	"sync"
	"time"

	"github.com/vietddude/triage/internal/handling/collector"
	"github.com/vietddude/triage/internal/handling/perf"
	"github.com/vietddude/triage/internal/handling/recovery"
)

// Monitor aggregates health status from the engine's components.
type Monitor struct {
	perfMon   *perf.Monitor
	collector *collector.Collector
	planner   *recovery.Planner

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// checkInterval rate-limits health checks so probing stays cheap.
const checkInterval = 10 * time.Second

// NewMonitor creates a health monitor over the engine components.
func NewMonitor(perfMon *perf.Monitor, c *collector.Collector, planner *recovery.Planner) *Monitor {
	return &Monitor{
		perfMon:   perfMon,
		collector: c,
		planner:   planner,
	}
}

// Check builds a health report. Repeated calls within the check interval
// return the cached report.
func (m *Monitor) Check() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < checkInterval && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	snap := m.perfMon.CurrentMetrics()
	report := Report{
		Status:         statusFor(snap.Status, m.collector.Mode()),
		Performance:    snap,
		CollectionMode: m.collector.Mode(),
		QueueSize:      m.collector.QueueLen(),
		Recovery:       m.planner.Metrics(),
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

// statusFor derives overall health: critical performance or emergency mode is
// critical; anything above full collection is degraded.
func statusFor(ps perf.Status, mode collector.CollectionMode) SystemStatus {
	if ps == perf.StatusCritical || mode == collector.ModeEmergency {
		return StatusCritical
	}
	if ps == perf.StatusDegraded || mode != collector.ModeFull {
		return StatusDegraded
	}
	return StatusHealthy
}
