package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/events"
	"github.com/vietddude/triage/internal/handling/metrics"
)

// ImpactSource reports the collector's current processing impact. Registered
// by the collector so snapshots carry queue depth and drop rate.
type ImpactSource func() ProcessingImpact

type pendingOp struct {
	op      OperationType
	startAt time.Time
}

// Monitor samples load on a fixed interval and keeps rolling per-operation
// timing windows. All state is guarded by one mutex; sampling never fails.
type Monitor struct {
	cfg Config
	bus *events.Bus
	log *slog.Logger

	mu      sync.Mutex
	probe   Probe
	pending map[string]pendingOp
	windows map[OperationType][]float64
	counts  map[OperationType]int64
	history []Snapshot
	latest  Snapshot
	sampled bool
	impact  ImpactSource

	stopCh  chan struct{}
	stopped sync.Once
}

// NewMonitor creates a monitor. A nil probe defaults to the system probe.
func NewMonitor(cfg Config, bus *events.Bus, probe Probe) *Monitor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultConfig().SampleInterval
	}
	if cfg.MetricsWindow <= 0 {
		cfg.MetricsWindow = DefaultConfig().MetricsWindow
	}
	if cfg.MaxOpSamples <= 0 {
		cfg.MaxOpSamples = DefaultConfig().MaxOpSamples
	}
	if probe == nil {
		probe = NewSystemProbe()
	}
	return &Monitor{
		cfg:     cfg,
		bus:     bus,
		log:     slog.Default().With("component", "perf"),
		probe:   probe,
		pending: make(map[string]pendingOp),
		windows: make(map[OperationType][]float64),
		counts:  make(map[OperationType]int64),
		stopCh:  make(chan struct{}),
	}
}

// SetImpactSource registers the callback that supplies processing impact.
func (m *Monitor) SetImpactSource(src ImpactSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.impact = src
}

// Start runs the sampling loop until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Stop terminates the sampling loop.
func (m *Monitor) Stop() {
	m.stopped.Do(func() { close(m.stopCh) })
}

// StartOperation records the start of a timed operation and returns a token.
// The optional id is folded into the token for traceability.
func (m *Monitor) StartOperation(op OperationType, id string) string {
	token := string(op) + ":" + uuid.New().String()
	if id != "" {
		token = token + ":" + id
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[token] = pendingOp{op: op, startAt: time.Now()}
	return token
}

// EndOperation closes a timed operation and returns its duration in
// milliseconds. Unknown tokens return 0; EndOperation never fails.
func (m *Monitor) EndOperation(token string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[token]
	if !ok {
		return 0
	}
	delete(m.pending, token)

	ms := float64(time.Since(p.startAt)) / float64(time.Millisecond)
	w := append(m.windows[p.op], ms)
	if len(w) > m.cfg.MaxOpSamples {
		w = w[len(w)-m.cfg.MaxOpSamples:]
	}
	m.windows[p.op] = w
	m.counts[p.op]++

	metrics.OperationDuration.WithLabelValues(string(p.op)).Observe(ms / 1000)
	return ms
}

// CurrentMetrics triggers an immediate sample and returns it. It never
// returns stale data.
func (m *Monitor) CurrentMetrics() Snapshot {
	return m.Sample()
}

// Sample reads the probe, derives status and recommended mode, appends to
// history and publishes metrics-collected plus one alert per metric at or
// above its degraded threshold.
func (m *Monitor) Sample() Snapshot {
	load := m.probe.Load()

	m.mu.Lock()

	timings := OperationTimings{
		ClassificationMs: average(m.windows[OpClassification]),
		LoggingMs:        average(m.windows[OpLogging]),
		TelemetryMs:      average(m.windows[OpTelemetry]),
	}
	timings.TotalOverheadMs = (timings.ClassificationMs + timings.LoggingMs + timings.TelemetryMs) / 3

	var impact ProcessingImpact
	if m.impact != nil {
		impact = m.impact()
	}

	status := m.cfg.Thresholds.evaluate(load, timings.TotalOverheadMs)
	snap := Snapshot{
		Timestamp:       time.Now(),
		Timings:         timings,
		Load:            load,
		Impact:          impact,
		Status:          status,
		RecommendedMode: recommendedFor(status),
	}

	m.history = append(m.history, snap)
	if max := m.historyCap(); len(m.history) > max {
		m.history = m.history[len(m.history)-max:]
	}
	m.latest = snap
	m.sampled = true

	alerts := m.cfg.Thresholds.alerts(load, timings.TotalOverheadMs)
	m.mu.Unlock()

	metrics.PerformanceStatus.Set(statusGauge(status))

	if m.bus != nil {
		m.bus.Publish(domain.EventMetricsCollected, snap)
		for _, a := range alerts {
			m.log.Warn("performance alert",
				"metric", a.Metric, "severity", a.Severity,
				"value", a.Value, "threshold", a.Threshold)
			m.bus.Publish(domain.EventPerformanceAlert, a)
		}
	}

	return snap
}

// Status returns the status of the most recent sample (optimal before the
// first sample).
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sampled {
		return StatusOptimal
	}
	return m.latest.Status
}

// CanProcessError gates admission by current status: optimal admits all,
// degraded admits high and critical, critical admits only critical.
func (m *Monitor) CanProcessError(sev domain.Severity) bool {
	switch m.Status() {
	case StatusCritical:
		return sev == domain.SeverityCritical
	case StatusDegraded:
		return sev == domain.SeverityHigh || sev == domain.SeverityCritical
	default:
		return true
	}
}

// Recommendations returns the static status-to-mode mapping with a canned
// action list.
func (m *Monitor) Recommendations() Recommendation {
	switch m.Status() {
	case StatusCritical:
		return Recommendation{
			Mode: RecommendMinimal,
			Actions: []string{
				"switch to minimal collection",
				"drop non-critical errors",
				"defer telemetry export",
			},
			Reasoning: "system load is critical; shed all non-essential error-handling work",
		}
	case StatusDegraded:
		return Recommendation{
			Mode: RecommendReduced,
			Actions: []string{
				"switch to reduced collection",
				"batch error processing",
				"trim stack traces",
			},
			Reasoning: "system load is degraded; reduce per-error detail",
		}
	default:
		return Recommendation{
			Mode:      RecommendFull,
			Actions:   []string{"maintain full collection"},
			Reasoning: "system load is optimal",
		}
	}
}

// History returns a copy of the retained snapshots.
func (m *Monitor) History() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.history...)
}

// OperationCount returns how many operations of the given type completed.
func (m *Monitor) OperationCount(op OperationType) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[op]
}

func (m *Monitor) historyCap() int {
	max := m.cfg.MetricsWindow * 2
	if max > 1000 {
		max = 1000
	}
	return max
}

// evaluate derives status: any metric at or above critical forces critical;
// otherwise any at or above degraded forces degraded.
func (t Thresholds) evaluate(load SystemLoad, overheadMs float64) Status {
	values := []struct {
		v    float64
		tier Tier
	}{
		{load.CPUPercent, t.CPUPercent},
		{load.HeapPercent, t.HeapPercent},
		{load.SchedLagMs, t.SchedLagMs},
		{overheadMs, t.OverheadMs},
	}

	for _, m := range values {
		if m.tier.Critical > 0 && m.v >= m.tier.Critical {
			return StatusCritical
		}
	}
	for _, m := range values {
		if m.tier.Degraded > 0 && m.v >= m.tier.Degraded {
			return StatusDegraded
		}
	}
	return StatusOptimal
}

func (t Thresholds) alerts(load SystemLoad, overheadMs float64) []Alert {
	checks := []struct {
		name           string
		v              float64
		tier           Tier
		impact         string
		recommendation string
	}{
		{"cpu_percent", load.CPUPercent, t.CPUPercent,
			"error handling competes with application work for CPU",
			"reduce collection detail and batch processing"},
		{"heap_percent", load.HeapPercent, t.HeapPercent,
			"retained error detail is pressuring the heap",
			"trim queues and drop telemetry payloads"},
		{"sched_lag_ms", load.SchedLagMs, t.SchedLagMs,
			"timers and background flushes are firing late",
			"lower the error intake rate"},
		{"overhead_ms", overheadMs, t.OverheadMs,
			"per-error handling cost is above budget",
			"switch to a more restrictive collection mode"},
	}

	var out []Alert
	for _, c := range checks {
		if c.tier.Degraded <= 0 || c.v < c.tier.Degraded {
			continue
		}
		sev := AlertWarning
		threshold := c.tier.Degraded
		if c.tier.Critical > 0 && c.v >= c.tier.Critical {
			sev = AlertCritical
			threshold = c.tier.Critical
		}
		out = append(out, Alert{
			Metric:         c.name,
			Severity:       sev,
			Value:          c.v,
			Threshold:      threshold,
			Impact:         c.impact,
			Recommendation: c.recommendation,
		})
	}
	return out
}

func recommendedFor(s Status) RecommendedMode {
	switch s {
	case StatusCritical:
		return RecommendMinimal
	case StatusDegraded:
		return RecommendReduced
	default:
		return RecommendFull
	}
}

func statusGauge(s Status) float64 {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

func average(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
