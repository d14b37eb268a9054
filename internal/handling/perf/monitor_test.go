package perf

import (
	"sync"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/events"
)

func newTestMonitor(load SystemLoad, bus *events.Bus) *Monitor {
	return NewMonitor(DefaultConfig(), bus, NewStaticProbe(load))
}

func TestCanProcessError(t *testing.T) {
	tests := []struct {
		name     string
		load     SystemLoad
		severity domain.Severity
		want     bool
	}{
		{"optimal admits info", SystemLoad{}, domain.SeverityInfo, true},
		{"optimal admits critical", SystemLoad{}, domain.SeverityCritical, true},
		{"degraded rejects info", SystemLoad{CPUPercent: 86}, domain.SeverityInfo, false},
		{"degraded rejects medium", SystemLoad{CPUPercent: 86}, domain.SeverityMedium, false},
		{"degraded admits high", SystemLoad{CPUPercent: 86}, domain.SeverityHigh, true},
		{"degraded admits critical", SystemLoad{CPUPercent: 86}, domain.SeverityCritical, true},
		{"critical rejects high", SystemLoad{CPUPercent: 96}, domain.SeverityHigh, false},
		{"critical admits critical", SystemLoad{CPUPercent: 96}, domain.SeverityCritical, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(tt.load, nil)
			m.Sample()
			if got := m.CanProcessError(tt.severity); got != tt.want {
				t.Errorf("CanProcessError(%s) = %v, want %v", tt.severity, got, tt.want)
			}
		})
	}
}

func TestStatusBeforeFirstSampleIsOptimal(t *testing.T) {
	m := newTestMonitor(SystemLoad{CPUPercent: 99}, nil)
	if got := m.Status(); got != StatusOptimal {
		t.Errorf("Status() before sampling = %q, want optimal", got)
	}
}

func TestStatusEvaluation(t *testing.T) {
	tests := []struct {
		name string
		load SystemLoad
		want Status
	}{
		{"all clear", SystemLoad{CPUPercent: 10, HeapPercent: 20}, StatusOptimal},
		{"cpu degraded", SystemLoad{CPUPercent: 85}, StatusDegraded},
		{"cpu critical", SystemLoad{CPUPercent: 96}, StatusCritical},
		{"heap critical wins over cpu degraded", SystemLoad{CPUPercent: 86, HeapPercent: 95}, StatusCritical},
		{"sched lag degraded", SystemLoad{SchedLagMs: 60}, StatusDegraded},
		{"sched lag critical", SystemLoad{SchedLagMs: 150}, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(tt.load, nil)
			snap := m.Sample()
			if snap.Status != tt.want {
				t.Errorf("status = %q, want %q", snap.Status, tt.want)
			}
		})
	}
}

func TestCriticalCPUSampleEmitsCriticalAlertAndMinimalRecommendation(t *testing.T) {
	bus := events.NewBus()

	var alerts []Alert
	bus.Subscribe(domain.EventPerformanceAlert, func(ev domain.Event) {
		if a, ok := ev.Payload.(Alert); ok {
			alerts = append(alerts, a)
		}
	})
	var snaps []Snapshot
	bus.Subscribe(domain.EventMetricsCollected, func(ev domain.Event) {
		if s, ok := ev.Payload.(Snapshot); ok {
			snaps = append(snaps, s)
		}
	})

	m := newTestMonitor(SystemLoad{CPUPercent: 96}, bus)
	snap := m.Sample()

	if snap.Status != StatusCritical {
		t.Fatalf("status = %q, want critical", snap.Status)
	}
	if snap.RecommendedMode != RecommendMinimal {
		t.Errorf("recommended mode = %q, want minimal", snap.RecommendedMode)
	}
	if len(snaps) != 1 {
		t.Errorf("expected 1 metrics-collected event, got %d", len(snaps))
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Metric != "cpu_percent" || alerts[0].Severity != AlertCritical {
		t.Errorf("unexpected alert %+v", alerts[0])
	}
	if alerts[0].Value != 96 {
		t.Errorf("alert value = %v, want 96", alerts[0].Value)
	}
}

func TestDegradedMetricEmitsWarningAlert(t *testing.T) {
	bus := events.NewBus()
	var alerts []Alert
	bus.Subscribe(domain.EventPerformanceAlert, func(ev domain.Event) {
		alerts = append(alerts, ev.Payload.(Alert))
	})

	m := newTestMonitor(SystemLoad{HeapPercent: 88}, bus)
	m.Sample()

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Severity != AlertWarning {
		t.Errorf("alert severity = %q, want warning", alerts[0].Severity)
	}
}

func TestOperationTiming(t *testing.T) {
	m := newTestMonitor(SystemLoad{}, nil)

	token := m.StartOperation(OpClassification, "err-1")
	time.Sleep(2 * time.Millisecond)
	ms := m.EndOperation(token)

	if ms <= 0 {
		t.Fatalf("expected positive duration, got %v", ms)
	}
	if got := m.OperationCount(OpClassification); got != 1 {
		t.Errorf("operation count = %d, want 1", got)
	}

	// Ending twice returns 0 and never fails.
	if again := m.EndOperation(token); again != 0 {
		t.Errorf("second EndOperation = %v, want 0", again)
	}
	if unknown := m.EndOperation("bogus"); unknown != 0 {
		t.Errorf("unknown token EndOperation = %v, want 0", unknown)
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		load SystemLoad
		want RecommendedMode
	}{
		{SystemLoad{}, RecommendFull},
		{SystemLoad{CPUPercent: 86}, RecommendReduced},
		{SystemLoad{CPUPercent: 96}, RecommendMinimal},
	}

	for _, tt := range tests {
		m := newTestMonitor(tt.load, nil)
		m.Sample()
		rec := m.Recommendations()
		if rec.Mode != tt.want {
			t.Errorf("load %+v: mode = %q, want %q", tt.load, rec.Mode, tt.want)
		}
		if len(rec.Actions) == 0 || rec.Reasoning == "" {
			t.Errorf("load %+v: expected actions and reasoning", tt.load)
		}
	}
}

func TestHistoryTrimming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsWindow = 3
	m := NewMonitor(cfg, nil, NewStaticProbe(SystemLoad{}))

	for i := 0; i < 10; i++ {
		m.Sample()
	}

	if got := len(m.History()); got != 6 {
		t.Errorf("history length = %d, want 6 (2x window)", got)
	}
}

func TestConcurrentSampling(t *testing.T) {
	// Sample runs from the ticker loop and from every CurrentMetrics call,
	// so the default load reader must tolerate concurrent use.
	m := NewMonitor(DefaultConfig(), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Sample()
			}
		}()
	}
	wg.Wait()

	if got := len(m.History()); got != 200 {
		t.Errorf("history length = %d, want 200", got)
	}
}

func TestGCPressureScale(t *testing.T) {
	tests := []struct {
		fraction float64
		want     float64
	}{
		{0, 0},
		{0.01, 1},
		{0.25, 25},
		{1, 100},
		{1.5, 100},
		{-0.1, 0},
	}

	for _, tt := range tests {
		if got := gcPressure(tt.fraction); got != tt.want {
			t.Errorf("gcPressure(%v) = %v, want %v", tt.fraction, got, tt.want)
		}
	}
}

func TestCurrentMetricsSamplesImmediately(t *testing.T) {
	m := newTestMonitor(SystemLoad{CPUPercent: 96}, nil)
	snap := m.CurrentMetrics()
	if snap.Status != StatusCritical {
		t.Errorf("CurrentMetrics did not trigger a fresh sample: status %q", snap.Status)
	}
	if len(m.History()) != 1 {
		t.Errorf("expected the sample to be retained, history=%d", len(m.History()))
	}
}
