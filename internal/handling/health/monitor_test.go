package health

import (
	"testing"

	"github.com/vietddude/triage/internal/handling/collector"
	"github.com/vietddude/triage/internal/handling/perf"
	"github.com/vietddude/triage/internal/handling/recovery"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		perf perf.Status
		mode collector.CollectionMode
		want SystemStatus
	}{
		{"all clear", perf.StatusOptimal, collector.ModeFull, StatusHealthy},
		{"degraded performance", perf.StatusDegraded, collector.ModeFull, StatusDegraded},
		{"restricted mode", perf.StatusOptimal, collector.ModeReduced, StatusDegraded},
		{"critical performance", perf.StatusCritical, collector.ModeFull, StatusCritical},
		{"emergency mode", perf.StatusOptimal, collector.ModeEmergency, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.perf, tt.mode); got != tt.want {
				t.Errorf("statusFor(%s, %s) = %s, want %s", tt.perf, tt.mode, got, tt.want)
			}
		})
	}
}

func TestCheckCachesWithinInterval(t *testing.T) {
	perfMon := perf.NewMonitor(perf.DefaultConfig(), nil, perf.NewStaticProbe(perf.SystemLoad{}))
	coll := collector.New(perfMon, nil, nil)
	planner := recovery.NewPlanner(recovery.DefaultConfig(), nil)
	m := NewMonitor(perfMon, coll, planner)

	first := m.Check()
	if first.Status != StatusHealthy {
		t.Fatalf("status = %s, want healthy", first.Status)
	}

	// A mode change inside the check interval is not reflected yet.
	coll.SetMode(collector.ModeEmergency, "test")
	second := m.Check()
	if second.CollectionMode != first.CollectionMode {
		t.Errorf("cached report changed: %s -> %s", first.CollectionMode, second.CollectionMode)
	}
}
