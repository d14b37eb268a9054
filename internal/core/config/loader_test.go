package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/handling/collector"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
logging:
  level: debug
  format: json
monitor:
  sample_interval_ms: 1000
  metrics_window: 100
collector:
  modes:
    full:
      severity_threshold: low
      max_errors_per_second: 200
      processing_delay_ms: 50
recovery:
  plan_ttl_minutes: 10
  max_attempt_history: 100
  auto_execute: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	pc := cfg.Monitor.ToPerf()
	if pc.SampleInterval != time.Second {
		t.Errorf("sample interval = %s, want 1s", pc.SampleInterval)
	}
	if pc.MetricsWindow != 100 {
		t.Errorf("metrics window = %d, want 100", pc.MetricsWindow)
	}
	// Unset thresholds keep the defaults.
	if pc.Thresholds.CPUPercent.Critical != 95 {
		t.Errorf("cpu critical threshold = %v, want default 95", pc.Thresholds.CPUPercent.Critical)
	}

	override, ok := cfg.Collector.Modes["full"]
	if !ok {
		t.Fatal("full mode override missing")
	}
	mc := override.Apply(collector.DefaultConfigs()[collector.ModeFull])
	if mc.SeverityThreshold != domain.SeverityLow {
		t.Errorf("severity threshold = %s, want low", mc.SeverityThreshold)
	}
	if mc.MaxErrorsPerSecond != 200 {
		t.Errorf("max errors per second = %d, want 200", mc.MaxErrorsPerSecond)
	}
	if mc.ProcessingDelay != 50*time.Millisecond {
		t.Errorf("processing delay = %s, want 50ms", mc.ProcessingDelay)
	}
	// Fields the override leaves unset keep their defaults.
	if mc.MaxQueueSize != 1000 || mc.BatchSize != 10 {
		t.Errorf("untouched defaults changed: %+v", mc)
	}

	rc := cfg.Recovery.ToPlanner()
	if rc.PlanTTL != 10*time.Minute {
		t.Errorf("plan ttl = %s, want 10m", rc.PlanTTL)
	}
	if rc.MaxAttemptHistory != 100 {
		t.Errorf("max history = %d, want 100", rc.MaxAttemptHistory)
	}
	if !cfg.Recovery.AutoExecute {
		t.Error("auto_execute not set")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TRIAGE_PORT", "7070")
	cfg, err := Load(writeConfig(t, "server:\n  port: ${TRIAGE_PORT}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070 from env", cfg.Server.Port)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, yaml string
	}{
		{"bad log level", "logging:\n  level: loud\n"},
		{"unknown mode", "collector:\n  modes:\n    turbo:\n      batch_size: 5\n"},
		{"bad severity", "collector:\n  modes:\n    full:\n      severity_threshold: fatal\n"},
		{"malformed yaml", "server: [what\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
