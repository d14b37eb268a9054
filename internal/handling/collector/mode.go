package collector

import (
	"fmt"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

// CollectionMode is the active verbosity/throughput policy, ordered by
// increasing restrictiveness.
type CollectionMode string

const (
	ModeFull      CollectionMode = "full"
	ModeReduced   CollectionMode = "reduced"
	ModeMinimal   CollectionMode = "minimal"
	ModeEmergency CollectionMode = "emergency"
)

var modeRank = map[CollectionMode]int{
	ModeFull:      0,
	ModeReduced:   1,
	ModeMinimal:   2,
	ModeEmergency: 3,
}

// Rank returns the ordinal restrictiveness (full=0 .. emergency=3).
func (m CollectionMode) Rank() int {
	if r, ok := modeRank[m]; ok {
		return r
	}
	return -1
}

// Valid reports whether m is a known mode.
func (m CollectionMode) Valid() bool {
	_, ok := modeRank[m]
	return ok
}

// StorageMode tells the downstream sink how entries should be persisted.
type StorageMode string

const (
	StorageImmediate StorageMode = "immediate"
	StorageBatched   StorageMode = "batched"
	StorageMemory    StorageMode = "memory-only"
)

// ModeConfig is the per-mode collection policy.
type ModeConfig struct {
	SeverityThreshold domain.Severity

	// Allow-filters; empty means allow all.
	Categories []domain.ErrorCategory
	Types      []domain.ErrorType

	// What to collect.
	CollectTelemetry, CollectStackTrace, CollectContext bool
	CollectMetadata, CollectRelatedErrors               bool

	// TelemetryExecutionOnly strips telemetry down to execution time.
	TelemetryExecutionOnly bool

	MaxErrorsPerSecond int
	MaxQueueSize       int
	BatchSize          int
	ProcessingDelay    time.Duration
	Storage            StorageMode
}

// Validate checks a config before it is installed.
func (c ModeConfig) Validate() error {
	if !c.SeverityThreshold.Valid() {
		return fmt.Errorf("invalid severity threshold %q", c.SeverityThreshold)
	}
	if c.MaxErrorsPerSecond <= 0 {
		return fmt.Errorf("max errors per second must be positive, got %d", c.MaxErrorsPerSecond)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("max queue size must be positive, got %d", c.MaxQueueSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.ProcessingDelay < 0 {
		return fmt.Errorf("processing delay must not be negative, got %s", c.ProcessingDelay)
	}
	return nil
}

// DefaultConfigs returns the documented per-mode defaults. The map is fresh
// on every call; transitions never mutate it.
func DefaultConfigs() map[CollectionMode]ModeConfig {
	return map[CollectionMode]ModeConfig{
		ModeFull: {
			SeverityThreshold:    domain.SeverityInfo,
			CollectTelemetry:     true,
			CollectStackTrace:    true,
			CollectContext:       true,
			CollectMetadata:      true,
			CollectRelatedErrors: true,
			MaxErrorsPerSecond:   100,
			MaxQueueSize:         1000,
			BatchSize:            10,
			ProcessingDelay:      100 * time.Millisecond,
			Storage:              StorageImmediate,
		},
		ModeReduced: {
			SeverityThreshold:  domain.SeverityLow,
			CollectTelemetry:   true,
			CollectStackTrace:  true,
			CollectContext:     true,
			CollectMetadata:    true,
			MaxErrorsPerSecond: 50,
			MaxQueueSize:       500,
			BatchSize:          20,
			ProcessingDelay:    200 * time.Millisecond,
			Storage:            StorageBatched,
		},
		ModeMinimal: {
			SeverityThreshold:      domain.SeverityHigh,
			CollectTelemetry:       true,
			TelemetryExecutionOnly: true,
			CollectMetadata:        true,
			MaxErrorsPerSecond:     20,
			MaxQueueSize:           100,
			BatchSize:              50,
			ProcessingDelay:        500 * time.Millisecond,
			Storage:                StorageBatched,
		},
		ModeEmergency: {
			SeverityThreshold:  domain.SeverityCritical,
			MaxErrorsPerSecond: 5,
			MaxQueueSize:       50,
			BatchSize:          100,
			ProcessingDelay:    1000 * time.Millisecond,
			Storage:            StorageMemory,
		},
	}
}

// Transition records one mode change.
type Transition struct {
	From   CollectionMode `json:"from"`
	To     CollectionMode `json:"to"`
	At     time.Time      `json:"at"`
	Reason string         `json:"reason"`
}

// maxTransitionHistory bounds the retained transition records.
const maxTransitionHistory = 10
