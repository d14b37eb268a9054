package domain

import "time"

// EventType names an outbound notification consumed by logging/reporting
// collaborators.
type EventType string

const (
	EventMetricsCollected EventType = "metrics-collected"
	EventPerformanceAlert EventType = "performance-alert"
	EventModeChanged      EventType = "collection-mode-changed"
	EventConfigUpdated    EventType = "config-updated"
	EventQueueOverflow    EventType = "queue-overflow"
	EventBatchProcessed   EventType = "batch-processed"
	EventPlanGenerated    EventType = "recovery_plan_generated"
	EventAttemptCompleted EventType = "recovery_attempt_completed"
	EventFallbackUsed     EventType = "fallback-used"
	EventHandlingFailed   EventType = "error-handling-failed"
	EventShutdown         EventType = "shutdown"
)

// Event is a single notification delivered to registered observers.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}
