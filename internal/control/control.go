package control

import (
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/handling/collector"
	"github.com/vietddude/triage/internal/handling/perf"
	"github.com/vietddude/triage/internal/handling/recovery"
)

// Classifier turns a raw error message plus context into a classified error.
// Classification is an external collaborator; the engine only depends on
// this boundary.
type Classifier interface {
	Classify(msg string, context map[string]any) *domain.ClassifiedError
}

// Result is the structured outcome of one HandleError call.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	ErrorID string `json:"error_id,omitempty"`

	Processing collector.ProcessingResult `json:"processing"`

	Plan    *recovery.Plan    `json:"plan,omitempty"`
	Attempt *recovery.Attempt `json:"attempt,omitempty"`

	SystemStatus perf.Status `json:"system_status"`
}

// HandlingFailedEvent is the payload of the error-handling-failed event.
type HandlingFailedEvent struct {
	Reason  string `json:"reason"`
	ErrorID string `json:"error_id,omitempty"`
}
