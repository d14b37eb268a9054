package domain

import "time"

// ErrorCategory groups classified errors by the subsystem they originate from.
type ErrorCategory string

const (
	CategoryNetwork       ErrorCategory = "network"
	CategoryWorkflow      ErrorCategory = "workflow_generation"
	CategoryCommunityNode ErrorCategory = "community_node"
	CategorySystem        ErrorCategory = "system"
	CategoryUserInput     ErrorCategory = "user_input"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryUnknown       ErrorCategory = "unknown"
)

// ErrorType is the fine-grained classification within a category.
type ErrorType string

const (
	TypeConnectionError ErrorType = "connection_error"
	TypeTimeout         ErrorType = "timeout"
	TypeRateLimit       ErrorType = "rate_limit"
	TypeGenerationError ErrorType = "generation_error"
	TypeNodeNotFound    ErrorType = "node_not_found"
	TypeVersionConflict ErrorType = "version_conflict"
	TypeOutOfMemory     ErrorType = "out_of_memory"
	TypeOverload        ErrorType = "overload"
	TypeValidationError ErrorType = "validation_error"
	TypeConfigError     ErrorType = "config_error"
	TypeUnknownError    ErrorType = "unknown_error"
)

// ErrorTelemetry carries optional measurement data attached to an error.
type ErrorTelemetry struct {
	ExecutionTimeMs float64        `json:"execution_time_ms"`
	MemoryMB        float64        `json:"memory_mb,omitempty"`
	Attributes      map[string]any `json:"attributes,omitempty"`
}

// ClassifiedError is an error already tagged by the (external) classifier.
// The collector may return a reduced copy; the original is never mutated.
type ClassifiedError struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Severity  Severity      `json:"severity"`
	Category  ErrorCategory `json:"category"`
	Type      ErrorType     `json:"type"`
	Message   string        `json:"message"`

	StackTrace    string            `json:"stack_trace,omitempty"`
	Context       map[string]any    `json:"context,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Telemetry     *ErrorTelemetry   `json:"telemetry,omitempty"`
	RelatedErrors []string          `json:"related_errors,omitempty"`
	Tags          []string          `json:"tags,omitempty"`

	Retryable   bool `json:"retryable"`
	Recoverable bool `json:"recoverable"`
}

// Clone returns a shallow copy with its own map/slice headers, so detail
// reduction never touches the caller's value.
func (e *ClassifiedError) Clone() *ClassifiedError {
	if e == nil {
		return nil
	}
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	if e.Telemetry != nil {
		t := *e.Telemetry
		c.Telemetry = &t
	}
	c.RelatedErrors = append([]string(nil), e.RelatedErrors...)
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}
