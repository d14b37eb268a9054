package collector

import "github.com/vietddude/triage/internal/core/domain"

// stackPlaceholder replaces stripped stack traces so downstream consumers
// can tell "omitted" from "never captured".
const stackPlaceholder = "[stack trace omitted by collection mode]"

// adaptDetail returns a copy of the error reduced to the detail level of the
// active config, plus the list of fields that were stripped or reduced. The
// caller's error is never mutated.
func adaptDetail(err *domain.ClassifiedError, cfg ModeConfig) (*domain.ClassifiedError, []string) {
	adapted := err.Clone()
	var reduced []string

	if !cfg.CollectStackTrace && adapted.StackTrace != "" {
		adapted.StackTrace = stackPlaceholder
		reduced = append(reduced, "stack_trace")
	}

	if adapted.Telemetry != nil {
		switch {
		case !cfg.CollectTelemetry:
			adapted.Telemetry = nil
			reduced = append(reduced, "telemetry")
		case cfg.TelemetryExecutionOnly:
			adapted.Telemetry = &domain.ErrorTelemetry{
				ExecutionTimeMs: adapted.Telemetry.ExecutionTimeMs,
			}
			reduced = append(reduced, "telemetry")
		}
	}

	if !cfg.CollectContext && adapted.Context != nil {
		adapted.Context = nil
		reduced = append(reduced, "context")
	}

	if !cfg.CollectMetadata && adapted.Metadata != nil {
		adapted.Metadata = nil
		reduced = append(reduced, "metadata")
	}

	if !cfg.CollectRelatedErrors && adapted.RelatedErrors != nil {
		adapted.RelatedErrors = nil
		reduced = append(reduced, "related_errors")
	}

	return adapted, reduced
}
