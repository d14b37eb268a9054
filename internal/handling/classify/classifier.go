// Package classify provides the default error classifier collaborator.
// Classification proper is outside this core; the rule-based classifier here
// gives the engine a working default and can be swapped at construction.
package classify

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/triage/internal/core/domain"
)

// RuleClassifier tags raw errors by string-pattern matching, in descending
// specificity order.
type RuleClassifier struct{}

// New creates the default classifier.
func New() *RuleClassifier {
	return &RuleClassifier{}
}

type rule struct {
	patterns    []string
	severity    domain.Severity
	category    domain.ErrorCategory
	errType     domain.ErrorType
	retryable   bool
	recoverable bool
}

// Ordered: the first matching rule wins.
var rules = []rule{
	{
		patterns:    []string{"rate limit", "too many requests", "429", "quota"},
		severity:    domain.SeverityMedium,
		category:    domain.CategoryNetwork,
		errType:     domain.TypeRateLimit,
		retryable:   true,
		recoverable: true,
	},
	{
		patterns:    []string{"timeout", "timed out", "deadline exceeded"},
		severity:    domain.SeverityMedium,
		category:    domain.CategoryNetwork,
		errType:     domain.TypeTimeout,
		retryable:   true,
		recoverable: true,
	},
	{
		patterns:    []string{"connection refused", "connection reset", "no such host", "network", "econnrefused", "dns"},
		severity:    domain.SeverityHigh,
		category:    domain.CategoryNetwork,
		errType:     domain.TypeConnectionError,
		retryable:   true,
		recoverable: true,
	},
	{
		patterns:    []string{"out of memory", "oom", "cannot allocate"},
		severity:    domain.SeverityCritical,
		category:    domain.CategorySystem,
		errType:     domain.TypeOutOfMemory,
		recoverable: true,
	},
	{
		patterns:    []string{"overload", "load too high", "resource exhausted"},
		severity:    domain.SeverityHigh,
		category:    domain.CategorySystem,
		errType:     domain.TypeOverload,
		retryable:   true,
		recoverable: true,
	},
	{
		patterns:    []string{"node not found", "unknown node", "missing node"},
		severity:    domain.SeverityMedium,
		category:    domain.CategoryCommunityNode,
		errType:     domain.TypeNodeNotFound,
		recoverable: true,
	},
	{
		patterns:    []string{"version conflict", "incompatible version"},
		severity:    domain.SeverityMedium,
		category:    domain.CategoryCommunityNode,
		errType:     domain.TypeVersionConflict,
		recoverable: true,
	},
	{
		patterns:    []string{"generation failed", "workflow generation", "invalid workflow"},
		severity:    domain.SeverityMedium,
		category:    domain.CategoryWorkflow,
		errType:     domain.TypeGenerationError,
		retryable:   true,
		recoverable: true,
	},
	{
		patterns: []string{"validation", "invalid input", "bad request"},
		severity: domain.SeverityLow,
		category: domain.CategoryUserInput,
		errType:  domain.TypeValidationError,
	},
	{
		patterns: []string{"config", "misconfigured"},
		severity: domain.SeverityMedium,
		category: domain.CategoryConfiguration,
		errType:  domain.TypeConfigError,
	},
}

// Classify tags a raw error message with severity, category, type and
// recovery metadata. An empty message classifies as unknown/low.
func (c *RuleClassifier) Classify(msg string, context map[string]any) *domain.ClassifiedError {
	ce := &domain.ClassifiedError{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Severity:  domain.SeverityLow,
		Category:  domain.CategoryUnknown,
		Type:      domain.TypeUnknownError,
		Message:   msg,
		Context:   context,
	}

	lower := strings.ToLower(msg)
	for _, r := range rules {
		if matchesAny(lower, r.patterns) {
			ce.Severity = r.severity
			ce.Category = r.category
			ce.Type = r.errType
			ce.Retryable = r.retryable
			ce.Recoverable = r.recoverable
			break
		}
	}

	return ce
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
