package recovery

import (
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

// Applicability is a strategy's error allow-lists. Empty lists match all.
type Applicability struct {
	Categories []domain.ErrorCategory
	Types      []domain.ErrorType
	Severities []domain.Severity
}

// ContextRequirements is a strategy's context allow-lists. Empty lists
// match all.
type ContextRequirements struct {
	Roles        []string
	Environments []string
}

// Generator produces candidate actions for a matched error.
type Generator func(err *domain.ClassifiedError, rc domain.RecoveryContext) []Action

// Strategy is one declarative entry in the recovery rule table.
type Strategy struct {
	Name      string
	Priority  int
	AppliesTo Applicability
	Requires  ContextRequirements
	Generate  Generator
}

// Matches reports whether the strategy applies to the error and context.
func (s Strategy) Matches(err *domain.ClassifiedError, rc domain.RecoveryContext) bool {
	if len(s.AppliesTo.Categories) > 0 && !inCategories(s.AppliesTo.Categories, err.Category) {
		return false
	}
	if len(s.AppliesTo.Types) > 0 && !inTypes(s.AppliesTo.Types, err.Type) {
		return false
	}
	if len(s.AppliesTo.Severities) > 0 && !inSeverities(s.AppliesTo.Severities, err.Severity) {
		return false
	}
	if len(s.Requires.Roles) > 0 && !inStrings(s.Requires.Roles, rc.UserRole) {
		return false
	}
	if len(s.Requires.Environments) > 0 && !inStrings(s.Requires.Environments, rc.Environment) {
		return false
	}
	return true
}

// BuiltinStrategies returns the default strategy table, ordered by priority.
func BuiltinStrategies() []Strategy {
	return []Strategy{
		networkRecovery(),
		workflowRecovery(),
		communityNodeRecovery(),
		systemRecovery(),
		userExperienceRecovery(),
	}
}

func networkRecovery() Strategy {
	return Strategy{
		Name:     "network-recovery",
		Priority: 9,
		AppliesTo: Applicability{
			Categories: []domain.ErrorCategory{domain.CategoryNetwork},
		},
		Generate: func(err *domain.ClassifiedError, rc domain.RecoveryContext) []Action {
			actions := []Action{{
				Type:               ActionRetry,
				Priority:           9,
				Message:            "Retry the request; the connection problem is often temporary.",
				Description:        "retry with exponential backoff",
				EstimatedDuration:  7 * time.Second,
				SuccessProbability: 0.75,
				Parameters: Parameters{
					RetryCount:  3,
					RetryDelay:  time.Second,
					SuccessRate: 0.75,
				},
				Conditions: Conditions{MaxRetries: 5},
			}}

			if rc.NetworkQuality == domain.NetworkOffline || rc.NetworkQuality == domain.NetworkPoor {
				actions = append(actions, Action{
					Type:               ActionFallback,
					Priority:           7,
					Message:            "Continue with locally cached data until the connection recovers.",
					Description:        "fall back to cached data while offline",
					EstimatedDuration:  2 * time.Second,
					SuccessProbability: 0.85,
					Parameters: Parameters{
						SuccessRate: 0.85,
						Latency:     200 * time.Millisecond,
						Target:      "local-cache",
					},
				})
			}
			return actions
		},
	}
}

func workflowRecovery() Strategy {
	return Strategy{
		Name:     "workflow-generation-recovery",
		Priority: 8,
		AppliesTo: Applicability{
			Categories: []domain.ErrorCategory{domain.CategoryWorkflow},
		},
		Generate: func(err *domain.ClassifiedError, rc domain.RecoveryContext) []Action {
			return []Action{
				{
					Type:               ActionRetry,
					Priority:           8,
					Message:            "Retry generation with a simplified request.",
					Description:        "retry with simplified workflow request",
					EstimatedDuration:  10 * time.Second,
					SuccessProbability: 0.65,
					Parameters: Parameters{
						RetryCount:  2,
						RetryDelay:  2 * time.Second,
						SuccessRate: 0.65,
					},
					Conditions: Conditions{MaxRetries: 3},
				},
				{
					Type:               ActionFallback,
					Priority:           6,
					Message:            "Start from a matching workflow template instead.",
					Description:        "fall back to a workflow template",
					EstimatedDuration:  3 * time.Second,
					SuccessProbability: 0.8,
					Parameters: Parameters{
						SuccessRate: 0.8,
						Latency:     300 * time.Millisecond,
						Target:      "template-library",
					},
				},
			}
		},
	}
}

func communityNodeRecovery() Strategy {
	return Strategy{
		Name:     "community-node-recovery",
		Priority: 8,
		AppliesTo: Applicability{
			Categories: []domain.ErrorCategory{domain.CategoryCommunityNode},
		},
		Generate: func(err *domain.ClassifiedError, rc domain.RecoveryContext) []Action {
			return []Action{
				{
					Type:               ActionFallback,
					Priority:           8,
					Message:            "Install the last known compatible version of the node.",
					Description:        "fall back to a compatible node version",
					EstimatedDuration:  15 * time.Second,
					SuccessProbability: 0.7,
					Parameters: Parameters{
						SuccessRate: 0.7,
						Latency:     500 * time.Millisecond,
						Target:      "previous-version",
					},
				},
				{
					Type:               ActionAlternative,
					Priority:           6,
					Message:            "Use an equivalent node that provides the same capability.",
					Description:        "suggest an alternative node",
					EstimatedDuration:  5 * time.Second,
					SuccessProbability: 0.6,
					Parameters: Parameters{
						SuccessRate: 0.6,
						Latency:     300 * time.Millisecond,
					},
				},
			}
		},
	}
}

func systemRecovery() Strategy {
	return Strategy{
		Name:     "system-recovery",
		Priority: 6,
		AppliesTo: Applicability{
			Categories: []domain.ErrorCategory{domain.CategorySystem},
		},
		Generate: func(err *domain.ClassifiedError, rc domain.RecoveryContext) []Action {
			return []Action{
				{
					Type:               ActionAlternative,
					Priority:           6,
					Message:            "Free resources and run the operation again.",
					Description:        "release memory and rerun under lower load",
					EstimatedDuration:  8 * time.Second,
					SuccessProbability: 0.6,
					Parameters: Parameters{
						SuccessRate: 0.6,
						Latency:     400 * time.Millisecond,
					},
					Conditions: Conditions{MinSystemLoad: 90},
				},
				{
					Type:               ActionManual,
					Priority:           4,
					Message:            "Close other work and retry when the system is less busy.",
					Description:        "wait for system load to drop",
					EstimatedDuration:  time.Minute,
					SuccessProbability: 0.5,
				},
			}
		},
	}
}

func userExperienceRecovery() Strategy {
	return Strategy{
		Name:     "user-experience-recovery",
		Priority: 5,
		Generate: func(err *domain.ClassifiedError, rc domain.RecoveryContext) []Action {
			if rc.UserExperience == domain.ExperienceExpert {
				return []Action{{
					Type:               ActionManual,
					Priority:           3,
					Message:            "Inspect the technical details below and resolve directly.",
					Description:        "expert manual resolution with raw detail",
					EstimatedDuration:  2 * time.Minute,
					SuccessProbability: 0.6,
				}}
			}
			return []Action{{
				Type:               ActionManual,
				Priority:           3,
				Message:            "Follow the guided steps to resolve this.",
				Description:        "guided step-by-step resolution",
				EstimatedDuration:  5 * time.Minute,
				SuccessProbability: 0.55,
			}}
		},
	}
}

func inCategories(list []domain.ErrorCategory, v domain.ErrorCategory) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

func inTypes(list []domain.ErrorType, v domain.ErrorType) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func inSeverities(list []domain.Severity, v domain.Severity) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func inStrings(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
