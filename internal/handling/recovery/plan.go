// Package recovery produces and executes ranked remediation plans for
// classified errors. Plans are built from a declarative strategy table,
// filtered for feasibility against the caller's context, and executed by
// type-specific executors.
package recovery

import (
	"errors"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

var (
	ErrPlanNotFound      = errors.New("recovery plan not found")
	ErrPlanExpired       = errors.New("recovery plan expired")
	ErrActionNotFound    = errors.New("recovery action not found")
	ErrNoFeasibleActions = errors.New("no feasible recovery actions")
)

// ActionType is the kind of remediation an action performs.
type ActionType string

const (
	ActionRetry       ActionType = "retry"
	ActionFallback    ActionType = "fallback"
	ActionAlternative ActionType = "alternative"
	ActionManual      ActionType = "manual"
	ActionEscalate    ActionType = "escalate"
	ActionAbort       ActionType = "abort"
)

// Conditions gate an action's feasibility against the recovery context.
// Zero values mean "no constraint".
type Conditions struct {
	// MaxRetries makes the action infeasible once the context reports at
	// least this many previous failures.
	MaxRetries int `json:"max_retries,omitempty"`

	// MinSystemLoad is the load ceiling above which the action is skipped.
	MinSystemLoad float64 `json:"min_system_load,omitempty"`

	// RequiredNetworkQuality is the minimum connectivity the action needs.
	RequiredNetworkQuality domain.NetworkQuality `json:"required_network_quality,omitempty"`
}

// Parameters drive the type-specific executors.
type Parameters struct {
	RetryCount  int           `json:"retry_count,omitempty"`
	RetryDelay  time.Duration `json:"retry_delay,omitempty"`
	SuccessRate float64       `json:"success_rate,omitempty"` // simulated, 0-1
	Latency     time.Duration `json:"latency,omitempty"`      // simulated I/O
	Target      string        `json:"target,omitempty"`       // fallback target / escalation channel
}

// Action is one candidate remediation. Actions are generated fresh per plan
// and never mutated after creation.
type Action struct {
	ID          string     `json:"id"`
	Type        ActionType `json:"type"`
	Priority    int        `json:"priority"` // 1-10, higher first
	Message     string     `json:"message"`  // user-facing
	Description string     `json:"description"`

	EstimatedDuration  time.Duration `json:"estimated_duration"`
	SuccessProbability float64       `json:"success_probability"` // 0-1

	Parameters Parameters `json:"parameters"`
	Conditions Conditions `json:"conditions"`

	Strategy string `json:"strategy"` // generating strategy name
}

// Plan is a ranked set of candidate actions for one classified error.
type Plan struct {
	ID      string                 `json:"id"`
	ErrorID string                 `json:"error_id"`
	Context domain.RecoveryContext `json:"context"`

	Actions      []Action `json:"actions"` // sorted descending by priority, deduplicated
	Recommended  Action   `json:"recommended"`
	Alternatives []Action `json:"alternatives"` // up to 3

	EstimatedTotalTime time.Duration `json:"estimated_total_time"`
	SuccessProbability float64       `json:"success_probability"`

	UserGuidance     string `json:"user_guidance"`
	TechnicalSummary string `json:"technical_summary"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the plan is past its expiry.
func (p *Plan) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Outcome is the result class of one executed action.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomePartial   Outcome = "partial"
	OutcomeAbandoned Outcome = "abandoned"
)

// Attempt records one execution of an action from a plan.
type Attempt struct {
	ID         string     `json:"id"`
	PlanID     string     `json:"plan_id"`
	ActionID   string     `json:"action_id"`
	ActionType ActionType `json:"action_type"`
	Strategy   string     `json:"strategy"`

	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Feedback string        `json:"feedback,omitempty"` // optional user feedback tag

	At time.Time `json:"at"`
}

// StrategyStat is the empirical success rate of one strategy.
type StrategyStat struct {
	Name        string  `json:"name"`
	Attempts    int     `json:"attempts"`
	SuccessRate float64 `json:"success_rate"`
}

// Metrics aggregates recovery execution history.
type Metrics struct {
	TotalAttempts    int            `json:"total_attempts"`
	Successful       int            `json:"successful"`
	Failed           int            `json:"failed"`
	AverageDuration  time.Duration  `json:"average_duration"`
	TopStrategies    []StrategyStat `json:"top_strategies"`
	UserSatisfaction float64        `json:"user_satisfaction"` // 0-1, from feedback tags
	ActivePlans      int            `json:"active_plans"`
}
