package domain

// NetworkQuality describes current connectivity on an ordinal scale.
type NetworkQuality string

const (
	NetworkOffline   NetworkQuality = "offline"
	NetworkPoor      NetworkQuality = "poor"
	NetworkGood      NetworkQuality = "good"
	NetworkExcellent NetworkQuality = "excellent"
)

var networkRank = map[NetworkQuality]int{
	NetworkOffline:   0,
	NetworkPoor:      1,
	NetworkGood:      2,
	NetworkExcellent: 3,
}

// Rank returns the ordinal position (offline=0 .. excellent=3).
func (q NetworkQuality) Rank() int {
	if r, ok := networkRank[q]; ok {
		return r
	}
	return -1
}

// UserExperience is the self-reported expertise of the current user.
type UserExperience string

const (
	ExperienceBeginner     UserExperience = "beginner"
	ExperienceIntermediate UserExperience = "intermediate"
	ExperienceExpert       UserExperience = "expert"
)

// RecoveryContext is the per-call situation a recovery plan is built for.
// It is supplied by the caller and never persisted by the core.
type RecoveryContext struct {
	UserRole       string         `json:"user_role,omitempty"`
	UserExperience UserExperience `json:"user_experience,omitempty"`
	Preferences    map[string]any `json:"preferences,omitempty"`

	SystemLoad     float64        `json:"system_load"` // 0-100
	NetworkQuality NetworkQuality `json:"network_quality"`

	WorkflowCriticality string  `json:"workflow_criticality,omitempty"`
	WorkflowProgress    float64 `json:"workflow_progress,omitempty"` // 0-1
	PreviousFailures    int     `json:"previous_failures"`

	Environment string `json:"environment,omitempty"` // e.g. "production", "development"

	RecentErrors    []string `json:"recent_errors,omitempty"`
	RecoveryHistory []string `json:"recovery_history,omitempty"`

	// Extension data passed through from the caller.
	Extra map[string]any `json:"extra,omitempty"`
}
