package recovery

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/events"
	"github.com/vietddude/triage/internal/handling/metrics"
)

// planTTL is how long a generated plan stays executable.
const defaultPlanTTL = 30 * time.Minute

// defaultMaxHistory bounds the attempt history.
const defaultMaxHistory = 5000

// Config holds planner configuration.
type Config struct {
	PlanTTL           time.Duration
	MaxAttemptHistory int
}

// DefaultConfig returns the documented planner defaults.
func DefaultConfig() Config {
	return Config{
		PlanTTL:           defaultPlanTTL,
		MaxAttemptHistory: defaultMaxHistory,
	}
}

// Planner generates and executes recovery plans. Active plans are kept in
// memory until executed or expired; attempt history is bounded.
type Planner struct {
	cfg Config
	bus *events.Bus
	log *slog.Logger

	mu         sync.Mutex
	strategies []Strategy
	plans      map[string]*Plan
	history    []Attempt

	// chance rolls simulated outcomes; wait sleeps between retries.
	// Both are injectable for deterministic tests.
	chance func(p float64) bool
	wait   waitFunc
}

// NewPlanner creates a planner with the built-in strategy table.
func NewPlanner(cfg Config, bus *events.Bus) *Planner {
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = defaultPlanTTL
	}
	if cfg.MaxAttemptHistory <= 0 {
		cfg.MaxAttemptHistory = defaultMaxHistory
	}
	return &Planner{
		cfg:        cfg,
		bus:        bus,
		log:        slog.Default().With("component", "recovery"),
		strategies: BuiltinStrategies(),
		plans:      make(map[string]*Plan),
		chance:     func(p float64) bool { return rand.Float64() < p },
		wait:       sleepWait,
	}
}

// RegisterStrategy adds a strategy to the table.
func (p *Planner) RegisterStrategy(s Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategies = append(p.strategies, s)
}

// GeneratePlan builds a ranked recovery plan for the error under the given
// context. It fails with ErrNoFeasibleActions when nothing survives the
// feasibility filter.
func (p *Planner) GeneratePlan(err *domain.ClassifiedError, rc domain.RecoveryContext) (*Plan, error) {
	p.mu.Lock()
	applicable := make([]Strategy, 0, len(p.strategies))
	for _, s := range p.strategies {
		if s.Matches(err, rc) {
			applicable = append(applicable, s)
		}
	}
	p.mu.Unlock()

	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority > applicable[j].Priority
	})

	var pool []Action
	for _, s := range applicable {
		for _, a := range s.Generate(err, rc) {
			a.ID = uuid.New().String()
			a.Strategy = s.Name
			pool = append(pool, a)
		}
	}

	pool = dedupeActions(pool)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Priority > pool[j].Priority
	})

	feasible := pool[:0:0]
	for _, a := range pool {
		if actionFeasible(a, rc) {
			feasible = append(feasible, a)
		}
	}
	if len(feasible) == 0 {
		return nil, fmt.Errorf("%w for error %s", ErrNoFeasibleActions, err.ID)
	}

	recommended := feasible[0]
	alternatives := feasible[1:]
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}

	now := time.Now()
	plan := &Plan{
		ID:                 uuid.New().String(),
		ErrorID:            err.ID,
		Context:            rc,
		Actions:            feasible,
		Recommended:        recommended,
		Alternatives:       append([]Action(nil), alternatives...),
		EstimatedTotalTime: time.Duration(float64(recommended.EstimatedDuration) * 1.2),
		SuccessProbability: overallProbability(recommended, rc),
		UserGuidance:       userGuidance(err, recommended, rc),
		TechnicalSummary:   technicalSummary(err, feasible),
		CreatedAt:          now,
		ExpiresAt:          now.Add(p.cfg.PlanTTL),
	}

	p.mu.Lock()
	p.purgeExpiredLocked(now)
	p.plans[plan.ID] = plan
	p.mu.Unlock()

	metrics.PlansGenerated.Inc()
	p.log.Debug("recovery plan generated",
		"plan_id", plan.ID, "error_id", err.ID,
		"actions", len(plan.Actions), "recommended", recommended.Description)
	if p.bus != nil {
		p.bus.Publish(domain.EventPlanGenerated, plan)
	}
	return plan, nil
}

// Plan returns an active plan by id.
func (p *Planner) Plan(id string) (*Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookupLocked(id, time.Now())
}

func (p *Planner) lookupLocked(id string, now time.Time) (*Plan, error) {
	plan, ok := p.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	if plan.Expired(now) {
		delete(p.plans, id)
		return nil, ErrPlanExpired
	}
	return plan, nil
}

func (p *Planner) purgeExpiredLocked(now time.Time) {
	for id, plan := range p.plans {
		if plan.Expired(now) {
			delete(p.plans, id)
		}
	}
}

// RecordFeedback attaches a user feedback tag to a recorded attempt.
func (p *Planner) RecordFeedback(attemptID, feedback string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.history {
		if p.history[i].ID == attemptID {
			p.history[i].Feedback = feedback
			return nil
		}
	}
	return fmt.Errorf("attempt %s not found", attemptID)
}

// Metrics aggregates the execution history.
func (p *Planner) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := Metrics{
		TotalAttempts: len(p.history),
		ActivePlans:   len(p.plans),
	}

	var totalDur time.Duration
	type stat struct{ attempts, successes int }
	byStrategy := make(map[string]*stat)
	var satisfactionSum float64
	var satisfactionN int

	for _, a := range p.history {
		totalDur += a.Duration
		switch a.Outcome {
		case OutcomeSuccess:
			m.Successful++
		case OutcomeFailure:
			m.Failed++
		}

		s := byStrategy[a.Strategy]
		if s == nil {
			s = &stat{}
			byStrategy[a.Strategy] = s
		}
		s.attempts++
		if a.Outcome == OutcomeSuccess {
			s.successes++
		}

		if score, ok := feedbackScore(a.Feedback); ok {
			satisfactionSum += score
			satisfactionN++
		}
	}

	if m.TotalAttempts > 0 {
		m.AverageDuration = totalDur / time.Duration(m.TotalAttempts)
	}
	if satisfactionN > 0 {
		m.UserSatisfaction = satisfactionSum / float64(satisfactionN)
	}

	for name, s := range byStrategy {
		m.TopStrategies = append(m.TopStrategies, StrategyStat{
			Name:        name,
			Attempts:    s.attempts,
			SuccessRate: float64(s.successes) / float64(s.attempts),
		})
	}
	sort.Slice(m.TopStrategies, func(i, j int) bool {
		a, b := m.TopStrategies[i], m.TopStrategies[j]
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		return a.Name < b.Name
	})

	return m
}

// dedupeActions removes duplicates by (type, description), keeping the first.
func dedupeActions(actions []Action) []Action {
	seen := make(map[string]struct{}, len(actions))
	out := actions[:0:0]
	for _, a := range actions {
		key := string(a.Type) + "|" + a.Description
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// actionFeasible applies the condition filter against the context.
func actionFeasible(a Action, rc domain.RecoveryContext) bool {
	if a.Conditions.MaxRetries > 0 && rc.PreviousFailures >= a.Conditions.MaxRetries {
		return false
	}
	if a.Conditions.MinSystemLoad > 0 && rc.SystemLoad > a.Conditions.MinSystemLoad {
		return false
	}
	if q := a.Conditions.RequiredNetworkQuality; q != "" && rc.NetworkQuality.Rank() < q.Rank() {
		return false
	}
	return true
}

// overallProbability adjusts the recommended action's base probability for
// repeated failures and network quality.
func overallProbability(a Action, rc domain.RecoveryContext) float64 {
	p := a.SuccessProbability
	if rc.PreviousFailures > 2 {
		p *= 0.8
	}
	switch rc.NetworkQuality {
	case domain.NetworkOffline:
		p *= 0.7
	case domain.NetworkPoor:
		p *= 0.9
	case domain.NetworkExcellent:
		p *= 1.1
	}
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

var severityGuidance = map[domain.Severity]string{
	domain.SeverityInfo:     "Heads up:",
	domain.SeverityLow:      "A minor problem occurred.",
	domain.SeverityMedium:   "Something went wrong.",
	domain.SeverityHigh:     "A serious problem occurred.",
	domain.SeverityCritical: "A critical problem occurred.",
}

func userGuidance(err *domain.ClassifiedError, recommended Action, rc domain.RecoveryContext) string {
	var b strings.Builder

	prefix, ok := severityGuidance[err.Severity]
	if !ok {
		prefix = "Something went wrong."
	}

	if rc.UserExperience == domain.ExperienceBeginner {
		b.WriteString("Don't worry, this is usually easy to fix. ")
	}
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(recommended.Message)
	if rc.UserExperience == domain.ExperienceExpert {
		b.WriteString(" See the technical summary for details.")
	}
	return b.String()
}

func technicalSummary(err *domain.ClassifiedError, actions []Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s severity=%s: %d candidate action(s)",
		err.Category, err.Type, err.Severity, len(actions))
	for i, a := range actions {
		fmt.Fprintf(&b, "; %d. [%s] %s (priority %d, p=%.2f)",
			i+1, a.Type, a.Description, a.Priority, a.SuccessProbability)
	}
	return b.String()
}

func feedbackScore(tag string) (float64, bool) {
	switch tag {
	case "helpful":
		return 1, true
	case "neutral":
		return 0.5, true
	case "unhelpful":
		return 0, true
	default:
		return 0, false
	}
}
