package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/handling/metrics"
)

// waitFunc sleeps for d or returns early when ctx is cancelled.
type waitFunc func(ctx context.Context, d time.Duration) error

func sleepWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExecuteAction runs one action from an active plan and records the attempt.
// Execution failure is captured in the attempt outcome, never returned as an
// error; errors are reserved for unknown plans/actions and expired plans.
//
// Retry backoff honors ctx cancellation between attempts; callers that want
// the historical uncancellable behavior pass context.Background().
func (p *Planner) ExecuteAction(ctx context.Context, planID, actionID string) (*Attempt, error) {
	p.mu.Lock()
	plan, err := p.lookupLocked(planID, time.Now())
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	var action *Action
	for i := range plan.Actions {
		if plan.Actions[i].ID == actionID {
			action = &plan.Actions[i]
			break
		}
	}
	p.mu.Unlock()

	if action == nil {
		return nil, fmt.Errorf("%w: %s in plan %s", ErrActionNotFound, actionID, planID)
	}

	start := time.Now()
	outcome, execErr := p.executeByType(ctx, *action)
	duration := time.Since(start)

	attempt := Attempt{
		ID:         uuid.New().String(),
		PlanID:     planID,
		ActionID:   actionID,
		ActionType: action.Type,
		Strategy:   action.Strategy,
		Outcome:    outcome,
		Duration:   duration,
		At:         start,
	}
	if execErr != nil {
		attempt.Error = execErr.Error()
	}

	p.mu.Lock()
	p.history = append(p.history, attempt)
	if len(p.history) > p.cfg.MaxAttemptHistory {
		p.history = p.history[len(p.history)-p.cfg.MaxAttemptHistory:]
	}
	p.mu.Unlock()

	metrics.RecoveryAttempts.WithLabelValues(string(action.Type), string(outcome)).Inc()
	p.log.Info("recovery action executed",
		"plan_id", planID, "action", action.Description,
		"outcome", outcome, "duration", duration)
	if p.bus != nil {
		p.bus.Publish(domain.EventAttemptCompleted, attempt)
	}

	return &attempt, nil
}

func (p *Planner) executeByType(ctx context.Context, a Action) (Outcome, error) {
	switch a.Type {
	case ActionRetry:
		return p.executeRetry(ctx, a)
	case ActionFallback:
		return p.executeFallback(ctx, a)
	case ActionAlternative:
		return p.executeAlternative(ctx, a)
	case ActionManual:
		// Manual actions hand control to a human; the result cannot be
		// verified synchronously.
		return OutcomePartial, nil
	case ActionEscalate:
		// Success means "escalation delivered", not "problem resolved".
		p.log.Info("escalation dispatched", "target", a.Parameters.Target, "action", a.Description)
		return OutcomeSuccess, nil
	case ActionAbort:
		return OutcomeAbandoned, nil
	default:
		return OutcomeFailure, fmt.Errorf("unknown action type %q", a.Type)
	}
}

// executeRetry loops with exponential backoff (delay x 2^attempt); the first
// success short-circuits.
func (p *Planner) executeRetry(ctx context.Context, a Action) (Outcome, error) {
	attempts := a.Parameters.RetryCount
	if attempts <= 0 {
		attempts = 3
	}
	delay := a.Parameters.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if p.chance(a.Parameters.SuccessRate) {
			return OutcomeSuccess, nil
		}
		lastErr = fmt.Errorf("retry attempt %d/%d failed", i+1, attempts)
		if err := p.wait(ctx, delay*time.Duration(1<<uint(i))); err != nil {
			return OutcomeFailure, fmt.Errorf("retry cancelled: %w", err)
		}
	}
	return OutcomeFailure, lastErr
}

func (p *Planner) executeFallback(ctx context.Context, a Action) (Outcome, error) {
	if err := p.wait(ctx, a.simulatedLatency(200*time.Millisecond)); err != nil {
		return OutcomeFailure, err
	}
	rate := a.Parameters.SuccessRate
	if rate == 0 {
		rate = 0.85
	}
	if p.chance(rate) {
		return OutcomeSuccess, nil
	}
	return OutcomeFailure, fmt.Errorf("fallback to %s failed", a.Parameters.Target)
}

// executeAlternative has a lower nominal success rate than fallback and may
// report a partial result.
func (p *Planner) executeAlternative(ctx context.Context, a Action) (Outcome, error) {
	if err := p.wait(ctx, a.simulatedLatency(300*time.Millisecond)); err != nil {
		return OutcomeFailure, err
	}
	rate := a.Parameters.SuccessRate
	if rate == 0 {
		rate = 0.7
	}
	if p.chance(rate) {
		return OutcomeSuccess, nil
	}
	if p.chance(0.5) {
		return OutcomePartial, nil
	}
	return OutcomeFailure, fmt.Errorf("alternative %s failed", a.Description)
}

func (a Action) simulatedLatency(fallback time.Duration) time.Duration {
	if a.Parameters.Latency > 0 {
		return a.Parameters.Latency
	}
	return fallback
}
