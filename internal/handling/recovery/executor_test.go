package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/events"
)

// planWith installs a single-action plan and returns (plan, action) ids.
func planWith(t *testing.T, p *Planner, a Action) (string, string) {
	t.Helper()
	p.strategies = []Strategy{{
		Name:     "test-strategy",
		Priority: 5,
		Generate: func(err *domain.ClassifiedError, rc domain.RecoveryContext) []Action {
			return []Action{a}
		},
	}}
	plan, err := p.GeneratePlan(networkError(), domain.RecoveryContext{NetworkQuality: domain.NetworkGood})
	if err != nil {
		t.Fatal(err)
	}
	return plan.ID, plan.Recommended.ID
}

func TestExecuteRetryExhaustsWithBackoff(t *testing.T) {
	p := NewPlanner(DefaultConfig(), nil)
	p.chance = func(float64) bool { return false }

	var delays []time.Duration
	p.wait = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	planID, actionID := planWith(t, p, Action{
		Type:        ActionRetry,
		Priority:    5,
		Description: "always failing retry",
		Parameters:  Parameters{RetryCount: 3, RetryDelay: time.Millisecond, SuccessRate: 0.75},
	})

	attempt, err := p.ExecuteAction(context.Background(), planID, actionID)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.Outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want failure", attempt.Outcome)
	}
	if attempt.Error == "" {
		t.Error("attempt error not recorded")
	}

	// Exponential backoff: 1ms, 2ms, 4ms.
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("waited %d times, want %d", len(delays), len(want))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("delay %d = %s, want %s", i, d, want[i])
		}
	}
}

func TestExecuteRetryDurationCoversBackoff(t *testing.T) {
	p := NewPlanner(DefaultConfig(), nil)
	p.chance = func(float64) bool { return false }

	planID, actionID := planWith(t, p, Action{
		Type:        ActionRetry,
		Priority:    5,
		Description: "timed retry",
		Parameters:  Parameters{RetryCount: 3, RetryDelay: time.Millisecond},
	})

	attempt, err := p.ExecuteAction(context.Background(), planID, actionID)
	if err != nil {
		t.Fatal(err)
	}
	// Backoff slept 1ms + 2ms + 4ms.
	if attempt.Duration < 7*time.Millisecond {
		t.Errorf("duration = %s, want at least 7ms of backoff", attempt.Duration)
	}
}

func TestExecuteRetryFirstSuccessShortCircuits(t *testing.T) {
	p := NewPlanner(DefaultConfig(), nil)
	p.chance = func(float64) bool { return true }
	p.wait = func(context.Context, time.Duration) error {
		t.Fatal("successful retry must not sleep")
		return nil
	}

	planID, actionID := planWith(t, p, Action{
		Type:        ActionRetry,
		Priority:    5,
		Description: "first-try retry",
		Parameters:  Parameters{RetryCount: 3, RetryDelay: time.Second, SuccessRate: 1},
	})

	attempt, err := p.ExecuteAction(context.Background(), planID, actionID)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.Outcome != OutcomeSuccess {
		t.Errorf("outcome = %s, want success", attempt.Outcome)
	}
}

func TestExecuteRetryCancellation(t *testing.T) {
	p := NewPlanner(DefaultConfig(), nil)
	p.chance = func(float64) bool { return false }

	planID, actionID := planWith(t, p, Action{
		Type:        ActionRetry,
		Priority:    5,
		Description: "cancelled retry",
		Parameters:  Parameters{RetryCount: 3, RetryDelay: time.Minute},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempt, err := p.ExecuteAction(ctx, planID, actionID)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.Outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want failure", attempt.Outcome)
	}
}

func TestExecuteFallbackOutcomes(t *testing.T) {
	for _, success := range []bool{true, false} {
		p := NewPlanner(DefaultConfig(), nil)
		p.chance = func(float64) bool { return success }
		p.wait = func(context.Context, time.Duration) error { return nil }

		planID, actionID := planWith(t, p, Action{
			Type:        ActionFallback,
			Priority:    5,
			Description: "fallback to cache",
			Parameters:  Parameters{SuccessRate: 0.85, Target: "local-cache"},
		})

		attempt, err := p.ExecuteAction(context.Background(), planID, actionID)
		if err != nil {
			t.Fatal(err)
		}
		want := OutcomeFailure
		if success {
			want = OutcomeSuccess
		}
		if attempt.Outcome != want {
			t.Errorf("success=%v: outcome = %s, want %s", success, attempt.Outcome, want)
		}
	}
}

func TestExecuteAlternativePartial(t *testing.T) {
	p := NewPlanner(DefaultConfig(), nil)
	// First roll (success rate) fails, second roll (partial) succeeds.
	rolls := 0
	p.chance = func(float64) bool {
		rolls++
		return rolls == 2
	}
	p.wait = func(context.Context, time.Duration) error { return nil }

	planID, actionID := planWith(t, p, Action{
		Type:        ActionAlternative,
		Priority:    5,
		Description: "alternative node",
		Parameters:  Parameters{SuccessRate: 0.7},
	})

	attempt, err := p.ExecuteAction(context.Background(), planID, actionID)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.Outcome != OutcomePartial {
		t.Errorf("outcome = %s, want partial", attempt.Outcome)
	}
}

func TestExecuteTerminalActionTypes(t *testing.T) {
	tests := []struct {
		typ  ActionType
		want Outcome
	}{
		{ActionManual, OutcomePartial},
		{ActionEscalate, OutcomeSuccess},
		{ActionAbort, OutcomeAbandoned},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			p := NewPlanner(DefaultConfig(), nil)
			planID, actionID := planWith(t, p, Action{
				Type:        tt.typ,
				Priority:    5,
				Description: string(tt.typ) + " action",
			})

			attempt, err := p.ExecuteAction(context.Background(), planID, actionID)
			if err != nil {
				t.Fatal(err)
			}
			if attempt.Outcome != tt.want {
				t.Errorf("outcome = %s, want %s", attempt.Outcome, tt.want)
			}
		})
	}
}

func TestPlanExecutableUntilExpiry(t *testing.T) {
	// A failed recommended action must not retire the plan: the caller can
	// still run an alternative from the same plan.
	p := NewPlanner(DefaultConfig(), nil)
	p.chance = func(float64) bool { return false }
	p.wait = func(context.Context, time.Duration) error { return nil }

	plan, err := p.GeneratePlan(networkError(), domain.RecoveryContext{
		NetworkQuality: domain.NetworkOffline,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Alternatives) == 0 {
		t.Fatal("expected alternatives")
	}

	first, err := p.ExecuteAction(context.Background(), plan.ID, plan.Recommended.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %s, want failure", first.Outcome)
	}

	if _, err := p.ExecuteAction(context.Background(), plan.ID, plan.Alternatives[0].ID); err != nil {
		t.Fatalf("alternative not executable after failed attempt: %v", err)
	}
	if m := p.Metrics(); m.ActivePlans != 1 {
		t.Errorf("active plans = %d, want 1", m.ActivePlans)
	}
}

func TestExecuteActionLookupErrors(t *testing.T) {
	p := NewPlanner(DefaultConfig(), nil)
	planID, _ := planWith(t, p, Action{Type: ActionAbort, Priority: 5, Description: "noop"})

	if _, err := p.ExecuteAction(context.Background(), "missing", "x"); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("err = %v, want ErrPlanNotFound", err)
	}
	if _, err := p.ExecuteAction(context.Background(), planID, "missing"); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("err = %v, want ErrActionNotFound", err)
	}
}

func TestAttemptHistoryBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttemptHistory = 5
	p := NewPlanner(cfg, nil)

	planID, actionID := planWith(t, p, Action{Type: ActionAbort, Priority: 5, Description: "noop"})

	for i := 0; i < 9; i++ {
		if _, err := p.ExecuteAction(context.Background(), planID, actionID); err != nil {
			t.Fatal(err)
		}
	}

	if m := p.Metrics(); m.TotalAttempts != 5 {
		t.Errorf("history = %d attempts, want 5", m.TotalAttempts)
	}
}

func TestAttemptCompletedEventPublished(t *testing.T) {
	bus := events.NewBus()
	var attempts []Attempt
	bus.Subscribe(domain.EventAttemptCompleted, func(ev domain.Event) {
		attempts = append(attempts, ev.Payload.(Attempt))
	})

	p := NewPlanner(DefaultConfig(), bus)
	planID, actionID := planWith(t, p, Action{Type: ActionEscalate, Priority: 5, Description: "page on-call"})

	attempt, err := p.ExecuteAction(context.Background(), planID, actionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt event, got %d", len(attempts))
	}
	if attempts[0].ID != attempt.ID || attempts[0].ActionType != ActionEscalate {
		t.Errorf("unexpected event payload %+v", attempts[0])
	}
}

func TestSleepWait(t *testing.T) {
	if err := sleepWait(context.Background(), 0); err != nil {
		t.Errorf("zero wait returned %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled wait returned %v, want context.Canceled", err)
	}
}

func TestExpiredPlansPurgedOnGenerate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PlanTTL = time.Millisecond
	p := NewPlanner(cfg, nil)

	for i := 0; i < 3; i++ {
		e := networkError()
		e.ID = fmt.Sprintf("err-%d", i)
		if _, err := p.GeneratePlan(e, domain.RecoveryContext{NetworkQuality: domain.NetworkGood}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(3 * time.Millisecond)
	}

	// Each generation purged the previous, already-expired plan.
	if m := p.Metrics(); m.ActivePlans != 1 {
		t.Errorf("active plans = %d, want 1", m.ActivePlans)
	}
}
