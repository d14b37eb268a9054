package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/events"
	"github.com/vietddude/triage/internal/handling/classify"
	"github.com/vietddude/triage/internal/handling/collector"
	"github.com/vietddude/triage/internal/handling/health"
	"github.com/vietddude/triage/internal/handling/perf"
	"github.com/vietddude/triage/internal/handling/recovery"
)

// Config holds the engine configuration.
type Config struct {
	Port    int
	Monitor perf.Config
	Planner recovery.Config

	// AutoExecute runs a plan's recommended action immediately after
	// generation.
	AutoExecute bool

	// Classifier overrides the default rule-based classifier.
	Classifier Classifier

	// Sink overrides the default logging sink.
	Sink collector.Sink
}

// Engine composes the monitor, collector and planner into the single entry
// point application code calls.
type Engine struct {
	cfg        Config
	bus        *events.Bus
	classifier Classifier
	monitor    *perf.Monitor
	collector  *collector.Collector
	planner    *recovery.Planner
	healthMon  *health.Monitor
	healthSrv  *health.Server
	log        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a fully wired engine.
func NewEngine(cfg Config) *Engine {
	bus := events.NewBus()
	log := slog.Default().With("component", "engine")

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.New()
	}

	sink := cfg.Sink
	if sink == nil {
		sink = collector.SinkFunc(func(ctx context.Context, err *domain.ClassifiedError) error {
			log.Debug("error recorded",
				"error_id", err.ID, "severity", err.Severity,
				"category", err.Category, "message", err.Message)
			return nil
		})
	}

	monitor := perf.NewMonitor(cfg.Monitor, bus, nil)
	coll := collector.New(monitor, bus, sink)
	planner := recovery.NewPlanner(cfg.Planner, bus)

	// Monitor telemetry drives the collector's mode: the recommended mode
	// maps straight across, and a critical alert forces emergency.
	bus.Subscribe(domain.EventMetricsCollected, func(ev domain.Event) {
		if snap, ok := ev.Payload.(perf.Snapshot); ok {
			coll.HandleSnapshot(snap)
		}
	})
	bus.Subscribe(domain.EventPerformanceAlert, func(ev domain.Event) {
		if alert, ok := ev.Payload.(perf.Alert); ok {
			coll.HandleAlert(alert)
		}
	})

	healthMon := health.NewMonitor(monitor, coll, planner)

	e := &Engine{
		cfg:        cfg,
		bus:        bus,
		classifier: classifier,
		monitor:    monitor,
		collector:  coll,
		planner:    planner,
		healthMon:  healthMon,
		log:        log,
		done:       make(chan struct{}),
	}
	if cfg.Port > 0 {
		e.healthSrv = health.NewServer(healthMon, cfg.Port)
	}
	return e
}

// Bus exposes the event bus so collaborators can register observers.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Collector exposes the adaptive collector for mode/config control.
func (e *Engine) Collector() *collector.Collector {
	return e.collector
}

// Planner exposes the recovery planner for plan lookup and execution.
func (e *Engine) Planner() *recovery.Planner {
	return e.planner
}

// Monitor exposes the performance monitor.
func (e *Engine) Monitor() *perf.Monitor {
	return e.monitor
}

// Start launches the sampling loop, the batch flusher and, when a port is
// configured, the health server.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		e.monitor.Start(gctx)
		return nil
	})
	e.collector.Start(runCtx)

	if e.healthSrv != nil {
		g.Go(func() error {
			if err := e.healthSrv.Start(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
	}

	go func() {
		defer close(e.done)
		if err := g.Wait(); err != nil {
			e.log.Error("engine background task failed", "error", err)
		}
	}()

	e.log.Info("engine started", "port", e.cfg.Port)
	return nil
}

// Stop shuts the engine down: timers stop, the queue is force-flushed, and
// the shutdown event is published.
func (e *Engine) Stop(ctx context.Context) error {
	e.monitor.Stop()
	e.collector.Shutdown(ctx)

	if e.healthSrv != nil {
		if err := e.healthSrv.Stop(ctx); err != nil {
			e.log.Warn("health server shutdown", "error", err)
		}
	}
	if e.cancel != nil {
		e.cancel()
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.bus.Publish(domain.EventShutdown, nil)
	e.log.Info("engine stopped")
	return nil
}

// Health returns the current health report.
func (e *Engine) Health() health.Report {
	return e.healthMon.Check()
}

// HandleError is the sole entry point for application errors. It classifies,
// admits, optionally plans recovery, and never panics on nil or malformed
// input: such calls return Success=false with a reason.
func (e *Engine) HandleError(ctx context.Context, rawErr any, errCtx map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("error handling panicked", "panic", r)
			res = Result{
				Success:      false,
				Reason:       fmt.Sprintf("internal failure: %v", r),
				SystemStatus: e.monitor.Status(),
			}
			e.bus.Publish(domain.EventHandlingFailed, HandlingFailedEvent{Reason: res.Reason})
		}
	}()

	res.SystemStatus = e.monitor.Status()

	msg, ok := errorMessage(rawErr)
	if !ok {
		res.Reason = "no error provided"
		e.bus.Publish(domain.EventHandlingFailed, HandlingFailedEvent{Reason: res.Reason})
		return res
	}

	token := e.monitor.StartOperation(perf.OpClassification, "")
	ce := e.classifier.Classify(msg, errCtx)
	e.monitor.EndOperation(token)

	if ce == nil {
		res.Reason = "classifier returned no result"
		e.bus.Publish(domain.EventHandlingFailed, HandlingFailedEvent{Reason: res.Reason})
		return res
	}
	res.ErrorID = ce.ID

	res.Processing = e.collector.ProcessError(ctx, ce)
	res.Success = true

	if res.Processing.Processed && (ce.Retryable || ce.Recoverable) {
		rc := recoveryContextFrom(errCtx)
		plan, perr := e.planner.GeneratePlan(ce, rc)
		if perr != nil {
			e.log.Debug("no recovery plan", "error_id", ce.ID, "reason", perr)
		} else {
			res.Plan = plan
			if e.cfg.AutoExecute {
				attempt, aerr := e.planner.ExecuteAction(ctx, plan.ID, plan.Recommended.ID)
				if aerr != nil {
					e.log.Warn("recovery execution failed", "plan_id", plan.ID, "error", aerr)
				} else {
					res.Attempt = attempt
					if plan.Recommended.Type == recovery.ActionFallback &&
						attempt.Outcome == recovery.OutcomeSuccess {
						e.bus.Publish(domain.EventFallbackUsed, attempt)
					}
				}
			}
		}
	}

	return res
}

// errorMessage extracts a message from the raw input; nil and empty inputs
// are rejected rather than classified.
func errorMessage(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case error:
		if v == nil {
			return "", false
		}
		return v.Error(), true
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// recoveryContextFrom builds a RecoveryContext from caller-supplied context
// data, tolerating missing and mistyped fields.
func recoveryContextFrom(errCtx map[string]any) domain.RecoveryContext {
	rc := domain.RecoveryContext{
		NetworkQuality: domain.NetworkGood,
		Extra:          errCtx,
	}
	if errCtx == nil {
		return rc
	}

	if v, ok := errCtx["userRole"].(string); ok {
		rc.UserRole = v
	}
	if v, ok := errCtx["userExperience"].(string); ok {
		rc.UserExperience = domain.UserExperience(v)
	}
	if v, ok := errCtx["networkQuality"].(string); ok {
		if q := domain.NetworkQuality(v); q.Rank() >= 0 {
			rc.NetworkQuality = q
		}
	}
	if v, ok := errCtx["environment"].(string); ok {
		rc.Environment = v
	}
	if v, ok := errCtx["workflowCriticality"].(string); ok {
		rc.WorkflowCriticality = v
	}
	switch v := errCtx["systemLoad"].(type) {
	case float64:
		rc.SystemLoad = v
	case int:
		rc.SystemLoad = float64(v)
	}
	switch v := errCtx["previousFailures"].(type) {
	case int:
		rc.PreviousFailures = v
	case float64:
		rc.PreviousFailures = int(v)
	}
	return rc
}
