// Package collector decides, per incoming classified error, whether and at
// what level of detail it is worth processing right now. It owns the
// process-wide collection mode and the bounded error queue.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/events"
	"github.com/vietddude/triage/internal/handling/metrics"
	"github.com/vietddude/triage/internal/handling/perf"
)

// Sink receives errors that survived admission and detail adaptation.
// Implementations hand off to logging/reporting collaborators.
type Sink interface {
	Process(ctx context.Context, err *domain.ClassifiedError) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, err *domain.ClassifiedError) error

func (f SinkFunc) Process(ctx context.Context, err *domain.ClassifiedError) error {
	return f(ctx, err)
}

// ProcessingResult is returned for every ProcessError call.
type ProcessingResult struct {
	Processed      bool           `json:"processed"`
	Reason         string         `json:"reason,omitempty"`
	Mode           CollectionMode `json:"mode"`
	OverheadMs     float64        `json:"overhead_ms"`
	ReducedDetails []string       `json:"reduced_details,omitempty"`
}

// Rejection reasons returned in ProcessingResult.Reason.
const (
	ReasonBelowThreshold   = "Below severity threshold"
	ReasonCategoryFiltered = "Category filtered out"
	ReasonTypeFiltered     = "Type filtered out"
	ReasonPerformanceGate  = "Rejected by performance gate"
	ReasonRateLimited      = "Rate limit exceeded"
)

// QueueOverflowEvent is the payload of the queue-overflow event.
type QueueOverflowEvent struct {
	Evicted   int            `json:"evicted"`
	QueueSize int            `json:"queue_size"`
	Mode      CollectionMode `json:"mode"`
}

// BatchProcessedEvent is the payload of the batch-processed event.
type BatchProcessedEvent struct {
	Count     int            `json:"count"`
	Remaining int            `json:"remaining"`
	Mode      CollectionMode `json:"mode"`
}

// ModeChangedEvent is the payload of the collection-mode-changed event.
type ModeChangedEvent struct {
	From   CollectionMode `json:"from"`
	To     CollectionMode `json:"to"`
	Reason string         `json:"reason"`
}

type queuedError struct {
	err        *domain.ClassifiedError
	enqueuedAt time.Time
}

// Collector is the adaptive collection state machine. One mode is current at
// any time; transitions apply atomically to subsequent admissions while
// already-queued items keep the adaptation decided at enqueue time.
type Collector struct {
	monitor *perf.Monitor
	bus     *events.Bus
	sink    Sink
	log     *slog.Logger

	mu           sync.Mutex
	mode         CollectionMode
	configs      map[CollectionMode]ModeConfig
	queue        []queuedError
	transitions  []Transition
	isProcessing bool

	rateWindowStart time.Time
	rateCount       int

	admitted int64
	rejected int64

	rearmCh  chan time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a collector starting in full mode with the default per-mode
// configs. The sink receives every processed error.
func New(monitor *perf.Monitor, bus *events.Bus, sink Sink) *Collector {
	c := &Collector{
		monitor: monitor,
		bus:     bus,
		sink:    sink,
		log:     slog.Default().With("component", "collector"),
		mode:    ModeFull,
		configs: DefaultConfigs(),
		rearmCh: make(chan time.Duration, 1),
		stopCh:  make(chan struct{}),
	}
	if monitor != nil {
		monitor.SetImpactSource(c.Impact)
	}
	return c
}

// Start launches the background batch flusher. It returns immediately.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.runFlusher(ctx)
}

// Mode returns the current collection mode.
func (c *Collector) Mode() CollectionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Config returns the active config for the given mode.
func (c *Collector) Config(mode CollectionMode) ModeConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configs[mode]
}

// Transitions returns a copy of the bounded transition history.
func (c *Collector) Transitions() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.transitions...)
}

// QueueLen returns the current queue depth.
func (c *Collector) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// SetMode switches the collection mode. Re-selecting the current mode is a
// no-op: no transition record, no event.
func (c *Collector) SetMode(mode CollectionMode, reason string) {
	if !mode.Valid() {
		c.log.Warn("ignoring unknown collection mode", "mode", mode)
		return
	}

	c.mu.Lock()
	if mode == c.mode {
		c.mu.Unlock()
		return
	}
	from := c.mode
	c.mode = mode
	c.transitions = append(c.transitions, Transition{
		From:   from,
		To:     mode,
		At:     time.Now(),
		Reason: reason,
	})
	if len(c.transitions) > maxTransitionHistory {
		c.transitions = c.transitions[len(c.transitions)-maxTransitionHistory:]
	}
	c.rateWindowStart = time.Time{}
	c.rateCount = 0
	delay := c.configs[mode].ProcessingDelay
	c.mu.Unlock()

	c.log.Info("collection mode changed", "from", from, "to", mode, "reason", reason)
	metrics.ModeTransitions.WithLabelValues(string(from), string(mode)).Inc()
	c.rearm(delay)

	if c.bus != nil {
		c.bus.Publish(domain.EventModeChanged, ModeChangedEvent{From: from, To: mode, Reason: reason})
	}
}

// UpdateConfig replaces the config for one mode after validation.
func (c *Collector) UpdateConfig(mode CollectionMode, cfg ModeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.configs[mode] = cfg
	rearm := mode == c.mode
	delay := cfg.ProcessingDelay
	c.mu.Unlock()

	if rearm {
		c.rearm(delay)
	}
	if c.bus != nil {
		c.bus.Publish(domain.EventConfigUpdated, mode)
	}
	return nil
}

// HandleSnapshot applies the monitor's recommended mode. Wired to the
// metrics-collected event by the engine.
func (c *Collector) HandleSnapshot(snap perf.Snapshot) {
	switch snap.RecommendedMode {
	case perf.RecommendMinimal:
		c.SetMode(ModeMinimal, "performance status "+string(snap.Status))
	case perf.RecommendReduced:
		c.SetMode(ModeReduced, "performance status "+string(snap.Status))
	case perf.RecommendFull:
		c.SetMode(ModeFull, "performance status "+string(snap.Status))
	}
}

// HandleAlert forces emergency mode on a critical alert, regardless of the
// recommended mode. Wired to the performance-alert event by the engine.
func (c *Collector) HandleAlert(alert perf.Alert) {
	if alert.Severity == perf.AlertCritical {
		c.SetMode(ModeEmergency, "critical alert: "+alert.Metric)
	}
}

// ProcessError runs admission, detail adaptation and routing for one error.
// It never blocks the caller and never returns an error: rejections are
// reported in the result.
func (c *Collector) ProcessError(ctx context.Context, err *domain.ClassifiedError) ProcessingResult {
	var token string
	if c.monitor != nil {
		token = c.monitor.StartOperation(perf.OpLogging, err.ID)
	}

	res := c.process(ctx, err)

	if c.monitor != nil {
		res.OverheadMs = c.monitor.EndOperation(token)
	}
	return res
}

func (c *Collector) process(ctx context.Context, err *domain.ClassifiedError) ProcessingResult {
	c.mu.Lock()
	mode := c.mode
	cfg := c.configs[mode]
	c.mu.Unlock()

	res := ProcessingResult{Mode: mode}

	// Admission: first failing check short-circuits.
	if reason := c.admit(err, cfg); reason != "" {
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
		metrics.ErrorsRejected.WithLabelValues(string(mode), reason).Inc()
		res.Reason = reason
		return res
	}

	adapted, reduced := adaptDetail(err, cfg)
	res.Processed = true
	res.ReducedDetails = reduced

	c.mu.Lock()
	c.admitted++
	c.mu.Unlock()
	metrics.ErrorsProcessed.WithLabelValues(string(mode), string(err.Severity)).Inc()

	if cfg.BatchSize > 1 || cfg.ProcessingDelay > 0 {
		c.enqueue(adapted, cfg, mode)
	} else if c.sink != nil {
		if serr := c.sink.Process(ctx, adapted); serr != nil {
			c.log.Error("sink failed", "error", serr, "error_id", adapted.ID)
		}
	}

	return res
}

// admit returns an empty string when the error passes all gates, otherwise
// the rejection reason.
func (c *Collector) admit(err *domain.ClassifiedError, cfg ModeConfig) string {
	if !err.Severity.AtLeast(cfg.SeverityThreshold) {
		return ReasonBelowThreshold
	}
	if len(cfg.Categories) > 0 && !containsCategory(cfg.Categories, err.Category) {
		return ReasonCategoryFiltered
	}
	if len(cfg.Types) > 0 && !containsType(cfg.Types, err.Type) {
		return ReasonTypeFiltered
	}
	if c.monitor != nil && !c.monitor.CanProcessError(err.Severity) {
		return ReasonPerformanceGate
	}
	if !c.allowRate(cfg.MaxErrorsPerSecond) {
		return ReasonRateLimited
	}
	return ""
}

// allowRate is a fixed one-second window counter.
func (c *Collector) allowRate(perSecond int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.rateWindowStart.IsZero() || now.Sub(c.rateWindowStart) >= time.Second {
		c.rateWindowStart = now
		c.rateCount = 0
	}
	if c.rateCount >= perSecond {
		return false
	}
	c.rateCount++
	return true
}

func (c *Collector) enqueue(err *domain.ClassifiedError, cfg ModeConfig, mode CollectionMode) {
	c.mu.Lock()
	c.queue = append(c.queue, queuedError{err: err, enqueuedAt: time.Now()})

	evicted := 0
	if over := len(c.queue) - cfg.MaxQueueSize; over > 0 {
		c.queue = c.queue[over:]
		evicted = over
	}
	size := len(c.queue)
	c.mu.Unlock()

	metrics.QueueSize.Set(float64(size))

	if evicted > 0 {
		metrics.QueueOverflows.Add(float64(evicted))
		c.log.Warn("queue overflow", "evicted", evicted, "queue_size", size)
		if c.bus != nil {
			c.bus.Publish(domain.EventQueueOverflow, QueueOverflowEvent{
				Evicted:   evicted,
				QueueSize: size,
				Mode:      mode,
			})
		}
	}
}

// Impact reports the collector's processing impact for performance snapshots.
func (c *Collector) Impact() perf.ProcessingImpact {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dropRate float64
	if total := c.admitted + c.rejected; total > 0 {
		dropRate = float64(c.rejected) / float64(total)
	}
	return perf.ProcessingImpact{
		QueueSize:         len(c.queue),
		ProcessingDelayMs: float64(c.configs[c.mode].ProcessingDelay) / float64(time.Millisecond),
		DropRate:          dropRate,
	}
}

// FlushQueue synchronously drains the whole queue. It is a no-op if a flush
// is already in progress.
func (c *Collector) FlushQueue(ctx context.Context) {
	c.mu.Lock()
	if c.isProcessing {
		c.mu.Unlock()
		return
	}
	c.isProcessing = true
	c.mu.Unlock()

	for c.drainBatch(ctx, -1) > 0 {
	}

	c.mu.Lock()
	c.isProcessing = false
	c.mu.Unlock()
}

// flushBatch drains up to the current mode's batch size. Guarded so
// overlapping timer fires never run concurrently.
func (c *Collector) flushBatch(ctx context.Context) {
	c.mu.Lock()
	if c.isProcessing {
		c.mu.Unlock()
		return
	}
	c.isProcessing = true
	batch := c.configs[c.mode].BatchSize
	c.mu.Unlock()

	c.drainBatch(ctx, batch)

	c.mu.Lock()
	c.isProcessing = false
	c.mu.Unlock()
}

// drainBatch takes up to n items (all when n < 0) off the queue and hands
// them to the sink one by one, so one bad item cannot halt the batch.
func (c *Collector) drainBatch(ctx context.Context, n int) int {
	c.mu.Lock()
	take := len(c.queue)
	if n >= 0 && take > n {
		take = n
	}
	items := c.queue[:take]
	c.queue = c.queue[take:]
	remaining := len(c.queue)
	mode := c.mode
	c.mu.Unlock()

	metrics.QueueSize.Set(float64(remaining))

	if take == 0 {
		return 0
	}

	for _, q := range items {
		if c.sink == nil {
			continue
		}
		if err := c.sink.Process(ctx, q.err); err != nil {
			c.log.Error("sink failed during flush", "error", err, "error_id", q.err.ID)
		}
	}

	if c.bus != nil {
		c.bus.Publish(domain.EventBatchProcessed, BatchProcessedEvent{
			Count:     take,
			Remaining: remaining,
			Mode:      mode,
		})
	}
	return take
}

func (c *Collector) rearm(delay time.Duration) {
	select {
	case c.rearmCh <- delay:
		return
	default:
	}
	// A pending rearm is superseded.
	select {
	case <-c.rearmCh:
	default:
	}
	select {
	case c.rearmCh <- delay:
	default:
	}
}

// runFlusher is the background batch flusher: a ticker at the current mode's
// processing delay, re-armed whenever the mode changes.
func (c *Collector) runFlusher(ctx context.Context) {
	defer c.wg.Done()

	delay := c.Config(c.Mode()).ProcessingDelay
	var ticker *time.Ticker
	var tickC <-chan time.Time
	arm := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			tickC = ticker.C
		}
	}
	arm(delay)
	defer arm(0)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case d := <-c.rearmCh:
			arm(d)
		case <-tickC:
			c.flushBatch(ctx)
		}
	}
}

// Shutdown stops the flusher and force-flushes the remaining queue.
func (c *Collector) Shutdown(ctx context.Context) {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.FlushQueue(ctx)
}

func containsCategory(list []domain.ErrorCategory, v domain.ErrorCategory) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

func containsType(list []domain.ErrorType, v domain.ErrorType) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}
