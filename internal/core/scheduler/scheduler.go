// Package scheduler reconciles the effect planner's desired set against the
// effects currently running, dispatches signals through the pure
// transition in a single serialized order, and notifies subscribers of
// every state change and effect lifecycle event.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/reactor/internal/backoff"
	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/internal/core/plan"
	"github.com/haasonsaas/reactor/internal/core/transition"
	"github.com/haasonsaas/reactor/internal/observability"
	"github.com/haasonsaas/reactor/pkg/models"
)

// Config configures a Scheduler.
type Config struct {
	// Runners supplies the implementation for each effect kind the
	// scheduler should launch. A kind absent here is planned but never
	// started.
	Runners Runners

	// Sink receives every published event. Defaults to NopSink.
	Sink Sink

	// Metrics, if non-nil, records effect and transition counters.
	Metrics *observability.Metrics

	// Logger defaults to slog.Default() wrapped with no extra fields.
	Logger *observability.Logger

	// Backoff configures the per-key failure backoff. Zero value uses
	// backoff.DefaultConfig().
	Backoff backoff.Config

	// DispatchBuffer sizes the internal dispatch channel. Default 64.
	DispatchBuffer int
}

type runningEffect struct {
	cancel    context.CancelFunc
	kind      core.EffectKind
	startedAt time.Time
}

// Scheduler owns the single live AgentState, the set of running effects,
// and the serialized dispatch loop described in the runtime core's
// concurrency model: single-threaded cooperative in the control plane,
// concurrent for external I/O performed by runners.
type Scheduler struct {
	runners Runners
	sink    Sink
	metrics *observability.Metrics
	logger  *observability.Logger
	backoff *backoff.KeyTracker

	baseCtx    context.Context
	baseCancel context.CancelFunc

	internal chan internalMsg
	wg       sync.WaitGroup

	stateMu sync.RWMutex
	state   models.AgentState

	runMu   sync.Mutex
	running map[core.EffectKey]*runningEffect

	closeOnce sync.Once
	done      chan struct{}
}

type internalMsg interface{ internalMsg() }

type dispatchMsg struct{ signal core.Signal }

func (dispatchMsg) internalMsg() {}

type effectDoneMsg struct {
	key       core.EffectKey
	kind      core.EffectKind
	err       error
	cancelled bool
	duration  time.Duration
}

func (effectDoneMsg) internalMsg() {}

// New creates a Scheduler seeded with initial and starts its dispatch loop.
// The caller must call Close when done to stop all runners and release
// resources.
func New(initial models.AgentState, cfg Config) *Scheduler {
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{})
	}
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runners:    cfg.Runners,
		sink:       cfg.Sink,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		backoff:    backoff.NewKeyTracker(cfg.Backoff),
		baseCtx:    ctx,
		baseCancel: cancel,
		internal:   make(chan internalMsg, cfg.DispatchBuffer),
		state:      initial,
		running:    make(map[core.EffectKey]*runningEffect),
		done:       make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop()

	return s
}

// Dispatch enqueues a signal for application. It never blocks the caller
// for longer than it takes to push onto the internal channel, and is safe
// to call from any goroutine, including from within a runner.
func (s *Scheduler) Dispatch(signal core.Signal) {
	select {
	case s.internal <- dispatchMsg{signal: signal}:
	case <-s.baseCtx.Done():
	}
}

// State returns a snapshot of the current state. Safe for concurrent use.
func (s *Scheduler) State() models.AgentState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.Clone()
}

// Subscribe adds sink to the set notified of every future event, alongside
// whatever sink was configured at construction.
func (s *Scheduler) Subscribe(sink Sink) {
	s.sink = NewMultiSink(s.sink, sink)
}

// Close cancels every running effect and stops the dispatch loop. It
// blocks until all runner goroutines have returned.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.baseCancel()
		close(s.internal)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	defer close(s.done)

	for msg := range s.internal {
		switch m := msg.(type) {
		case dispatchMsg:
			s.handleDispatch(m.signal)
		case effectDoneMsg:
			s.handleEffectDone(m)
		}
	}

	s.runMu.Lock()
	for _, re := range s.running {
		re.cancel()
	}
	s.runMu.Unlock()
}

func (s *Scheduler) handleDispatch(signal core.Signal) {
	s.stateMu.Lock()
	next, events := transition.Apply(s.state, signal)
	s.state = next
	snapshot := next.Clone()
	s.stateMu.Unlock()

	for _, ev := range events {
		switch ev.Level {
		case core.LogLevelWarn:
			s.logger.Warn(s.baseCtx, ev.Message, flatten(ev.Fields)...)
		default:
			s.logger.Info(s.baseCtx, ev.Message, flatten(ev.Fields)...)
		}
	}

	outcome := "applied"
	if len(events) > 0 {
		outcome = "dropped"
	}
	if s.metrics != nil {
		s.metrics.Transition(signalName(signal), outcome)
	}

	s.sink.Emit(s.baseCtx, Event{Type: EventStateUpdated, State: snapshot})
	s.reconcile(snapshot)
}

func (s *Scheduler) handleEffectDone(m effectDoneMsg) {
	s.runMu.Lock()
	delete(s.running, m.key)
	s.runMu.Unlock()

	snapshot := s.State()

	switch {
	case m.cancelled:
		if s.metrics != nil {
			s.metrics.EffectCancelled(string(m.kind), m.duration)
		}
		s.sink.Emit(s.baseCtx, Event{Type: EventEffectCancelled, State: snapshot, EffectKey: m.key, EffectKind: m.kind})
	case m.err != nil:
		delay := s.backoff.Failed(string(m.key))
		if s.metrics != nil {
			s.metrics.EffectFailed(string(m.kind), m.duration)
			s.metrics.BackoffDelay(string(m.kind), delay)
		}
		s.logger.Warn(s.baseCtx, "effect failed", "effect_key", string(m.key), "effect_kind", string(m.kind), "error", m.err, "retry_after", delay)
		s.sink.Emit(s.baseCtx, Event{Type: EventEffectFailed, State: snapshot, EffectKey: m.key, EffectKind: m.kind, Err: m.err})
	default:
		s.backoff.Succeeded(string(m.key))
		if s.metrics != nil {
			s.metrics.EffectCompleted(string(m.kind), m.duration)
		}
		s.sink.Emit(s.baseCtx, Event{Type: EventEffectCompleted, State: snapshot, EffectKey: m.key, EffectKind: m.kind})
	}

	// Freeing a slot (or a failure cooling down) may let the next plan
	// relaunch work that a running effect was previously blocking.
	s.reconcile(snapshot)
}

// reconcile diffs desired effects against running effects and starts or
// cancels runners accordingly. It must only be called from the dispatch
// loop goroutine.
func (s *Scheduler) reconcile(snapshot models.AgentState) {
	desired := plan.EffectsAt(snapshot)

	s.runMu.Lock()
	defer s.runMu.Unlock()

	for key, effect := range desired {
		if _, ok := s.running[key]; ok {
			continue
		}
		if eligible, failures := s.backoff.Eligible(string(key)); !eligible {
			s.logger.Info(s.baseCtx, "effect in backoff, skipping launch", "effect_key", string(key), "failures", failures)
			continue
		}
		s.launch(key, effect, snapshot)
	}

	for key, re := range s.running {
		if _, ok := desired[key]; !ok {
			re.cancel()
		}
	}
}

func (s *Scheduler) launch(key core.EffectKey, effect core.Effect, snapshot models.AgentState) {
	runner, ok := s.runners[effect.Kind()]
	if !ok {
		s.logger.Warn(s.baseCtx, "no runner configured for effect kind", "effect_kind", string(effect.Kind()))
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.running[key] = &runningEffect{cancel: cancel, kind: effect.Kind(), startedAt: time.Now()}

	if s.metrics != nil {
		s.metrics.EffectStarted(string(effect.Kind()))
	}
	s.sink.Emit(s.baseCtx, Event{Type: EventEffectStarted, State: snapshot, EffectKey: key, EffectKind: effect.Kind()})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		err := runner.Run(ctx, snapshot, effect, s.Dispatch)
		done := effectDoneMsg{
			key:       key,
			kind:      effect.Kind(),
			err:       err,
			cancelled: ctx.Err() != nil,
			duration:  time.Since(start),
		}
		select {
		case s.internal <- done:
		case <-s.baseCtx.Done():
		}
	}()
}

func flatten(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func signalName(signal core.Signal) string {
	switch signal.(type) {
	case core.UserMessageReceived:
		return "user-message-received"
	case core.AssistantChunkReceived:
		return "assistant-chunk-received"
	case core.AssistantMessageComplete:
		return "assistant-message-complete"
	case core.ActionRequestRefined:
		return "action-request-refined"
	case core.ActionCompleted:
		return "action-completed"
	case core.ActionCancelledByUser:
		return "action-cancelled-by-user"
	case core.ReactionComplete:
		return "reaction-complete"
	default:
		return "unknown"
	}
}
