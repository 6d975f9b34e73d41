package scheduler

import (
	"context"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/pkg/models"
)

// EventType names the notifications a Scheduler publishes to its sinks.
type EventType string

const (
	EventStateUpdated   EventType = "state-updated"
	EventEffectStarted  EventType = "effect-started"
	EventEffectCancelled EventType = "effect-cancelled"
	EventEffectCompleted EventType = "effect-completed"
	EventEffectFailed   EventType = "effect-failed"
)

// Event is the notification payload delivered to every subscribed sink. The
// State field is always the state immediately after the signal that
// triggered the notification — never a later one.
type Event struct {
	Type  EventType
	State models.AgentState

	EffectKey  core.EffectKey
	EffectKind core.EffectKind
	Err        error
}

// Sink receives scheduler events. Implementations must be safe to call from
// the scheduler's single dispatch goroutine and must not block it for long.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// NopSink discards every event. Used when a caller has not configured
// observability or persistence.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// MultiSink fans an event out to every wrapped sink in order. A nil sink
// passed to NewMultiSink is filtered out.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m.sinks {
		s.Emit(ctx, e)
	}
}

// ChannelSink sends every event to a channel, dropping it if the channel is
// full rather than blocking the dispatch loop.
type ChannelSink struct {
	ch chan<- Event
}

func NewChannelSink(ch chan<- Event) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Emit(ctx context.Context, e Event) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// CallbackSink wraps a plain function as a Sink, for inline subscription
// without defining a named type.
type CallbackSink struct {
	fn func(ctx context.Context, e Event)
}

func NewCallbackSink(fn func(ctx context.Context, e Event)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Emit(ctx context.Context, e Event) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}
