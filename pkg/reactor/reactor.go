// Package reactor is the public entry point for embedding the runtime
// core: Open wires the pure state machine, the effect planner, and the
// concurrent scheduler to a caller-supplied LLM, action registry, and
// persistence backend, and returns a handle for driving and observing one
// agent.
package reactor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/reactor/internal/actionrunner"
	"github.com/haasonsaas/reactor/internal/config"
	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/internal/core/runners"
	"github.com/haasonsaas/reactor/internal/core/scheduler"
	"github.com/haasonsaas/reactor/internal/observability"
	"github.com/haasonsaas/reactor/internal/persistence"
	"github.com/haasonsaas/reactor/pkg/models"
)

// Agent is a handle to one running reactor instance: the scheduler driving
// its state machine, plus the persistence committer keeping its content
// log current.
type Agent struct {
	key       string
	scheduler *scheduler.Scheduler
	committer *persistence.Committer
	store     persistence.Store
	ownsStore bool
	now       func() int64
}

// Open constructs or resumes the agent identified by key, a caller-chosen
// UUID: open(key, options) either restores the state at store.Head(key) or
// seeds a fresh one from options.SystemPrompt and the configured action
// catalogue, per §6.3 and §6.5.
func Open(key string, options config.Options) (*Agent, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, fmt.Errorf("reactor: key must be a UUID: %w", err)
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	store, ownsStore, err := persistence.OpenFromLocation(options.Persistence.Location, options.Persistence.CreateIfMissing, options.Persistence.Compression)
	if err != nil {
		return nil, fmt.Errorf("reactor: open persistence: %w", err)
	}

	return openWithStore(key, options, store, ownsStore)
}

// openWithStore is Open with the Store already resolved, split out so
// tests can reuse one in-memory Store instance across a close/reopen pair
// without routing it through a filesystem or DSN.
func openWithStore(key string, options config.Options, store persistence.Store, ownsStore bool) (*Agent, error) {
	defs, err := actionDefinitions(options.ActionDefinitions)
	if err != nil {
		if ownsStore {
			_ = store.Close()
		}
		return nil, err
	}

	initial := models.New(options.SystemPrompt, defs)
	if restored, _, ok, err := store.Head(context.Background(), key); err != nil {
		if ownsStore {
			_ = store.Close()
		}
		return nil, fmt.Errorf("reactor: read head for %s: %w", key, err)
	} else if ok {
		initial = restored
	}

	act := options.Act
	if act == nil {
		act = actionrunner.NewRegistry(0)
	}

	logger := observability.NewLogger(observability.LogConfig{})
	metrics := observability.NewMetrics()

	sched := scheduler.New(initial, scheduler.Config{
		Runners: scheduler.Runners{
			core.EffectKindReaction:   runners.NewReactionRunner(options.Think, options.Reaction.InitialHistoryCount, options.Reaction.AdditionalHistoryCount),
			core.EffectKindRefine:     runners.NewRefineRunner(options.Think),
			core.EffectKindActRequest: runners.NewActRequestRunner(actToStringAct(act)),
			core.EffectKindReply:      runners.NewReplyRunner(options.Speak),
		},
		Logger:  logger,
		Metrics: metrics,
	})

	committer := persistence.NewCommitter(store, key, options.Persistence.DebounceDelay(persistence.DefaultDebounceDelay), logger, metrics)
	sched.Subscribe(committer)

	return &Agent{
		key:       key,
		scheduler: sched,
		committer: committer,
		store:     store,
		ownsStore: ownsStore,
		now:       func() int64 { return time.Now().UnixMilli() },
	}, nil
}

func actionDefinitions(opts map[string]config.ActionDefinitionOptions) (map[string]models.ActionDefinition, error) {
	defs := make(map[string]models.ActionDefinition, len(opts))
	for name, o := range opts {
		if len(o.ParameterSchema) == 0 {
			return nil, fmt.Errorf("reactor: action %q is missing a parameter schema", name)
		}
		defs[name] = models.ActionDefinition{
			Name:            name,
			Description:     o.Description,
			ParameterSchema: o.ParameterSchema,
		}
	}
	return defs, nil
}

// actToStringAct adapts the schema-validated registry's json.RawMessage
// parameter to the runner's string-keyed Act contract: by the time an
// ActRequest effect runs, a Refine effect has already produced a
// validated JSON object as a plain string.
func actToStringAct(reg *actionrunner.Registry) runners.Act {
	return func(ctx context.Context, actionName string, parameter string) (string, error) {
		return reg.Act(ctx, actionName, json.RawMessage(parameter))
	}
}

// SendMessage injects a new user message into the conversation, per §6.4's
// sendMessage(content). It assigns a fresh message ID and the current wall
// clock as the message's timestamp.
func (a *Agent) SendMessage(content string) {
	a.scheduler.Dispatch(core.UserMessageReceived{
		MessageID: uuid.NewString(),
		Content:   content,
		Timestamp: a.now(),
	})
}

// GetState returns a snapshot of the agent's current state, per §6.4's
// getState().
func (a *Agent) GetState() models.AgentState {
	return a.scheduler.State()
}

// Subscribe registers sink to receive every future scheduler event:
// state updates and effect lifecycle notifications.
func (a *Agent) Subscribe(sink scheduler.Sink) {
	a.scheduler.Subscribe(sink)
}

// Close stops the scheduler, cancelling every running effect, then flushes
// any pending persistence commit and releases the store if Open created it.
// Always flush on close, per §9's design note.
func (a *Agent) Close() error {
	a.scheduler.Close()
	a.committer.Close()
	if a.ownsStore {
		return a.store.Close()
	}
	return nil
}
