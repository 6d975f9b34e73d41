// Package actionrunner implements the act() contract the ActRequest effect
// runner depends on: a named, schema-validated catalogue of actions the
// agent can invoke, grounded on the tool registry/executor split the rest
// of the codebase uses for its own tool calling.
package actionrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	ijsonschema "github.com/haasonsaas/reactor/internal/jsonschema"
)

// Action is one named, schema-validated capability the agent can request.
// Run receives the already-validated parameter JSON and returns the result
// to surface back to the conversation via ActionCompleted.
type Action interface {
	Name() string
	ParameterSchema() json.RawMessage
	Run(ctx context.Context, parameter json.RawMessage) (string, error)
}

// ActionFunc adapts a plain function to the Action interface for simple
// cases that need no extra state.
type ActionFunc struct {
	ActionName string
	Schema     json.RawMessage
	Fn         func(ctx context.Context, parameter json.RawMessage) (string, error)
}

func (f ActionFunc) Name() string                    { return f.ActionName }
func (f ActionFunc) ParameterSchema() json.RawMessage { return f.Schema }
func (f ActionFunc) Run(ctx context.Context, parameter json.RawMessage) (string, error) {
	return f.Fn(ctx, parameter)
}

// Registry holds the set of actions the ActRequest runner can invoke by
// name. It is safe for concurrent registration and execution.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
	timeout time.Duration
}

// NewRegistry creates an empty registry. perActionTimeout bounds how long a
// single Run call may take; zero disables the bound.
func NewRegistry(perActionTimeout time.Duration) *Registry {
	return &Registry{
		actions: make(map[string]Action),
		timeout: perActionTimeout,
	}
}

// Register adds or replaces an action by name.
func (r *Registry) Register(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.Name()] = a
}

// Get returns the action registered under name, if any.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Act validates parameter against the named action's schema and runs it.
// It is the concrete implementation of the runtime's act() contract that
// the ActRequest runner calls.
func (r *Registry) Act(ctx context.Context, actionName string, parameter json.RawMessage) (string, error) {
	action, ok := r.Get(actionName)
	if !ok {
		return "", fmt.Errorf("actionrunner: no action registered for %q", actionName)
	}

	if schema := action.ParameterSchema(); len(schema) > 0 {
		if err := ijsonschema.Validate(actionName, schema, parameter); err != nil {
			return "", fmt.Errorf("actionrunner: %w", err)
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return action.Run(runCtx, parameter)
}
