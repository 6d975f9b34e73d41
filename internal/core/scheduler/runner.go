package scheduler

import (
	"context"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/pkg/models"
)

// Runner executes one effect against external collaborators. snapshot is
// immutable for the runner's lifetime — the scheduler re-launches under a
// new key rather than handing a runner fresher state. dispatch enqueues a
// signal onto the scheduler's single-writer dispatch loop; it is safe to
// call from any goroutine and at any time, including after ctx is
// cancelled (the scheduler itself decides whether a late signal is still
// honored, per the cooperative-cancellation contract).
//
// Run must check ctx at every suspension point and return promptly, without
// calling dispatch again, once ctx is done.
type Runner interface {
	Run(ctx context.Context, snapshot models.AgentState, effect core.Effect, dispatch func(core.Signal)) error
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, snapshot models.AgentState, effect core.Effect, dispatch func(core.Signal)) error

func (f RunnerFunc) Run(ctx context.Context, snapshot models.AgentState, effect core.Effect, dispatch func(core.Signal)) error {
	return f(ctx, snapshot, effect, dispatch)
}

// Runners maps each effect kind to the runner that executes it. A kind with
// no entry is planned but never launched; the scheduler logs and leaves its
// key perpetually desired (the caller is expected to configure all four
// kinds it intends to use).
type Runners map[core.EffectKind]Runner
