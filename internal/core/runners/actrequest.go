package runners

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/internal/core/scheduler"
	"github.com/haasonsaas/reactor/pkg/models"
)

// Act invokes one named action with its already-refined parameter and
// returns the result to surface via ActionCompleted. Implemented by
// internal/actionrunner.Registry.Act.
type Act func(ctx context.Context, actionName string, parameter string) (string, error)

// ActRequestRunner implements the ActRequest effect: it reads the action's
// name and parameter from the snapshot, invokes act(), and dispatches
// ActionCompleted, per §4.4.3.
type ActRequestRunner struct {
	Act Act
	Now func() int64
}

func NewActRequestRunner(act Act) *ActRequestRunner {
	return &ActRequestRunner{Act: act, Now: func() int64 { return time.Now().UnixMilli() }}
}

var _ scheduler.Runner = (*ActRequestRunner)(nil)

func (r *ActRequestRunner) Run(ctx context.Context, snapshot models.AgentState, effect core.Effect, dispatch func(core.Signal)) error {
	e, ok := effect.(core.ActRequestEffect)
	if !ok {
		return fmt.Errorf("runners: act request runner received %T", effect)
	}

	action, ok := snapshot.Actions[e.ActionID]
	if !ok || action.Parameter == nil {
		return nil
	}

	result, err := r.Act(ctx, action.Request.ActionName, *action.Parameter)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	default:
	}

	dispatch(core.ActionCompleted{ActionID: e.ActionID, Result: result, Timestamp: r.Now()})
	return nil
}
