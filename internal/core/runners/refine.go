package runners

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/internal/core/scheduler"
	"github.com/haasonsaas/reactor/internal/llm"
	"github.com/haasonsaas/reactor/pkg/models"
)

// RefineRunner implements the Refine effect: it fills in an action's
// parameter by calling think() with the action definition's parameter
// schema as the required output shape, per §4.4.2.
type RefineRunner struct {
	Think llm.Think
}

func NewRefineRunner(think llm.Think) *RefineRunner {
	return &RefineRunner{Think: think}
}

var _ scheduler.Runner = (*RefineRunner)(nil)

func (r *RefineRunner) Run(ctx context.Context, snapshot models.AgentState, effect core.Effect, dispatch func(core.Signal)) error {
	e, ok := effect.(core.RefineEffect)
	if !ok {
		return fmt.Errorf("runners: refine runner received %T", effect)
	}

	action, ok := snapshot.Actions[e.ActionID]
	if !ok {
		return nil
	}
	def, ok := snapshot.ActionDefinitions[action.Request.ActionName]
	if !ok {
		return fmt.Errorf("runners: no action definition for %q", action.Request.ActionName)
	}

	systemPrompt := func(toolName string) string {
		return fmt.Sprintf(
			"%s\n\nYou are determining the parameter for action %q.\nIntention: %s\nRespond with JSON matching the required parameter schema.",
			snapshot.SystemPrompt, def.Name, action.Request.Intention,
		)
	}

	raw, err := r.Think.Think(ctx, systemPrompt, snapshot.HistoryMessages, def.ParameterSchema)
	if err != nil {
		return err
	}

	parameter, err := normalizeRefinedParameter(raw)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	default:
	}

	dispatch(core.ActionRequestRefined{ActionID: e.ActionID, Parameter: parameter})
	return nil
}

// normalizeRefinedParameter unwraps a top-level "parameters" field when
// present; otherwise the whole decoded value is the parameter payload.
func normalizeRefinedParameter(raw string) (string, error) {
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &asObject); err == nil {
		if inner, ok := asObject["parameters"]; ok {
			return string(inner), nil
		}
	}
	return raw, nil
}
