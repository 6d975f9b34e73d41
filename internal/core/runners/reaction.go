// Package runners implements the scheduler.Runner for each of the four
// effect kinds the planner produces, per the runtime core's effect runner
// algorithms.
package runners

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/internal/core/plan"
	"github.com/haasonsaas/reactor/internal/core/scheduler"
	"github.com/haasonsaas/reactor/internal/llm"
	"github.com/haasonsaas/reactor/pkg/models"
)

var iterationDecisionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"type": {"type": "string", "enum": ["decision-made", "more-history", "action-detail"]},
		"decision": {
			"type": "object",
			"properties": {
				"kind": {"type": "string", "enum": ["reply-to-user", "adjust-actions", "noop"]},
				"relatedActionIds": {"type": "array", "items": {"type": "string"}},
				"cancelActionIds": {"type": "array", "items": {"type": "string"}},
				"newActions": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"actionName": {"type": "string"},
							"initialIntent": {"type": "string"}
						},
						"required": ["actionName"]
					}
				}
			},
			"required": ["kind"]
		},
		"ids": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["type"]
}`)

type reactionDecisionPayload struct {
	Type     string                `json:"type"`
	Decision *reactionDecisionJSON `json:"decision,omitempty"`
	IDs      []string              `json:"ids,omitempty"`
}

type reactionDecisionJSON struct {
	Kind             string                  `json:"kind"`
	RelatedActionIDs []string                `json:"relatedActionIds,omitempty"`
	CancelActionIDs  []string                `json:"cancelActionIds,omitempty"`
	NewActions       []reactionNewActionJSON `json:"newActions,omitempty"`
}

type reactionNewActionJSON struct {
	ActionName    string `json:"actionName"`
	InitialIntent string `json:"initialIntent"`
}

// ReactionRunner implements the Reaction effect: the iterative think loop
// that decides whether to reply to the user, adjust in-flight actions, or
// do nothing, per §4.4.1.
type ReactionRunner struct {
	Think                  llm.Think
	InitialHistoryCount    int
	AdditionalHistoryCount int
	NewMessageID           func() string
	NewActionID            func() string
	Now                    func() int64
}

// NewReactionRunner builds a ReactionRunner, applying the documented
// defaults (10 / 5) when the caller passes zero.
func NewReactionRunner(think llm.Think, initialHistoryCount, additionalHistoryCount int) *ReactionRunner {
	if initialHistoryCount <= 0 {
		initialHistoryCount = 10
	}
	if additionalHistoryCount <= 0 {
		additionalHistoryCount = 5
	}
	return &ReactionRunner{
		Think:                  think,
		InitialHistoryCount:    initialHistoryCount,
		AdditionalHistoryCount: additionalHistoryCount,
		NewMessageID:           func() string { return uuid.NewString() },
		NewActionID:            func() string { return uuid.NewString() },
		Now:                    func() int64 { return time.Now().UnixMilli() },
	}
}

var _ scheduler.Runner = (*ReactionRunner)(nil)

// Run implements scheduler.Runner.
func (r *ReactionRunner) Run(ctx context.Context, snapshot models.AgentState, effect core.Effect, dispatch func(core.Signal)) error {
	unrespondedMessages := plan.UnrespondedUserMessages(snapshot)
	unrespondedActionIDs := plan.UnrespondedActions(snapshot)

	maxWatermark := snapshot.LastReactionAt
	for _, m := range unrespondedMessages {
		if m.Timestamp > maxWatermark {
			maxWatermark = m.Timestamp
		}
	}
	for _, id := range unrespondedActionIDs {
		if a, ok := snapshot.Actions[id]; ok && a.Response != nil && a.Response.At > maxWatermark {
			maxWatermark = a.Response.At
		}
	}

	if len(unrespondedMessages) == 0 && len(unrespondedActionIDs) == 0 {
		dispatch(core.ReactionComplete{Decision: core.Noop{}, Timestamp: maxWatermark})
		return nil
	}

	currentHistoryCount := r.InitialHistoryCount
	loaded := make(map[string]bool, len(unrespondedActionIDs))
	for _, id := range unrespondedActionIDs {
		loaded[id] = true
	}

	var decision core.ReactionDecision

loop:
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		window, moreAvailable := buildReactionWindow(snapshot, currentHistoryCount)
		systemPrompt := func(toolName string) string {
			return buildReactionSystemPrompt(snapshot, loaded, moreAvailable)
		}

		raw, err := r.Think.Think(ctx, systemPrompt, window, iterationDecisionSchema)
		if err != nil {
			return err
		}

		var payload reactionDecisionPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return fmt.Errorf("runners: decode reaction decision: %w", err)
		}

		switch payload.Type {
		case "decision-made":
			decision = toReactionDecision(payload.Decision)
			break loop
		case "more-history":
			if !moreAvailable {
				decision = core.Noop{}
				break loop
			}
			currentHistoryCount += r.AdditionalHistoryCount
		case "action-detail":
			for _, id := range payload.IDs {
				loaded[id] = true
			}
		default:
			return fmt.Errorf("runners: unknown reaction decision type %q", payload.Type)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}

	decision = r.injectFreshIDs(snapshot, decision)

	select {
	case <-ctx.Done():
		return nil
	default:
	}

	dispatch(core.ReactionComplete{Decision: decision, Timestamp: maxWatermark})
	return nil
}

func buildReactionWindow(state models.AgentState, currentHistoryCount int) ([]models.HistoryMessage, bool) {
	var older, newer []models.HistoryMessage
	for _, m := range state.HistoryMessages {
		if m.Timestamp <= state.LastReactionAt {
			older = append(older, m)
		} else {
			newer = append(newer, m)
		}
	}

	moreAvailable := currentHistoryCount < len(older)

	start := len(older) - currentHistoryCount
	if start < 0 {
		start = 0
	}

	window := append([]models.HistoryMessage{}, older[start:]...)
	window = append(window, newer...)
	return window, moreAvailable
}

func buildReactionSystemPrompt(state models.AgentState, loaded map[string]bool, moreAvailable bool) string {
	var b strings.Builder
	b.WriteString(state.SystemPrompt)

	b.WriteString("\n\nAvailable actions:\n")
	for _, def := range state.ActionDefinitions {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}

	b.WriteString("\nActions so far:\n")
	for id, a := range state.Actions {
		status := "pending"
		if a.Response != nil {
			if a.Response.Cancelled {
				status = "cancelled"
			} else {
				status = "completed"
			}
		}
		fmt.Fprintf(&b, "- %s (%s) intention=%q status=%s\n", id, a.Request.ActionName, a.Request.Intention, status)
		if loaded[id] {
			parameter := ""
			if a.Parameter != nil {
				parameter = *a.Parameter
			}
			fmt.Fprintf(&b, "  parameter=%s\n", parameter)
			if a.Response != nil {
				fmt.Fprintf(&b, "  result=%q\n", a.Response.Result)
			}
		}
	}

	if moreAvailable {
		b.WriteString("\nMore history is available; respond with more-history to request it.\n")
	}

	return b.String()
}

func toReactionDecision(d *reactionDecisionJSON) core.ReactionDecision {
	if d == nil {
		return core.Noop{}
	}
	switch d.Kind {
	case "reply-to-user":
		return core.ReplyToUser{RelatedActionIDs: d.RelatedActionIDs}
	case "adjust-actions":
		specs := make([]core.NewActionSpec, 0, len(d.NewActions))
		for _, na := range d.NewActions {
			specs = append(specs, core.NewActionSpec{ActionName: na.ActionName, InitialIntent: na.InitialIntent})
		}
		return core.AdjustActions{CancelActionIDs: d.CancelActionIDs, NewActions: specs}
	default:
		return core.Noop{}
	}
}

// injectFreshIDs mints the IDs the transition itself never generates: a new
// messageId for reply-to-user, and a new actionId for every newly specified
// action, per the design note that IDs are created at exactly two places.
func (r *ReactionRunner) injectFreshIDs(snapshot models.AgentState, decision core.ReactionDecision) core.ReactionDecision {
	switch d := decision.(type) {
	case core.ReplyToUser:
		d.MessageID = r.NewMessageID()
		if len(snapshot.HistoryMessages) > 0 {
			d.LastHistoryMessageID = snapshot.HistoryMessages[len(snapshot.HistoryMessages)-1].ID
		}
		return d
	case core.AdjustActions:
		for i := range d.NewActions {
			d.NewActions[i].ActionID = r.NewActionID()
		}
		return d
	default:
		return decision
	}
}
