// Package transition implements the pure signal-to-state fold that is the
// only way an AgentState may change. Apply is total over core.Signal, free
// of I/O, and never mints IDs — every ID arrives with the signal that
// introduces it.
package transition

import (
	"fmt"
	"sort"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/pkg/models"
)

// Apply maps (state, signal) to a new state, plus any log events describing
// drops or coercions the transition performed along the way. The input
// state is never mutated.
func Apply(state models.AgentState, signal core.Signal) (models.AgentState, []core.LogEvent) {
	next := state.Clone()

	switch sig := signal.(type) {
	case core.UserMessageReceived:
		return applyUserMessageReceived(next, sig)
	case core.AssistantChunkReceived:
		return applyAssistantChunkReceived(next, sig)
	case core.AssistantMessageComplete:
		return applyAssistantMessageComplete(next, sig)
	case core.ActionRequestRefined:
		return applyActionRequestRefined(next, sig)
	case core.ActionCompleted:
		return applyActionCompleted(next, sig)
	case core.ActionCancelledByUser:
		return applyActionCancelledByUser(next, sig)
	case core.ReactionComplete:
		return applyReactionComplete(next, sig)
	default:
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "transition: unknown signal type, dropping",
			Fields:  map[string]any{"type": fmt.Sprintf("%T", signal)},
		}}
	}
}

func applyUserMessageReceived(state models.AgentState, sig core.UserMessageReceived) (models.AgentState, []core.LogEvent) {
	if sig.Timestamp <= state.LastHistoryTimestamp() {
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "dropping out-of-order user message",
			Fields: map[string]any{
				"message_id": sig.MessageID,
				"timestamp":  sig.Timestamp,
				"last":       state.LastHistoryTimestamp(),
			},
		}}
	}

	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{
		ID:        sig.MessageID,
		Role:      models.RoleUser,
		Content:   sig.Content,
		Timestamp: sig.Timestamp,
	})
	return state, nil
}

func applyAssistantChunkReceived(state models.AgentState, sig core.AssistantChunkReceived) (models.AgentState, []core.LogEvent) {
	rc, ok := state.Replies[sig.MessageID]
	if !ok {
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "dropping chunk for unknown reply context",
			Fields:  map[string]any{"message_id": sig.MessageID},
		}}
	}

	rc.Chunks = append(rc.Chunks, sig.Chunk)
	state.Replies[sig.MessageID] = rc
	return state, nil
}

func applyAssistantMessageComplete(state models.AgentState, sig core.AssistantMessageComplete) (models.AgentState, []core.LogEvent) {
	rc, ok := state.Replies[sig.MessageID]
	if !ok {
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "dropping completion for unknown reply context",
			Fields:  map[string]any{"message_id": sig.MessageID},
		}}
	}

	if sig.Timestamp <= state.LastHistoryTimestamp() {
		delete(state.Replies, sig.MessageID)
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "reply completion would violate history ordering; dropping reply context without appending",
			Fields:  map[string]any{"message_id": sig.MessageID, "timestamp": sig.Timestamp},
		}}
	}

	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{
		ID:        sig.MessageID,
		Role:      models.RoleAssistant,
		Content:   rc.Content(),
		Timestamp: sig.Timestamp,
	})
	delete(state.Replies, sig.MessageID)
	return state, nil
}

func applyActionRequestRefined(state models.AgentState, sig core.ActionRequestRefined) (models.AgentState, []core.LogEvent) {
	a, ok := state.Actions[sig.ActionID]
	if !ok {
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "dropping refinement for unknown action",
			Fields:  map[string]any{"action_id": sig.ActionID},
		}}
	}

	param := sig.Parameter
	a.Parameter = &param
	state.Actions[sig.ActionID] = a
	return state, nil
}

func applyActionCompleted(state models.AgentState, sig core.ActionCompleted) (models.AgentState, []core.LogEvent) {
	a, ok := state.Actions[sig.ActionID]
	if !ok {
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "dropping completion for unknown action",
			Fields:  map[string]any{"action_id": sig.ActionID},
		}}
	}

	a.Response = &models.ActionResponse{
		Completed: true,
		Result:    sig.Result,
		At:        sig.Timestamp,
	}
	state.Actions[sig.ActionID] = a
	return state, nil
}

func applyActionCancelledByUser(state models.AgentState, sig core.ActionCancelledByUser) (models.AgentState, []core.LogEvent) {
	a, ok := state.Actions[sig.ActionID]
	if !ok {
		return state, []core.LogEvent{{
			Level:   core.LogLevelWarn,
			Message: "dropping cancellation for unknown action",
			Fields:  map[string]any{"action_id": sig.ActionID},
		}}
	}
	if a.Response != nil {
		// Already resolved; cancellation loses the race silently.
		return state, nil
	}

	a.Response = &models.ActionResponse{Cancelled: true, At: sig.Timestamp}
	state.Actions[sig.ActionID] = a
	return state, nil
}

func applyReactionComplete(state models.AgentState, sig core.ReactionComplete) (models.AgentState, []core.LogEvent) {
	var events []core.LogEvent

	switch decision := sig.Decision.(type) {
	case core.ReplyToUser:
		related := append([]string(nil), decision.RelatedActionIDs...)
		sort.Strings(related)
		state.Replies[decision.MessageID] = models.ReplyContext{
			MessageID:        decision.MessageID,
			Timestamp:        sig.Timestamp,
			RelatedActionIDs: related,
			Chunks:           nil,
		}

	case core.AdjustActions:
		for _, id := range decision.CancelActionIDs {
			a, ok := state.Actions[id]
			if !ok || a.Response != nil {
				continue
			}
			a.Response = &models.ActionResponse{Cancelled: true, At: sig.Timestamp}
			state.Actions[id] = a
		}
		for _, spec := range decision.NewActions {
			state.Actions[spec.ActionID] = models.Action{
				ID: spec.ActionID,
				Request: models.ActionRequest{
					ActionName: spec.ActionName,
					Intention:  spec.InitialIntent,
					CreatedAt:  sig.Timestamp,
				},
			}
		}

	case core.Noop:
		// nothing beyond the watermark update below

	default:
		events = append(events, core.LogEvent{
			Level:   core.LogLevelWarn,
			Message: "reaction complete with unknown decision type; treating as noop",
			Fields:  map[string]any{"type": fmt.Sprintf("%T", sig.Decision)},
		})
	}

	if sig.Timestamp > state.LastReactionAt {
		state.LastReactionAt = sig.Timestamp
	}
	return state, events
}
