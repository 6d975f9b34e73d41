// Package plan implements the pure effect planner: a query over AgentState
// that derives the desired set of concurrent work, keyed so the scheduler
// can diff it against what is currently running.
package plan

import (
	"fmt"
	"sort"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/pkg/models"
)

// EffectsAt computes the desired effect set for state. It carries no state
// of its own and is safe to call repeatedly with no observable difference
// other than allocation — calling it twice on the same state yields
// identical keys.
func EffectsAt(state models.AgentState) map[core.EffectKey]core.Effect {
	effects := make(map[core.EffectKey]core.Effect)

	for messageID := range state.Replies {
		e := core.ReplyEffect{MessageID: messageID}
		effects[e.Key()] = e
	}

	if e, ok := reactionEffect(state); ok {
		effects[e.Key()] = e
	}

	for id, action := range state.Actions {
		if action.Response != nil {
			continue
		}
		if action.Parameter == nil {
			if _, defined := state.ActionDefinitions[action.Request.ActionName]; defined {
				e := core.RefineEffect{ActionID: id}
				effects[e.Key()] = e
			}
			continue
		}
		e := core.ActRequestEffect{ActionID: id}
		effects[e.Key()] = e
	}

	return effects
}

// reactionEffect reports whether a reaction is warranted and, if so, the
// effect whose key is derived from the newest qualifying input so that an
// in-flight reaction survives unrelated state changes.
func reactionEffect(state models.AgentState) (core.ReactionEffect, bool) {
	maxTimestamp := state.LastReactionAt
	var latestActionID, latestUserMessageID string

	for id, action := range state.Actions {
		if action.Response == nil {
			continue
		}
		if action.Response.At <= state.LastReactionAt {
			continue
		}
		if action.Response.At > maxTimestamp || (action.Response.At == maxTimestamp && id > latestActionID) {
			maxTimestamp = action.Response.At
			latestActionID = id
		}
	}

	for _, msg := range state.HistoryMessages {
		if msg.Role != models.RoleUser {
			continue
		}
		if msg.Timestamp <= state.LastReactionAt {
			continue
		}
		if msg.Timestamp > maxTimestamp || (msg.Timestamp == maxTimestamp && msg.ID > latestUserMessageID) {
			maxTimestamp = msg.Timestamp
			latestUserMessageID = msg.ID
		}
	}

	if maxTimestamp <= state.LastReactionAt {
		return core.ReactionEffect{}, false
	}

	return core.ReactionEffect{
		PlanKey: fmt.Sprintf("%d-%s-%s", maxTimestamp, latestActionID, latestUserMessageID),
	}, true
}

// unrespondedUserMessages returns, in timestamp order, the user history
// messages newer than the watermark. Used by the Reaction runner to build
// its initial iteration state.
func UnrespondedUserMessages(state models.AgentState) []models.HistoryMessage {
	var out []models.HistoryMessage
	for _, msg := range state.HistoryMessages {
		if msg.Role == models.RoleUser && msg.Timestamp > state.LastReactionAt {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// UnrespondedActions returns the action IDs whose response was resolved
// after the watermark, in no particular order — callers needing determinism
// should sort.
func UnrespondedActions(state models.AgentState) []string {
	var out []string
	for id, action := range state.Actions {
		if action.Response != nil && action.Response.At > state.LastReactionAt {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
