package transition

import (
	"testing"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/pkg/models"
)

func newState() models.AgentState {
	return models.New("be helpful", map[string]models.ActionDefinition{
		"search": {Name: "search", Description: "search the web"},
	})
}

func TestUserMessageReceivedAppendsHistory(t *testing.T) {
	state := newState()

	next, events := Apply(state, core.UserMessageReceived{MessageID: "m1", Content: "hi", Timestamp: 100})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	if len(next.HistoryMessages) != 1 || next.HistoryMessages[0].ID != "m1" {
		t.Fatalf("expected message appended, got %+v", next.HistoryMessages)
	}
	if len(state.HistoryMessages) != 0 {
		t.Fatalf("input state must not be mutated")
	}
}

func TestUserMessageReceivedDropsOutOfOrder(t *testing.T) {
	state := newState()
	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{ID: "m0", Timestamp: 200})

	next, events := Apply(state, core.UserMessageReceived{MessageID: "m1", Content: "late", Timestamp: 150})
	if len(events) != 1 || events[0].Level != core.LogLevelWarn {
		t.Fatalf("expected one warn event, got %v", events)
	}
	if len(next.HistoryMessages) != 1 {
		t.Fatalf("expected message dropped, got %+v", next.HistoryMessages)
	}
}

func TestAssistantChunkReceivedRequiresReplyContext(t *testing.T) {
	state := newState()

	next, events := Apply(state, core.AssistantChunkReceived{MessageID: "m1", Chunk: "hi"})
	if len(events) != 1 {
		t.Fatalf("expected drop event for missing reply context, got %v", events)
	}
	if len(next.Replies) != 0 {
		t.Fatalf("expected no reply context created")
	}
}

func TestAssistantChunkReceivedAppendsToReplyContext(t *testing.T) {
	state := newState()
	state.Replies["m1"] = models.ReplyContext{MessageID: "m1"}

	next, events := Apply(state, core.AssistantChunkReceived{MessageID: "m1", Chunk: "he"})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	next, events = Apply(next, core.AssistantChunkReceived{MessageID: "m1", Chunk: "llo"})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	if got := next.Replies["m1"].Content(); got != "hello" {
		t.Fatalf("expected concatenated content %q, got %q", "hello", got)
	}
}

func TestAssistantMessageCompleteFoldsChunksIntoHistory(t *testing.T) {
	state := newState()
	state.Replies["m1"] = models.ReplyContext{MessageID: "m1", Chunks: []string{"he", "llo"}}

	next, events := Apply(state, core.AssistantMessageComplete{MessageID: "m1", Timestamp: 100})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	if len(next.HistoryMessages) != 1 || next.HistoryMessages[0].Content != "hello" {
		t.Fatalf("expected folded history message, got %+v", next.HistoryMessages)
	}
	if _, ok := next.Replies["m1"]; ok {
		t.Fatalf("expected reply context removed after completion")
	}
}

func TestAssistantMessageCompleteOutOfOrderDropsWithoutAppending(t *testing.T) {
	state := newState()
	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{ID: "m0", Timestamp: 500})
	state.Replies["m1"] = models.ReplyContext{MessageID: "m1", Chunks: []string{"late"}}

	next, events := Apply(state, core.AssistantMessageComplete{MessageID: "m1", Timestamp: 100})
	if len(events) != 1 {
		t.Fatalf("expected one warn event, got %v", events)
	}
	if len(next.HistoryMessages) != 1 {
		t.Fatalf("expected no history appended, got %+v", next.HistoryMessages)
	}
	if _, ok := next.Replies["m1"]; ok {
		t.Fatalf("expected reply context removed even though nothing was appended")
	}
}

func TestActionRequestRefinedSetsParameter(t *testing.T) {
	state := newState()
	state.Actions["a1"] = models.Action{ID: "a1"}

	next, events := Apply(state, core.ActionRequestRefined{ActionID: "a1", Parameter: `{"q":"x"}`})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	a := next.Actions["a1"]
	if a.Parameter == nil || *a.Parameter != `{"q":"x"}` {
		t.Fatalf("expected parameter set, got %+v", a)
	}
}

func TestActionRequestRefinedDropsForUnknownAction(t *testing.T) {
	state := newState()

	_, events := Apply(state, core.ActionRequestRefined{ActionID: "missing", Parameter: "x"})
	if len(events) != 1 {
		t.Fatalf("expected one drop event, got %v", events)
	}
}

func TestActionCompletedSetsResponse(t *testing.T) {
	state := newState()
	state.Actions["a1"] = models.Action{ID: "a1"}

	next, events := Apply(state, core.ActionCompleted{ActionID: "a1", Result: "done", Timestamp: 10})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	a := next.Actions["a1"]
	if a.Response == nil || !a.Response.Completed || a.Response.Result != "done" {
		t.Fatalf("expected completed response, got %+v", a.Response)
	}
}

func TestActionCancelledByUserOnlyAppliesWhenUnresolved(t *testing.T) {
	state := newState()
	state.Actions["a1"] = models.Action{ID: "a1", Response: &models.ActionResponse{Completed: true, Result: "done"}}

	next, _ := Apply(state, core.ActionCancelledByUser{ActionID: "a1", Timestamp: 10})
	a := next.Actions["a1"]
	if !a.Response.Completed || a.Response.Cancelled {
		t.Fatalf("expected already-resolved action untouched, got %+v", a.Response)
	}

	state2 := newState()
	state2.Actions["a2"] = models.Action{ID: "a2"}
	next2, _ := Apply(state2, core.ActionCancelledByUser{ActionID: "a2", Timestamp: 10})
	a2 := next2.Actions["a2"]
	if a2.Response == nil || !a2.Response.Cancelled {
		t.Fatalf("expected cancellation applied, got %+v", a2.Response)
	}
}

func TestReactionCompleteReplyToUserOpensReplyContext(t *testing.T) {
	state := newState()

	next, events := Apply(state, core.ReactionComplete{
		Decision:  core.ReplyToUser{MessageID: "m1", RelatedActionIDs: []string{"b", "a"}},
		Timestamp: 50,
	})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	rc, ok := next.Replies["m1"]
	if !ok {
		t.Fatalf("expected reply context opened")
	}
	if rc.RelatedActionIDs[0] != "a" || rc.RelatedActionIDs[1] != "b" {
		t.Fatalf("expected related action ids sorted, got %v", rc.RelatedActionIDs)
	}
	if next.LastReactionAt != 50 {
		t.Fatalf("expected watermark advanced to 50, got %d", next.LastReactionAt)
	}
}

func TestReactionCompleteAdjustActionsCancelsAndCreates(t *testing.T) {
	state := newState()
	state.Actions["old"] = models.Action{ID: "old"}

	next, events := Apply(state, core.ReactionComplete{
		Decision: core.AdjustActions{
			CancelActionIDs: []string{"old"},
			NewActions: []core.NewActionSpec{
				{ActionID: "new", ActionName: "search", InitialIntent: "look something up"},
			},
		},
		Timestamp: 20,
	})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
	if !next.Actions["old"].Response.Cancelled {
		t.Fatalf("expected old action cancelled")
	}
	newAction, ok := next.Actions["new"]
	if !ok || newAction.Request.ActionName != "search" {
		t.Fatalf("expected new action created, got %+v", newAction)
	}
}

func TestReactionCompleteWatermarkOnlyAdvances(t *testing.T) {
	state := newState()
	state.LastReactionAt = 100

	next, _ := Apply(state, core.ReactionComplete{Decision: core.Noop{}, Timestamp: 50})
	if next.LastReactionAt != 100 {
		t.Fatalf("expected watermark to stay at 100, got %d", next.LastReactionAt)
	}
}
