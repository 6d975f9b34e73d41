package plan

import (
	"testing"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/pkg/models"
)

func newState() models.AgentState {
	return models.New("be helpful", map[string]models.ActionDefinition{
		"search": {Name: "search"},
	})
}

func TestEffectsAtIsIdempotent(t *testing.T) {
	state := newState()
	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{ID: "m1", Role: models.RoleUser, Timestamp: 100})

	a := EffectsAt(state)
	b := EffectsAt(state)
	if len(a) != len(b) {
		t.Fatalf("expected stable effect count, got %d vs %d", len(a), len(b))
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			t.Fatalf("key %s present in first call but not second", k)
		}
	}
}

func TestEffectsAtReplyPerReplyContext(t *testing.T) {
	state := newState()
	state.Replies["m1"] = models.ReplyContext{MessageID: "m1"}

	effects := EffectsAt(state)
	e, ok := effects[core.EffectKey("reply-m1")]
	if !ok {
		t.Fatalf("expected reply effect for m1, got %v", effects)
	}
	if e.Kind() != core.EffectKindReply {
		t.Fatalf("expected reply kind, got %s", e.Kind())
	}
}

func TestEffectsAtReactionOnNewUserMessage(t *testing.T) {
	state := newState()
	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{ID: "m1", Role: models.RoleUser, Timestamp: 1000})

	effects := EffectsAt(state)
	var found bool
	for _, e := range effects {
		if e.Kind() == core.EffectKindReaction {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a reaction effect, got %v", effects)
	}
}

func TestEffectsAtNoReactionWhenNothingNew(t *testing.T) {
	state := newState()
	state.LastReactionAt = 1000
	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{ID: "m1", Role: models.RoleUser, Timestamp: 500})

	effects := EffectsAt(state)
	for _, e := range effects {
		if e.Kind() == core.EffectKindReaction {
			t.Fatalf("expected no reaction effect, got one: %v", e)
		}
	}
}

func TestEffectsAtReactionKeyStableAcrossUnrelatedChanges(t *testing.T) {
	state := newState()
	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{ID: "m1", Role: models.RoleUser, Timestamp: 1000})
	before := EffectsAt(state)

	// An unrelated change: a refine effect's action gets its parameter filled
	// in, which should not perturb the reaction key.
	state.Actions["a1"] = models.Action{ID: "a1", Request: models.ActionRequest{ActionName: "search"}}
	after := EffectsAt(state)

	var beforeKey, afterKey core.EffectKey
	for k, e := range before {
		if e.Kind() == core.EffectKindReaction {
			beforeKey = k
		}
	}
	for k, e := range after {
		if e.Kind() == core.EffectKindReaction {
			afterKey = k
		}
	}
	if beforeKey == "" || afterKey == "" {
		t.Fatalf("expected reaction effect present in both plans")
	}
	if beforeKey != afterKey {
		t.Fatalf("expected stable reaction key, got %s vs %s", beforeKey, afterKey)
	}
}

func TestEffectsAtRefineForUndefinedActionIsSkipped(t *testing.T) {
	state := newState()
	state.Actions["a1"] = models.Action{ID: "a1", Request: models.ActionRequest{ActionName: "unknown-action"}}

	effects := EffectsAt(state)
	if _, ok := effects[core.EffectKey("refine-a1")]; ok {
		t.Fatalf("expected no refine effect for an action with no matching definition")
	}
}

func TestEffectsAtRefineThenActRequest(t *testing.T) {
	state := newState()
	state.Actions["a1"] = models.Action{ID: "a1", Request: models.ActionRequest{ActionName: "search"}}

	effects := EffectsAt(state)
	if _, ok := effects[core.EffectKey("refine-a1")]; !ok {
		t.Fatalf("expected refine effect before parameter is set")
	}

	param := `{"query":"x"}`
	a := state.Actions["a1"]
	a.Parameter = &param
	state.Actions["a1"] = a

	effects = EffectsAt(state)
	if _, ok := effects[core.EffectKey("refine-a1")]; ok {
		t.Fatalf("expected no refine effect once parameter is set")
	}
	if _, ok := effects[core.EffectKey("act-a1")]; !ok {
		t.Fatalf("expected act-request effect once parameter is set")
	}
}

func TestEffectsAtNoEffectForResolvedAction(t *testing.T) {
	state := newState()
	param := `{"query":"x"}`
	state.Actions["a1"] = models.Action{
		ID:        "a1",
		Request:   models.ActionRequest{ActionName: "search"},
		Parameter: &param,
		Response:  &models.ActionResponse{Completed: true, Result: "ok"},
	}

	effects := EffectsAt(state)
	if _, ok := effects[core.EffectKey("act-a1")]; ok {
		t.Fatalf("expected no act-request effect for resolved action")
	}
	if _, ok := effects[core.EffectKey("refine-a1")]; ok {
		t.Fatalf("expected no refine effect for resolved action")
	}
}

func TestUnrespondedHelpers(t *testing.T) {
	state := newState()
	state.LastReactionAt = 100
	state.HistoryMessages = append(state.HistoryMessages,
		models.HistoryMessage{ID: "old", Role: models.RoleUser, Timestamp: 50},
		models.HistoryMessage{ID: "new", Role: models.RoleUser, Timestamp: 200},
	)
	state.Actions["a1"] = models.Action{
		ID:       "a1",
		Response: &models.ActionResponse{Completed: true, At: 300},
	}

	msgs := UnrespondedUserMessages(state)
	if len(msgs) != 1 || msgs[0].ID != "new" {
		t.Fatalf("expected only 'new' message, got %v", msgs)
	}

	ids := UnrespondedActions(state)
	if len(ids) != 1 || ids[0] != "a1" {
		t.Fatalf("expected [a1], got %v", ids)
	}
}
