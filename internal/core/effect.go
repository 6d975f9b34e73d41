package core

import "fmt"

// EffectKind names one of the four effect kinds the planner produces.
type EffectKind string

const (
	EffectKindReply      EffectKind = "reply"
	EffectKindReaction   EffectKind = "reaction"
	EffectKindRefine     EffectKind = "refine"
	EffectKindActRequest EffectKind = "act"
)

// EffectKey identifies one unit of desired work. Reusing the same key
// across successive plans means "the same in-flight work"; the scheduler
// will not relaunch a runner already running under that key. A changed key
// means different work — the old runner is cancelled and a new one started.
type EffectKey string

// Effect is a tagged union describing one unit of work the planner wants
// running. Implementations are a closed set declared in this file.
type Effect interface {
	Key() EffectKey
	Kind() EffectKind
}

// ReplyEffect streams one assistant reply identified by its ReplyContext's
// MessageID.
type ReplyEffect struct {
	MessageID string
}

func (e ReplyEffect) Key() EffectKey { return EffectKey(fmt.Sprintf("reply-%s", e.MessageID)) }
func (e ReplyEffect) Kind() EffectKind { return EffectKindReply }

// ReactionEffect runs one planning cycle. PlanKey changes only when a newer
// input arrives, so an in-flight reaction is preserved across unrelated
// state changes that don't introduce new unresponded inputs.
type ReactionEffect struct {
	PlanKey string
}

func (e ReactionEffect) Key() EffectKey  { return EffectKey(fmt.Sprintf("reaction-%s", e.PlanKey)) }
func (e ReactionEffect) Kind() EffectKind { return EffectKindReaction }

// RefineEffect fills in the parameter for one pending action.
type RefineEffect struct {
	ActionID string
}

func (e RefineEffect) Key() EffectKey  { return EffectKey(fmt.Sprintf("refine-%s", e.ActionID)) }
func (e RefineEffect) Kind() EffectKind { return EffectKindRefine }

// ActRequestEffect invokes the external action for one parameterized
// action.
type ActRequestEffect struct {
	ActionID string
}

func (e ActRequestEffect) Key() EffectKey  { return EffectKey(fmt.Sprintf("act-%s", e.ActionID)) }
func (e ActRequestEffect) Kind() EffectKind { return EffectKindActRequest }
