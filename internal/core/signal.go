// Package core defines the signal and effect vocabulary shared by the
// transition, planner, and scheduler: the tagged sum types that flow
// through the three-layer state machine described in the runtime core.
package core

// Signal is an observation fed into the transition. It is the only way
// AgentState changes. Implementations are a closed set declared in this
// file; transition.Apply must handle every variant exhaustively.
type Signal interface {
	signal()
}

// UserMessageReceived is emitted when a new user message enters the system,
// either via the public API or a channel adapter.
type UserMessageReceived struct {
	MessageID string
	Content   string
	Timestamp int64
}

func (UserMessageReceived) signal() {}

// AssistantChunkReceived carries one streamed chunk of an in-flight
// assistant reply.
type AssistantChunkReceived struct {
	MessageID string
	Chunk     string
	Timestamp int64
}

func (AssistantChunkReceived) signal() {}

// AssistantMessageComplete marks the natural end of an assistant reply's
// stream; its accumulated chunks are folded into one HistoryMessage.
type AssistantMessageComplete struct {
	MessageID string
	Timestamp int64
}

func (AssistantMessageComplete) signal() {}

// ActionRequestRefined carries the parameter a Refine runner produced for
// an action.
type ActionRequestRefined struct {
	ActionID  string
	Parameter string
}

func (ActionRequestRefined) signal() {}

// ActionCompleted carries the result an ActRequest runner produced.
type ActionCompleted struct {
	ActionID  string
	Result    string
	Timestamp int64
}

func (ActionCompleted) signal() {}

// ActionCancelledByUser marks an action as cancelled by an external actor
// (not a Reaction decision — see ReactionComplete's AdjustActions variant
// for planner-driven cancellation).
type ActionCancelledByUser struct {
	ActionID  string
	Timestamp int64
}

func (ActionCancelledByUser) signal() {}

// ReactionComplete carries the Reaction runner's decision, to be applied
// atomically along with advancing the watermark.
type ReactionComplete struct {
	Decision  ReactionDecision
	Timestamp int64
}

func (ReactionComplete) signal() {}

// ReactionDecision is the tagged result of one Reaction planning cycle.
type ReactionDecision interface {
	reactionDecision()
}

// ReplyToUser opens a new ReplyContext for a forthcoming assistant message.
type ReplyToUser struct {
	MessageID            string
	LastHistoryMessageID string
	RelatedActionIDs     []string
}

func (ReplyToUser) reactionDecision() {}

// NewActionSpec describes one action to create as part of AdjustActions.
type NewActionSpec struct {
	ActionID      string
	ActionName    string
	InitialIntent string
}

// AdjustActions cancels a set of in-flight actions and creates a set of new
// ones, in one atomic decision.
type AdjustActions struct {
	CancelActionIDs []string
	NewActions      []NewActionSpec
}

func (AdjustActions) reactionDecision() {}

// Noop means the Reaction runner decided nothing needed to change beyond
// advancing the watermark.
type Noop struct{}

func (Noop) reactionDecision() {}
