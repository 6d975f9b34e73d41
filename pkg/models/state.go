// Package models defines the wire and storage types shared across the
// reactor core: the agent's event-sourced state and its constituent
// entities.
package models

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// ActionDefinition describes an action the agent may request. Name is
// unique within an AgentState's ActionDefinitions map; ParameterSchema is
// the JSON-Schema contract an action's parameter must satisfy.
type ActionDefinition struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ParameterSchema json.RawMessage `json:"parameter_schema"`
}

// ActionRequest records how and why an action instance was created.
type ActionRequest struct {
	ActionName string `json:"action_name"`
	Intention  string `json:"intention"`
	CreatedAt  int64  `json:"created_at"`
}

// ActionResponse is the terminal outcome of an action instance. Exactly one
// of Completed or Cancelled is true once an Action has resolved; both are
// false while the action is still pending.
type ActionResponse struct {
	Completed bool   `json:"completed"`
	Cancelled bool   `json:"cancelled"`
	Result    string `json:"result,omitempty"`
	At        int64  `json:"at"`
}

// IsResolved reports whether the action has reached a terminal response.
func (r *ActionResponse) IsResolved() bool {
	return r != nil
}

// Action is a dynamic instance of an ActionDefinition. Parameter is nil
// until a Refine effect fills it; Response is nil until the Act runner
// completes it or a Reaction decision cancels it. Actions are never
// deleted.
type Action struct {
	ID        string          `json:"id"`
	Request   ActionRequest   `json:"request"`
	Parameter *string         `json:"parameter,omitempty"`
	Response  *ActionResponse `json:"response,omitempty"`
}

// Clone returns a deep copy of the Action.
func (a Action) Clone() Action {
	out := a
	if a.Parameter != nil {
		p := *a.Parameter
		out.Parameter = &p
	}
	if a.Response != nil {
		r := *a.Response
		out.Response = &r
	}
	return out
}

// Role identifies the author of a HistoryMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryMessage is an immutable, append-only entry in the conversation
// transcript. HistoryMessages are kept sorted strictly by Timestamp.
type HistoryMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// ReplyContext accumulates the chunks of an in-flight assistant reply.
// It exists from the moment a Reaction decides to reply-to-user until the
// reply completes and is folded into one HistoryMessage.
type ReplyContext struct {
	MessageID        string   `json:"message_id"`
	Timestamp        int64    `json:"timestamp"`
	RelatedActionIDs []string `json:"related_action_ids"`
	Chunks           []string `json:"chunks"`
}

// Clone returns a deep copy of the ReplyContext.
func (r ReplyContext) Clone() ReplyContext {
	out := r
	out.RelatedActionIDs = append([]string(nil), r.RelatedActionIDs...)
	out.Chunks = append([]string(nil), r.Chunks...)
	return out
}

// Content concatenates the accumulated chunks in arrival order.
func (r ReplyContext) Content() string {
	total := 0
	for _, c := range r.Chunks {
		total += len(c)
	}
	buf := make([]byte, 0, total)
	for _, c := range r.Chunks {
		buf = append(buf, c...)
	}
	return string(buf)
}

// AgentState is the single content-addressed snapshot the scheduler owns.
// All mutation is by replacement: transition.Apply takes a state and a
// signal and returns a new state value.
type AgentState struct {
	SystemPrompt      string                      `json:"system_prompt"`
	ActionDefinitions map[string]ActionDefinition `json:"action_definitions"`
	Actions           map[string]Action           `json:"actions"`
	HistoryMessages   []HistoryMessage            `json:"history_messages"`
	LastReactionAt    int64                       `json:"last_reaction_timestamp"`
	Replies           map[string]ReplyContext     `json:"replies"`
}

// New constructs an empty AgentState with the given system prompt and
// action catalogue. The returned state satisfies all invariants trivially.
func New(systemPrompt string, actionDefinitions map[string]ActionDefinition) AgentState {
	defs := make(map[string]ActionDefinition, len(actionDefinitions))
	for k, v := range actionDefinitions {
		defs[k] = v
	}
	return AgentState{
		SystemPrompt:      systemPrompt,
		ActionDefinitions: defs,
		Actions:           make(map[string]Action),
		HistoryMessages:   nil,
		LastReactionAt:    0,
		Replies:           make(map[string]ReplyContext),
	}
}

// Clone returns a deep copy of the state. The scheduler hands a fresh clone
// to every runner it launches so that a runner's snapshot is stable for its
// lifetime regardless of later transitions.
func (s AgentState) Clone() AgentState {
	out := AgentState{
		SystemPrompt:   s.SystemPrompt,
		LastReactionAt: s.LastReactionAt,
	}
	out.ActionDefinitions = make(map[string]ActionDefinition, len(s.ActionDefinitions))
	for k, v := range s.ActionDefinitions {
		out.ActionDefinitions[k] = v
	}
	out.Actions = make(map[string]Action, len(s.Actions))
	for k, v := range s.Actions {
		out.Actions[k] = v.Clone()
	}
	out.HistoryMessages = append([]HistoryMessage(nil), s.HistoryMessages...)
	out.Replies = make(map[string]ReplyContext, len(s.Replies))
	for k, v := range s.Replies {
		out.Replies[k] = v.Clone()
	}
	return out
}

// LastHistoryTimestamp returns the timestamp of the most recent
// HistoryMessage, or 0 if history is empty. HistoryMessages are kept
// sorted, so this is always the last element.
func (s AgentState) LastHistoryTimestamp() int64 {
	if len(s.HistoryMessages) == 0 {
		return 0
	}
	return s.HistoryMessages[len(s.HistoryMessages)-1].Timestamp
}

// canonicalJSON marshals the state with deterministic ordering: maps are
// flattened into sorted slices before encoding so that two states with the
// same content produce byte-identical output regardless of Go's randomized
// map iteration order.
type canonicalState struct {
	SystemPrompt      string                 `json:"system_prompt"`
	ActionDefinitions []ActionDefinition     `json:"action_definitions"`
	Actions           []Action               `json:"actions"`
	HistoryMessages   []HistoryMessage       `json:"history_messages"`
	LastReactionAt    int64                  `json:"last_reaction_timestamp"`
	Replies           []ReplyContext         `json:"replies"`
}

func (s AgentState) canonical() canonicalState {
	defs := make([]ActionDefinition, 0, len(s.ActionDefinitions))
	for _, d := range s.ActionDefinitions {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	actions := make([]Action, 0, len(s.Actions))
	for _, a := range s.Actions {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })

	replies := make([]ReplyContext, 0, len(s.Replies))
	for _, r := range s.Replies {
		replies = append(replies, r)
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].MessageID < replies[j].MessageID })

	return canonicalState{
		SystemPrompt:      s.SystemPrompt,
		ActionDefinitions: defs,
		Actions:           actions,
		HistoryMessages:   append([]HistoryMessage(nil), s.HistoryMessages...),
		LastReactionAt:    s.LastReactionAt,
		Replies:           replies,
	}
}

// CanonicalJSON returns the deterministic JSON encoding of the state used
// for content addressing and byte-equality round-trip checks.
func (s AgentState) CanonicalJSON() ([]byte, error) {
	return json.Marshal(s.canonical())
}

// Hash returns the SHA-256 content hash of the state's canonical encoding,
// used as the persistence adapter's version handle.
func (s AgentState) Hash() (string, error) {
	data, err := s.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("canonicalize state: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

// FromCanonicalJSON decodes a state previously produced by CanonicalJSON.
func FromCanonicalJSON(data []byte) (AgentState, error) {
	var c canonicalState
	if err := json.Unmarshal(data, &c); err != nil {
		return AgentState{}, fmt.Errorf("decode canonical state: %w", err)
	}
	s := AgentState{
		SystemPrompt:      c.SystemPrompt,
		ActionDefinitions: make(map[string]ActionDefinition, len(c.ActionDefinitions)),
		Actions:           make(map[string]Action, len(c.Actions)),
		HistoryMessages:   c.HistoryMessages,
		LastReactionAt:    c.LastReactionAt,
		Replies:           make(map[string]ReplyContext, len(c.Replies)),
	}
	for _, d := range c.ActionDefinitions {
		s.ActionDefinitions[d.Name] = d
	}
	for _, a := range c.Actions {
		s.Actions[a.ID] = a
	}
	for _, r := range c.Replies {
		s.Replies[r.MessageID] = r
	}
	return s, nil
}
