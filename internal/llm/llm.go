// Package llm defines the two external contracts the runtime core consumes
// from a language model — think (structured, non-streaming) and speak
// (streaming chunks) — plus a reference adapter backed by Anthropic's API.
package llm

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/reactor/pkg/models"
)

// SystemPromptFunc builds the system prompt for one think() call. toolName
// names the structured-output tool the model is being forced to call, so
// the prompt can reference it by name (e.g. "call `decision` with one of
// the following shapes...").
type SystemPromptFunc func(toolName string) string

// Think is the core's non-streaming, structured-output contract: given a
// system prompt builder, a message window, and a JSON-Schema the answer
// must satisfy, return the model's JSON output already validated against
// outputSchema.
type Think interface {
	Think(ctx context.Context, systemPrompt SystemPromptFunc, window []models.HistoryMessage, outputSchema json.RawMessage) (string, error)
}

// ThinkFunc adapts a plain function to the Think interface.
type ThinkFunc func(ctx context.Context, systemPrompt SystemPromptFunc, window []models.HistoryMessage, outputSchema json.RawMessage) (string, error)

func (f ThinkFunc) Think(ctx context.Context, systemPrompt SystemPromptFunc, window []models.HistoryMessage, outputSchema json.RawMessage) (string, error) {
	return f(ctx, systemPrompt, window, outputSchema)
}

// SupplementalAction is a completed (or cancelled) action packaged as a
// tool-call record so a Reply's speak() call can reference what happened
// without re-deriving it from the raw action map.
type SupplementalAction struct {
	ActionID   string
	ActionName string
	Intention  string
	Parameter  string
	Result     string
	Cancelled  bool
}

// Chunk is one item of a speak() stream: either text or a terminal error.
// A stream yields chunks until Done is true.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Stream is a cold, pull-based asynchronous sequence of string chunks, per
// the core's streaming contract: the caller drives progress by calling
// Next, which composes naturally with cancellation (ctx) and makes
// backpressure explicit (nothing is produced until asked for).
type Stream interface {
	Next(ctx context.Context) Chunk
}

// Speak is the core's streaming contract: given a system prompt, the
// message window up to the reply's timestamp, supplemental action records,
// and any content already sent (for resuming a reply interrupted mid
// stream), return a lazy sequence of chunks.
type Speak interface {
	Speak(ctx context.Context, systemPrompt string, window []models.HistoryMessage, supplemental []SupplementalAction, alreadySent string) (Stream, error)
}

// SpeakFunc adapts a plain function to the Speak interface.
type SpeakFunc func(ctx context.Context, systemPrompt string, window []models.HistoryMessage, supplemental []SupplementalAction, alreadySent string) (Stream, error)

func (f SpeakFunc) Speak(ctx context.Context, systemPrompt string, window []models.HistoryMessage, supplemental []SupplementalAction, alreadySent string) (Stream, error) {
	return f(ctx, systemPrompt, window, supplemental, alreadySent)
}
