package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/reactor/internal/backoff"
	ijsonschema "github.com/haasonsaas/reactor/internal/jsonschema"
	"github.com/haasonsaas/reactor/pkg/models"
)

// thinkToolName is the tool the model is forced to call for every think()
// request; its input schema is swapped per call for outputSchema.
const thinkToolName = "emit_decision"

// AnthropicConfig configures the reference llm.Think/llm.Speak adapter.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	RetryConfig  backoff.Config
}

// AnthropicAdapter implements Think and Speak against Anthropic's Messages
// API: Think forces a single tool call shaped by the caller's JSON-Schema
// and validates the result before returning it; Speak streams plain text
// deltas.
type AnthropicAdapter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     backoff.Config
}

// NewAnthropicAdapter constructs an adapter from cfg, applying the same
// sensible defaults (model, max tokens, retry curve) the provider
// integrations in this codebase use elsewhere.
func NewAnthropicAdapter(cfg AnthropicConfig) (*AnthropicAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.RetryConfig.MaxAttempts <= 0 {
		cfg.RetryConfig = backoff.DefaultConfig()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicAdapter{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		retry:     cfg.RetryConfig,
	}, nil
}

// Think forces the model to call thinkToolName with input matching
// outputSchema, retries transient failures with backoff.Do, and validates
// the tool's input against outputSchema before returning it as a JSON
// string.
func (a *AnthropicAdapter) Think(ctx context.Context, systemPrompt SystemPromptFunc, window []models.HistoryMessage, outputSchema json.RawMessage) (string, error) {
	var schema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(outputSchema, &schema); err != nil {
		return "", backoff.Permanent(fmt.Errorf("llm: invalid output schema: %w", err))
	}

	tool := anthropic.ToolUnionParamOfTool(schema, thinkToolName)

	params := anthropic.MessageNewParams{
		Model:      anthropic.Model(a.model),
		MaxTokens:  a.maxTokens,
		Messages:   historyToMessages(window),
		Tools:      []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceParamOfTool(thinkToolName),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt(thinkToolName)},
		},
	}

	raw, result := backoff.DoWithValue(ctx, a.retry, func() (string, error) {
		msg, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}
		for _, block := range msg.Content {
			if toolUse := block.AsToolUse(); toolUse.Name == thinkToolName {
				return string(toolUse.Input), nil
			}
		}
		return "", backoff.Permanent(fmt.Errorf("llm: model did not call %s", thinkToolName))
	})
	if result.Err != nil {
		return "", result.Err
	}

	if err := ijsonschema.Validate("think-output", outputSchema, json.RawMessage(raw)); err != nil {
		return "", fmt.Errorf("llm: think output failed validation: %w", err)
	}
	return raw, nil
}

// Speak streams plain text content for a reply, resuming past
// alreadySent by instructing the model (via the system prompt) that this
// content has already been delivered and should not be repeated.
func (a *AnthropicAdapter) Speak(ctx context.Context, systemPrompt string, window []models.HistoryMessage, supplemental []SupplementalAction, alreadySent string) (Stream, error) {
	sys := systemPrompt
	if alreadySent != "" {
		sys = fmt.Sprintf("%s\n\nYou have already sent the following partial reply; continue from exactly where it left off, do not repeat it:\n%s", systemPrompt, alreadySent)
	}
	if len(supplemental) > 0 {
		sys = sys + "\n\n" + supplementalActionsBlock(supplemental)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  historyToMessages(window),
		System:    []anthropic.TextBlockParam{{Type: "text", Text: sys}},
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{stream: stream}, nil
}

type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (s *anthropicStream) Next(ctx context.Context) Chunk {
	for s.stream.Next() {
		event := s.stream.Current()
		switch event.Type {
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			if delta.Type == "text_delta" && delta.Text != "" {
				return Chunk{Text: delta.Text}
			}
		case "message_stop":
			return Chunk{Done: true}
		case "error":
			return Chunk{Done: true, Err: fmt.Errorf("llm: anthropic stream error")}
		}

		select {
		case <-ctx.Done():
			return Chunk{Done: true, Err: ctx.Err()}
		default:
		}
	}
	if err := s.stream.Err(); err != nil {
		return Chunk{Done: true, Err: err}
	}
	return Chunk{Done: true}
}

func historyToMessages(window []models.HistoryMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(window))
	for _, m := range window {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func supplementalActionsBlock(actions []SupplementalAction) string {
	var b strings.Builder
	b.WriteString("Completed actions available for reference:\n")
	for _, a := range actions {
		status := "completed"
		if a.Cancelled {
			status = "cancelled"
		}
		fmt.Fprintf(&b, "- %s (%s): intention=%q parameter=%q result=%q\n", a.ActionID, status, a.Intention, a.Parameter, a.Result)
	}
	return b.String()
}
