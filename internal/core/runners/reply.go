package runners

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/internal/core/scheduler"
	"github.com/haasonsaas/reactor/internal/llm"
	"github.com/haasonsaas/reactor/pkg/models"
)

// ReplyRunner implements the Reply effect: it streams an assistant message
// via speak(), resuming from alreadySentContent when a prior attempt was
// cancelled mid-stream, per §4.4.4.
type ReplyRunner struct {
	Speak llm.Speak
	Now   func() int64
}

func NewReplyRunner(speak llm.Speak) *ReplyRunner {
	return &ReplyRunner{Speak: speak, Now: func() int64 { return time.Now().UnixMilli() }}
}

var _ scheduler.Runner = (*ReplyRunner)(nil)

func (r *ReplyRunner) Run(ctx context.Context, snapshot models.AgentState, effect core.Effect, dispatch func(core.Signal)) error {
	e, ok := effect.(core.ReplyEffect)
	if !ok {
		return fmt.Errorf("runners: reply runner received %T", effect)
	}

	rc, ok := snapshot.Replies[e.MessageID]
	if !ok {
		return fmt.Errorf("runners: no reply context for %q", e.MessageID)
	}

	var history []models.HistoryMessage
	for _, m := range snapshot.HistoryMessages {
		if m.Timestamp <= rc.Timestamp {
			history = append(history, m)
		}
	}

	supplemental := supplementalActionsFor(snapshot, rc.RelatedActionIDs)
	alreadySent := rc.Content()

	stream, err := r.Speak.Speak(ctx, snapshot.SystemPrompt, history, supplemental, alreadySent)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		chunk := stream.Next(ctx)
		if chunk.Err != nil {
			return chunk.Err
		}
		if chunk.Text != "" {
			dispatch(core.AssistantChunkReceived{MessageID: e.MessageID, Chunk: chunk.Text, Timestamp: r.Now()})
		}
		if chunk.Done {
			break
		}
	}

	select {
	case <-ctx.Done():
		return nil
	default:
	}

	dispatch(core.AssistantMessageComplete{MessageID: e.MessageID, Timestamp: r.Now()})
	return nil
}

func supplementalActionsFor(state models.AgentState, ids []string) []llm.SupplementalAction {
	out := make([]llm.SupplementalAction, 0, len(ids))
	for _, id := range ids {
		a, ok := state.Actions[id]
		if !ok || a.Response == nil {
			continue
		}
		parameter := ""
		if a.Parameter != nil {
			parameter = *a.Parameter
		}
		out = append(out, llm.SupplementalAction{
			ActionID:   id,
			ActionName: a.Request.ActionName,
			Intention:  a.Request.Intention,
			Parameter:  parameter,
			Result:     a.Response.Result,
			Cancelled:  a.Response.Cancelled,
		})
	}
	return out
}
