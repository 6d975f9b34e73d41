package persistence

import (
	"context"
	"time"

	"github.com/haasonsaas/reactor/internal/core/scheduler"
	"github.com/haasonsaas/reactor/internal/debounce"
	"github.com/haasonsaas/reactor/internal/observability"
	"github.com/haasonsaas/reactor/pkg/models"
)

// DefaultDebounceDelay is the default single-slot commit debounce, per
// §6.3's "debounced (default 2000ms)".
const DefaultDebounceDelay = 2000 * time.Millisecond

// Committer subscribes to the scheduler's state-updated events and commits
// the latest state to a Store, debounced and single-slot: a state that
// arrives while one is already queued supersedes it rather than queuing
// alongside it. It implements scheduler.Sink directly so it can be passed
// to scheduler.Config.Sink or Scheduler.Subscribe.
type Committer struct {
	store     Store
	key       string
	debouncer *debounce.Debouncer[models.AgentState]
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewCommitter builds a Committer writing to store under key, flushing at
// most every delay (DefaultDebounceDelay if zero).
func NewCommitter(store Store, key string, delay time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Committer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}

	c := &Committer{store: store, key: key, logger: logger, metrics: metrics}
	c.debouncer = debounce.NewDebouncer[models.AgentState](
		debounce.WithDebounceDuration[models.AgentState](delay),
		debounce.WithBuildKey[models.AgentState](func(*models.AgentState) string { return key }),
		debounce.WithSingleSlot[models.AgentState](),
		debounce.WithOnFlush[models.AgentState](c.flush),
		debounce.WithOnError[models.AgentState](func(err error, _ []*models.AgentState) {
			if c.logger != nil {
				c.logger.Warn(context.Background(), "persistence commit failed", "error", err, "key", key)
			}
		}),
	)
	return c
}

func (c *Committer) flush(items []*models.AgentState) error {
	if len(items) == 0 {
		return nil
	}
	// Single-slot: only the most recently enqueued state is ever present.
	state := items[len(items)-1]

	start := time.Now()
	_, err := c.store.Commit(context.Background(), c.key, *state)
	if c.metrics != nil {
		c.metrics.PersistenceCommit(err == nil, time.Since(start))
	}
	return err
}

// Emit implements scheduler.Sink: every state-updated event enqueues a
// debounced commit.
func (c *Committer) Emit(ctx context.Context, e scheduler.Event) {
	if e.Type != scheduler.EventStateUpdated {
		return
	}
	state := e.State
	c.debouncer.Enqueue(&state)
}

// Close flushes any pending commit synchronously and stops the debouncer.
// Always flush on close, per §9's design note.
func (c *Committer) Close() {
	c.debouncer.FlushKey(c.key)
	c.debouncer.Stop()
}

var _ scheduler.Sink = (*Committer)(nil)
