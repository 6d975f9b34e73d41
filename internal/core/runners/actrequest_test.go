package runners

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/reactor/internal/core"
	"github.com/haasonsaas/reactor/pkg/models"
)

func newActRequestState() models.AgentState {
	param := `{"query":"tokyo"}`
	s := models.New("be helpful", map[string]models.ActionDefinition{"search": {Name: "search"}})
	s.Actions["a1"] = models.Action{
		ID:        "a1",
		Request:   models.ActionRequest{ActionName: "search"},
		Parameter: &param,
	}
	return s
}

func TestActRequestRunnerDispatchesCompleted(t *testing.T) {
	r := NewActRequestRunner(func(ctx context.Context, actionName, parameter string) (string, error) {
		if actionName != "search" || parameter != `{"query":"tokyo"}` {
			t.Fatalf("unexpected act call: %s %s", actionName, parameter)
		}
		return "tokyo is sunny", nil
	})

	var dispatched core.Signal
	err := r.Run(context.Background(), newActRequestState(), core.ActRequestEffect{ActionID: "a1"}, func(s core.Signal) { dispatched = s })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	completed, ok := dispatched.(core.ActionCompleted)
	if !ok {
		t.Fatalf("expected ActionCompleted, got %T", dispatched)
	}
	if completed.Result != "tokyo is sunny" {
		t.Fatalf("unexpected result: %s", completed.Result)
	}
}

func TestActRequestRunnerPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	r := NewActRequestRunner(func(ctx context.Context, actionName, parameter string) (string, error) {
		return "", boom
	})

	err := r.Run(context.Background(), newActRequestState(), core.ActRequestEffect{ActionID: "a1"}, func(core.Signal) {
		t.Fatalf("should not dispatch on failure")
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestActRequestRunnerSkipsUnparameterizedAction(t *testing.T) {
	s := models.New("be helpful", map[string]models.ActionDefinition{"search": {Name: "search"}})
	s.Actions["a1"] = models.Action{ID: "a1", Request: models.ActionRequest{ActionName: "search"}}

	r := NewActRequestRunner(func(ctx context.Context, actionName, parameter string) (string, error) {
		t.Fatalf("should not invoke act for unparameterized action")
		return "", nil
	})
	err := r.Run(context.Background(), s, core.ActRequestEffect{ActionID: "a1"}, func(core.Signal) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
