package persistence

import (
	"context"
	"testing"

	"github.com/haasonsaas/reactor/pkg/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := models.New("be helpful", nil)
	state.HistoryMessages = append(state.HistoryMessages, models.HistoryMessage{ID: "u1", Role: models.RoleUser, Content: "hi", Timestamp: 1})

	if _, _, ok, err := store.Head(ctx, "agent-1"); err != nil || ok {
		t.Fatalf("expected no head before first commit, got ok=%v err=%v", ok, err)
	}

	handle, err := store.Commit(ctx, "agent-1", state)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, gotHandle, ok, err := store.Head(ctx, "agent-1")
	if err != nil || !ok {
		t.Fatalf("expected head after commit, got ok=%v err=%v", ok, err)
	}
	if gotHandle != handle {
		t.Fatalf("expected stable version handle, got %q want %q", gotHandle, handle)
	}

	gotHash, _ := got.Hash()
	wantHash, _ := state.Hash()
	if gotHash != wantHash {
		t.Fatalf("round-tripped state hash mismatch: got %s want %s", gotHash, wantHash)
	}
}

func TestMemoryStoreIsolatesKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := models.New("agent a", nil)
	b := models.New("agent b", nil)
	if _, err := store.Commit(ctx, "a", a); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if _, err := store.Commit(ctx, "b", b); err != nil {
		t.Fatalf("commit b: %v", err)
	}

	gotA, _, _, _ := store.Head(ctx, "a")
	if gotA.SystemPrompt != "agent a" {
		t.Fatalf("expected isolated state per key, got %q", gotA.SystemPrompt)
	}
}
