// Package persistence implements the content-addressed commit/head log the
// runtime core depends on for its persistence binding: commit(value) ->
// versionHandle, head() -> versionHandle | nil, per §6.3.
package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/haasonsaas/reactor/pkg/models"
)

// VersionHandle identifies one committed value. It is the state's content
// hash, so two commits of byte-identical states produce the same handle.
type VersionHandle string

// Store is a content-addressed key-value log keyed by agent key. Commit
// writes the latest state for a key; Head restores it on startup.
type Store interface {
	Commit(ctx context.Context, key string, state models.AgentState) (VersionHandle, error)
	Head(ctx context.Context, key string) (models.AgentState, VersionHandle, bool, error)
	Close() error
}

// MemoryStore is an in-process Store, the default for tests and
// single-process deployments with no durability requirement, grounded on
// the in-memory store pattern used elsewhere in this codebase.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	state  models.AgentState
	handle VersionHandle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Commit(ctx context.Context, key string, state models.AgentState) (VersionHandle, error) {
	hash, err := state.Hash()
	if err != nil {
		return "", err
	}
	handle := VersionHandle(hash)

	s.mu.Lock()
	s.entries[key] = memoryEntry{state: state.Clone(), handle: handle}
	s.mu.Unlock()
	return handle, nil
}

func (s *MemoryStore) Head(ctx context.Context, key string) (models.AgentState, VersionHandle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return models.AgentState{}, "", false, nil
	}
	return entry.state.Clone(), entry.handle, true, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

// OpenFromLocation resolves a location string into a concrete Store,
// shared by pkg/reactor.Open and the reactor inspect CLI so both parse the
// same scheme: an empty location is in-memory; "sqlite://<path>" and
// "postgres://<dsn>" (or "postgresql://<dsn>") select the on-disk and
// networked adapters. The bool result reports whether the caller owns the
// returned Store and must Close it.
func OpenFromLocation(location string, createIfMissing, compression bool) (Store, bool, error) {
	switch {
	case location == "":
		return NewMemoryStore(), false, nil
	case strings.HasPrefix(location, "sqlite://"):
		store, err := NewSQLiteStore(SQLiteConfig{
			Path:            strings.TrimPrefix(location, "sqlite://"),
			CreateIfMissing: createIfMissing,
			Compression:     compression,
		})
		return store, true, err
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		store, err := NewPostgresStore(PostgresConfig{
			DSN:             location,
			CreateIfMissing: createIfMissing,
			Compression:     compression,
		})
		return store, true, err
	default:
		return nil, false, fmt.Errorf("persistence: unrecognized store location %q", location)
	}
}
