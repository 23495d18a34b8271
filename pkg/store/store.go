// Package store provides durable mirrors of the treasury event log.
//
// The engine's in-memory log is the source of truth; stores are write-behind
// copies used for archival, restarts and export. All implementations are
// idempotent on re-append so a syncer can safely replay from a checkpoint.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
)

// ErrNotFound is returned when an event ID is absent from the store.
var ErrNotFound = errors.New("store: not found")

// EventStore persists treasury events keyed by their log ID.
type EventStore interface {
	// Append stores an event. Re-appending an already-stored ID is a no-op.
	Append(ctx context.Context, ev eventlog.Event) error

	// Range returns events with IDs in [start, end] ascending. Missing IDs
	// are skipped silently.
	Range(ctx context.Context, start, end uint64) ([]eventlog.Event, error)

	// MaxID returns the highest stored event ID, 0 for an empty store.
	MaxID(ctx context.Context) (uint64, error)
}

// MemoryStore implements EventStore in memory. Thread-safe.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[uint64]eventlog.Event
	max    uint64
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[uint64]eventlog.Event)}
}

func (s *MemoryStore) Append(ctx context.Context, ev eventlog.Event) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ev.ID]; ok {
		return nil
	}
	s.events[ev.ID] = ev
	if ev.ID > s.max {
		s.max = ev.ID
	}
	return nil
}

func (s *MemoryStore) Range(ctx context.Context, start, end uint64) ([]eventlog.Event, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []eventlog.Event
	for id := start; id <= end && start != 0; id++ {
		if ev, ok := s.events[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) MaxID(ctx context.Context) (uint64, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.max, nil
}
