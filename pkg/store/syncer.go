package store

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
)

// Syncer drains new entries from an in-memory event log into a durable
// store. It resumes from the store's highest ID, so replaying after a crash
// or double sync is harmless.
type Syncer struct {
	log        *eventlog.Log
	store      EventStore
	checkpoint uint64
	primed     bool
}

// NewSyncer creates a syncer between log and store.
func NewSyncer(log *eventlog.Log, store EventStore) *Syncer {
	return &Syncer{log: log, store: store}
}

// Sync copies every log entry newer than the checkpoint into the store and
// returns how many were written. Safe to call repeatedly.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	if !s.primed {
		max, err := s.store.MaxID(ctx)
		if err != nil {
			return 0, fmt.Errorf("syncer: read checkpoint: %w", err)
		}
		s.checkpoint = max
		s.primed = true
	}

	head := s.log.MaxID()
	if head <= s.checkpoint {
		return 0, nil
	}

	pending := s.log.Range(s.checkpoint+1, head)
	written := 0
	for _, ev := range pending {
		if err := s.store.Append(ctx, ev); err != nil {
			// Keep the checkpoint at the last durable event so the failed
			// entry is retried on the next pass.
			return written, fmt.Errorf("syncer: persist event %d: %w", ev.ID, err)
		}
		s.checkpoint = ev.ID
		written++
	}
	return written, nil
}

// Checkpoint returns the highest event ID known durable.
func (s *Syncer) Checkpoint() uint64 {
	return s.checkpoint
}
