// Package eventlog provides the append-only audit log for the treasury
// engine.
//
// Every state-changing operation appends exactly one entry. Entries carry
// strictly increasing IDs starting at 1 and are hash-chained to their
// predecessor, so an auditor can detect truncation or tampering from the
// entries alone.
package eventlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
)

// Type tags the kind of state change an event records.
type Type string

const (
	TypeContribution       Type = "CONTRIBUTION"
	TypeProjectCreated     Type = "PROJECT_CREATED"
	TypeAllocationUpdated  Type = "ALLOCATION_UPDATED"
	TypeProjectLocked      Type = "PROJECT_LOCKED"
	TypeProjectUnlocked    Type = "PROJECT_UNLOCKED"
	TypeApproverAdded      Type = "APPROVER_ADDED"
	TypeApproverRemoved    Type = "APPROVER_REMOVED"
	TypeWithdrawalProposed Type = "WITHDRAWAL_PROPOSED"
	TypeWithdrawalApproved Type = "WITHDRAWAL_APPROVED"
	TypeWithdrawalExecuted Type = "WITHDRAWAL_EXECUTED"
)

// Event is one immutable audit record.
type Event struct {
	ID          uint64 `json:"id"`
	Type        Type   `json:"type"`
	ProjectID   string `json:"project_id,omitempty"`
	Actor       string `json:"actor"`
	Amount      uint64 `json:"amount,omitempty"`
	Payload     string `json:"payload,omitempty"`
	LogicalTime uint64 `json:"logical_time"`
	ContentHash string `json:"content_hash"`
	PrevHash    string `json:"prev_hash"`
}

// Log is an append-only, hash-chained event log. Entries are never mutated
// or deleted once appended.
type Log struct {
	mu       sync.RWMutex
	entries  []Event
	headHash string
}

// NewLog creates an empty log with a genesis head.
func NewLog() *Log {
	return &Log{
		entries:  make([]Event, 0),
		headHash: "genesis",
	}
}

// Append assigns the next ID, chains the entry to the current head and
// stores it. The caller fills every field except ID, ContentHash and
// PrevHash. The stored entry is returned.
func (l *Log) Append(ev Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.ID = uint64(len(l.entries)) + 1
	ev.PrevHash = l.headHash
	ev.ContentHash = contentHash(ev)

	l.entries = append(l.entries, ev)
	l.headHash = ev.ContentHash
	return ev
}

// Get retrieves an entry by ID.
func (l *Log) Get(id uint64) (Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id == 0 || id > uint64(len(l.entries)) {
		return Event{}, fmt.Errorf("eventlog: entry %d not found", id)
	}
	return l.entries[id-1], nil
}

// Range returns entries with IDs in [start, end] in ascending order. The
// result is empty when the range is malformed or end exceeds the current
// maximum ID.
func (l *Log) Range(start, end uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if start == 0 || start > end || end > uint64(len(l.entries)) {
		return nil
	}
	out := make([]Event, end-start+1)
	copy(out, l.entries[start-1:end])
	return out
}

// MaxID returns the ID of the most recent entry, or 0 for an empty log.
func (l *Log) MaxID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.entries))
}

// Head returns the current head hash.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.headHash
}

// Verify walks the whole chain and recomputes every hash. It reports the
// first inconsistency found.
func (l *Log) Verify() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prevHash := "genesis"
	for i, ev := range l.entries {
		if ev.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prevHash, ev.PrevHash)
		}
		if contentHash(ev) != ev.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prevHash = ev.ContentHash
	}
	return true, "chain verified"
}

// contentHash hashes the entry over its RFC 8785 canonical JSON form so the
// digest is independent of field ordering and encoder quirks.
func contentHash(ev Event) string {
	hashInput := struct {
		ID          uint64 `json:"id"`
		Type        Type   `json:"type"`
		ProjectID   string `json:"project_id"`
		Actor       string `json:"actor"`
		Amount      uint64 `json:"amount"`
		Payload     string `json:"payload"`
		LogicalTime uint64 `json:"logical_time"`
		PrevHash    string `json:"prev"`
	}{ev.ID, ev.Type, ev.ProjectID, ev.Actor, ev.Amount, ev.Payload, ev.LogicalTime, ev.PrevHash}

	// Marshal of a fixed-shape struct of scalars cannot fail.
	raw, _ := json.Marshal(hashInput)
	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:])
}
