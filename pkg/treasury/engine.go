// Package treasury implements the disbursement engine: pooled contributions
// are allocated to named projects and released only through a multi-party
// approval workflow, with every mutation recorded in an append-only event
// log.
//
// The engine assumes a single-writer, strictly serialized execution model.
// Every public operation runs to completion as one indivisible unit; a
// mutex enforces that when the host submits operations concurrently. An
// operation either applies all of its listed effects and appends exactly
// one event per effect, or applies nothing.
package treasury

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
	"github.com/Mindburn-Labs/treasury/pkg/funds"
)

// Engine holds all treasury state: the pool balance, per-account
// contributions, projects with their approvers and withdrawals, and the
// event log. Value movement is delegated to the host-supplied funds ledger;
// the engine's custody account holds the pool.
type Engine struct {
	mu sync.Mutex

	admin   string
	custody string
	funds   funds.Ledger
	events  *eventlog.Log

	pool          uint64
	contributions map[string]uint64
	projects      map[string]*Project

	clock func() uint64
	tick  uint64

	audit   AuditSink
	metrics Metrics
}

// New creates an engine administered by admin, holding pooled funds in the
// custody account of the given ledger.
func New(admin, custody string, ledger funds.Ledger) *Engine {
	return &Engine{
		admin:         admin,
		custody:       custody,
		funds:         ledger,
		events:        eventlog.NewLog(),
		contributions: make(map[string]uint64),
		projects:      make(map[string]*Project),
	}
}

// WithClock overrides the logical clock. The clock must be monotonically
// non-decreasing; it is read once per operation and stamped on the event.
func (e *Engine) WithClock(clock func() uint64) *Engine {
	e.clock = clock
	return e
}

// WithAudit attaches an audit sink that receives one record per mutation.
func (e *Engine) WithAudit(sink AuditSink) *Engine {
	e.audit = sink
	return e
}

// WithMetrics attaches an observability hook.
func (e *Engine) WithMetrics(m Metrics) *Engine {
	e.metrics = m
	return e
}

// Admin returns the administrator account.
func (e *Engine) Admin() string { return e.admin }

// Custody returns the engine's custody account on the funds ledger.
func (e *Engine) Custody() string { return e.custody }

// EventLog exposes the engine's append-only log for read-side consumers
// (archival, export). Writers must go through engine operations.
func (e *Engine) EventLog() *eventlog.Log { return e.events }

// now returns the logical timestamp for the current operation. Callers hold
// e.mu.
func (e *Engine) now() uint64 {
	if e.clock != nil {
		return e.clock()
	}
	e.tick++
	return e.tick
}

func (e *Engine) auditRecord(ctx context.Context, action, actor string, metadata map[string]any) {
	if e.audit == nil {
		return
	}
	// The audit sink is advisory; a sink failure must not fail the
	// already-committed operation.
	_ = e.audit.Record(ctx, action, actor, metadata)
}

// Contribute adds amount to the caller's cumulative contribution and to the
// pool balance. The amount reported must equal the value actually moved into
// custody by the host; the engine never reconciles it.
func (e *Engine) Contribute(ctx context.Context, caller string, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return fmt.Errorf("contribute: amount must be positive: %w", ErrInvalidAmount)
	}

	now := e.now()
	e.contributions[caller] += amount
	e.pool += amount
	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeContribution,
		Actor:       caller,
		Amount:      amount,
		LogicalTime: now,
	})

	e.auditRecord(ctx, "contribute", caller, map[string]any{"amount": amount})
	if e.metrics != nil {
		e.metrics.RecordContribution(ctx, amount)
		e.metrics.SetPoolBalance(ctx, e.pool)
	}
	return nil
}

// CreateProject carves a named allocation out of the pool. Admin only.
//
// The allocation is checked against the current pool balance but not
// reserved: two back-to-back creations can jointly allocate more than the
// pool holds. That gap is intentional here; an over-allocated project's
// withdrawal fails at the funds-ledger step instead (see execute).
func (e *Engine) CreateProject(ctx context.Context, caller, id, description string, allocated uint64, threshold int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return fmt.Errorf("create project %q: %w", id, ErrNotAuthorized)
	}
	if _, ok := e.projects[id]; ok {
		return fmt.Errorf("create project %q: %w", id, ErrProjectExists)
	}
	if threshold < 1 {
		return fmt.Errorf("create project %q: threshold must be >= 1: %w", id, ErrInvalidAmount)
	}
	if allocated > e.pool {
		return fmt.Errorf("create project %q: allocation %d exceeds pool %d: %w", id, allocated, e.pool, ErrInsufficientFunds)
	}

	now := e.now()
	e.projects[id] = &Project{
		ID:          id,
		Description: description,
		Allocated:   allocated,
		Threshold:   threshold,
		Creator:     caller,
		CreatedAt:   now,
		Approvers:   []string{caller},
		withdrawals: make(map[uint64]*Withdrawal),
	}
	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeProjectCreated,
		ProjectID:   id,
		Actor:       caller,
		Amount:      allocated,
		Payload:     description,
		LogicalTime: now,
	})

	e.auditRecord(ctx, "create_project", caller, map[string]any{"project": id, "allocated": allocated, "threshold": threshold})
	return nil
}

// UpdateAllocation changes a project's ceiling. Admin only; blocked while the
// project is locked. No funds move; only the ceiling changes.
func (e *Engine) UpdateAllocation(ctx context.Context, caller, id string, newAllocation uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return fmt.Errorf("update allocation %q: %w", id, ErrNotAuthorized)
	}
	p, ok := e.projects[id]
	if !ok {
		return fmt.Errorf("update allocation %q: %w", id, ErrUnknownProject)
	}
	if p.Locked {
		return fmt.Errorf("update allocation %q: %w", id, ErrProjectLocked)
	}
	if newAllocation < p.Spent {
		return fmt.Errorf("update allocation %q: new ceiling %d below spent %d: %w", id, newAllocation, p.Spent, ErrInvalidAmount)
	}
	if newAllocation > p.Allocated {
		// Same non-reserving check as project creation.
		delta := newAllocation - p.Allocated
		if delta > e.pool {
			return fmt.Errorf("update allocation %q: increase %d exceeds pool %d: %w", id, delta, e.pool, ErrInsufficientFunds)
		}
	}

	now := e.now()
	p.Allocated = newAllocation
	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeAllocationUpdated,
		ProjectID:   id,
		Actor:       caller,
		Amount:      newAllocation,
		LogicalTime: now,
	})

	e.auditRecord(ctx, "update_allocation", caller, map[string]any{"project": id, "allocated": newAllocation})
	return nil
}

// LockProject blocks further allocation updates. Admin only. Locking does
// not block withdrawal proposals, approvals or execution.
func (e *Engine) LockProject(ctx context.Context, caller, id string) error {
	return e.setLocked(ctx, caller, id, true)
}

// UnlockProject re-enables allocation updates. Admin only.
func (e *Engine) UnlockProject(ctx context.Context, caller, id string) error {
	return e.setLocked(ctx, caller, id, false)
}

func (e *Engine) setLocked(ctx context.Context, caller, id string, locked bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return fmt.Errorf("lock project %q: %w", id, ErrNotAuthorized)
	}
	p, ok := e.projects[id]
	if !ok {
		return fmt.Errorf("lock project %q: %w", id, ErrUnknownProject)
	}

	now := e.now()
	p.Locked = locked
	evType := eventlog.TypeProjectLocked
	action := "lock_project"
	if !locked {
		evType = eventlog.TypeProjectUnlocked
		action = "unlock_project"
	}
	e.events.Append(eventlog.Event{
		Type:        evType,
		ProjectID:   id,
		Actor:       caller,
		LogicalTime: now,
	})

	e.auditRecord(ctx, action, caller, map[string]any{"project": id})
	return nil
}

// AddApprover authorizes an account to approve withdrawals for a project.
// Admin only. Adding an existing approver is a no-op that still appends an
// event.
func (e *Engine) AddApprover(ctx context.Context, caller, id, account string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return fmt.Errorf("add approver to %q: %w", id, ErrNotAuthorized)
	}
	p, ok := e.projects[id]
	if !ok {
		return fmt.Errorf("add approver to %q: %w", id, ErrUnknownProject)
	}

	now := e.now()
	if !p.isApprover(account) {
		p.Approvers = append(p.Approvers, account)
	}
	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeApproverAdded,
		ProjectID:   id,
		Actor:       caller,
		Payload:     account,
		LogicalTime: now,
	})

	e.auditRecord(ctx, "add_approver", caller, map[string]any{"project": id, "account": account})
	return nil
}

// RemoveApprover revokes approval authority. Admin only. Approvals the
// account already recorded on open withdrawals are historical facts and are
// not rewritten.
func (e *Engine) RemoveApprover(ctx context.Context, caller, id, account string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return fmt.Errorf("remove approver from %q: %w", id, ErrNotAuthorized)
	}
	p, ok := e.projects[id]
	if !ok {
		return fmt.Errorf("remove approver from %q: %w", id, ErrUnknownProject)
	}

	now := e.now()
	for i, a := range p.Approvers {
		if a == account {
			p.Approvers = append(p.Approvers[:i], p.Approvers[i+1:]...)
			break
		}
	}
	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeApproverRemoved,
		ProjectID:   id,
		Actor:       caller,
		Payload:     account,
		LogicalTime: now,
	})

	e.auditRecord(ctx, "remove_approver", caller, map[string]any{"project": id, "account": account})
	return nil
}

// PoolBalance returns the aggregate pooled balance.
func (e *Engine) PoolBalance() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool
}

// ContributionOf returns the cumulative contribution of an account, zero for
// unknown accounts.
func (e *Engine) ContributionOf(account string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.contributions[account]
}

// GetProject returns a snapshot of a project.
func (e *Engine) GetProject(id string) (Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("get project %q: %w", id, ErrUnknownProject)
	}
	return p.snapshot(), nil
}

// UnspentBalance returns allocated minus spent for a project.
func (e *Engine) UnspentBalance(id string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[id]
	if !ok {
		return 0, fmt.Errorf("unspent balance of %q: %w", id, ErrUnknownProject)
	}
	return p.Unspent(), nil
}

// GetWithdrawal returns a snapshot of a withdrawal.
func (e *Engine) GetWithdrawal(projectID string, withdrawalID uint64) (Withdrawal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[projectID]
	if !ok {
		return Withdrawal{}, fmt.Errorf("get withdrawal %d of %q: %w", withdrawalID, projectID, ErrUnknownProject)
	}
	w, ok := p.withdrawals[withdrawalID]
	if !ok {
		return Withdrawal{}, fmt.Errorf("get withdrawal %d of %q: %w", withdrawalID, projectID, ErrUnknownWithdrawal)
	}
	return w.snapshot(), nil
}

// IsApprover reports whether an account may approve withdrawals for a
// project. False for unknown projects and accounts.
func (e *Engine) IsApprover(projectID, account string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[projectID]
	if !ok {
		return false
	}
	return p.isApprover(account)
}

// HasApproved reports whether an account already approved a withdrawal.
// False when the project or withdrawal does not exist.
func (e *Engine) HasApproved(projectID string, withdrawalID uint64, account string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[projectID]
	if !ok {
		return false
	}
	w, ok := p.withdrawals[withdrawalID]
	if !ok {
		return false
	}
	return w.hasApproved(account)
}

// Events returns log entries with IDs in [start, end], ascending. Empty when
// end exceeds the current maximum ID.
func (e *Engine) Events(start, end uint64) []eventlog.Event {
	return e.events.Range(start, end)
}
