package treasury

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
)

// ProposeWithdrawal opens a fund-release proposal against a project. The
// caller must be a registered approver and becomes the proposal's first
// approver. Withdrawal IDs are 1-based and strictly increasing per project;
// a failed proposal does not advance the counter.
//
// When the project threshold is 1 and the proposer is the admin, execution
// runs immediately as part of the same call and the settlement receipt is
// returned. If that execution fails, the whole proposal fails: nothing is
// recorded and the counter does not advance.
func (e *Engine) ProposeWithdrawal(ctx context.Context, caller, projectID string, amount uint64, recipient string) (uint64, *ExecutionReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[projectID]
	if !ok {
		return 0, nil, fmt.Errorf("propose withdrawal on %q: %w", projectID, ErrUnknownProject)
	}
	if !p.isApprover(caller) {
		return 0, nil, fmt.Errorf("propose withdrawal on %q: %w", projectID, ErrNotAuthorized)
	}
	if amount == 0 {
		return 0, nil, fmt.Errorf("propose withdrawal on %q: amount must be positive: %w", projectID, ErrInvalidAmount)
	}
	if p.Unspent() < amount {
		return 0, nil, fmt.Errorf("propose withdrawal on %q: amount %d exceeds unspent %d: %w", projectID, amount, p.Unspent(), ErrInsufficientFunds)
	}

	now := e.now()
	w := &Withdrawal{
		ID:        p.nextWithdrawalID + 1,
		ProjectID: projectID,
		Amount:    amount,
		Recipient: recipient,
		Approvers: []string{caller},
	}

	// Shortcut, not a separate threshold evaluation: an admin proposal on a
	// threshold-1 project settles in the same call.
	autoExecute := p.Threshold == 1 && caller == e.admin
	if autoExecute {
		if err := e.settle(ctx, p, w, 0); err != nil {
			return 0, nil, fmt.Errorf("propose withdrawal on %q: %w", projectID, err)
		}
	}

	p.nextWithdrawalID = w.ID
	p.withdrawals[w.ID] = w
	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeWithdrawalProposed,
		ProjectID:   projectID,
		Actor:       caller,
		Amount:      amount,
		Payload:     fmt.Sprintf("withdrawal=%d recipient=%s", w.ID, recipient),
		LogicalTime: now,
	})

	e.auditRecord(ctx, "propose_withdrawal", caller, map[string]any{
		"project": projectID, "withdrawal": w.ID, "amount": amount, "recipient": recipient,
	})
	if e.metrics != nil {
		e.metrics.RecordProposal(ctx)
	}

	var receipt *ExecutionReceipt
	if autoExecute {
		receipt = e.commitExecution(ctx, p, w, now)
	}
	return w.ID, receipt, nil
}

// ApproveWithdrawal records the caller's approval on an open withdrawal.
// Once the distinct-approver count reaches the project threshold, execution
// runs in the same operation and the settlement receipt is returned.
//
// If the triggered execution fails, the whole approval fails: the approver
// list and the event log are left untouched, so the same approval can be
// resubmitted once the pool is funded.
func (e *Engine) ApproveWithdrawal(ctx context.Context, caller, projectID string, withdrawalID uint64) (*ExecutionReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("approve withdrawal %d on %q: %w", withdrawalID, projectID, ErrUnknownProject)
	}
	if !p.isApprover(caller) {
		return nil, fmt.Errorf("approve withdrawal %d on %q: %w", withdrawalID, projectID, ErrNotAuthorized)
	}
	w, ok := p.withdrawals[withdrawalID]
	if !ok {
		return nil, fmt.Errorf("approve withdrawal %d on %q: %w", withdrawalID, projectID, ErrUnknownWithdrawal)
	}
	if w.Executed {
		return nil, fmt.Errorf("approve withdrawal %d on %q: %w", withdrawalID, projectID, ErrAlreadyExecuted)
	}
	if w.hasApproved(caller) {
		return nil, fmt.Errorf("approve withdrawal %d on %q: %w", withdrawalID, projectID, ErrAlreadyApproved)
	}

	now := e.now()
	willExecute := len(w.Approvers)+1 >= p.Threshold
	if willExecute {
		if err := e.settle(ctx, p, w, 1); err != nil {
			return nil, fmt.Errorf("approve withdrawal %d on %q: %w", withdrawalID, projectID, err)
		}
	}

	w.Approvers = append(w.Approvers, caller)
	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeWithdrawalApproved,
		ProjectID:   projectID,
		Actor:       caller,
		Amount:      w.Amount,
		Payload:     fmt.Sprintf("withdrawal=%d", w.ID),
		LogicalTime: now,
	})

	e.auditRecord(ctx, "approve_withdrawal", caller, map[string]any{
		"project": projectID, "withdrawal": w.ID,
	})
	if e.metrics != nil {
		e.metrics.RecordApproval(ctx)
	}

	if willExecute {
		return e.commitExecution(ctx, p, w, now), nil
	}
	return nil, nil
}

// settle re-validates the execution preconditions and moves the funds out of
// custody. It mutates nothing in the engine; callers commit the spend with
// commitExecution only after settle succeeds, which makes the whole public
// operation atomic. Callers hold e.mu.
//
// The re-checks are defensive: the executed latch and threshold cannot fail
// on the internal trigger paths, but propose-time and execute-time may be
// arbitrarily far apart, and a project can be over-allocated relative to the
// pool (see CreateProject), so the unspent check and the ledger transfer can
// legitimately fail here.
func (e *Engine) settle(ctx context.Context, p *Project, w *Withdrawal, pending int) error {
	if w.Executed {
		return ErrAlreadyExecuted
	}
	// pending counts the triggering caller's approval, which is committed
	// only after settle succeeds.
	if len(w.Approvers)+pending < p.Threshold {
		return ErrThresholdNotMet
	}
	if p.Unspent() < w.Amount {
		return fmt.Errorf("amount %d exceeds unspent %d: %w", w.Amount, p.Unspent(), ErrInsufficientFunds)
	}
	if err := e.funds.Transfer(ctx, w.Amount, e.custody, w.Recipient); err != nil {
		return fmt.Errorf("ledger transfer failed: %w", err)
	}
	return nil
}

// commitExecution applies the settlement effects after a successful
// transfer: latch the withdrawal, debit project and pool, append the
// execution event and mint the receipt. Callers hold e.mu.
func (e *Engine) commitExecution(ctx context.Context, p *Project, w *Withdrawal, now uint64) *ExecutionReceipt {
	w.Executed = true
	p.Spent += w.Amount
	e.pool -= w.Amount

	e.events.Append(eventlog.Event{
		Type:        eventlog.TypeWithdrawalExecuted,
		ProjectID:   p.ID,
		Actor:       w.Approvers[len(w.Approvers)-1],
		Amount:      w.Amount,
		Payload:     fmt.Sprintf("withdrawal=%d recipient=%s", w.ID, w.Recipient),
		LogicalTime: now,
	})

	receipt := newExecutionReceipt(w, now)
	e.auditRecord(ctx, "execute_withdrawal", w.Approvers[len(w.Approvers)-1], map[string]any{
		"project": p.ID, "withdrawal": w.ID, "amount": w.Amount, "recipient": w.Recipient, "receipt": receipt.ReceiptID,
	})
	if e.metrics != nil {
		e.metrics.RecordExecution(ctx, w.Amount)
		e.metrics.SetPoolBalance(ctx, e.pool)
	}
	return receipt
}
