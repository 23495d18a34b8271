package treasury

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// Project is a named, capped allocation of pool funds.
//
// Approvers holds authorized accounts in insertion order; the creator is
// always first. Locked blocks only allocation updates, never withdrawals.
type Project struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Allocated   uint64 `json:"allocated"`
	Spent       uint64 `json:"spent"`
	Locked      bool   `json:"locked"`
	Threshold   int    `json:"threshold"`
	Creator     string `json:"creator"`
	CreatedAt   uint64 `json:"created_at"`

	Approvers []string `json:"approvers"`

	withdrawals      map[uint64]*Withdrawal
	nextWithdrawalID uint64
}

// Unspent returns the balance still available for withdrawals.
func (p *Project) Unspent() uint64 {
	return p.Allocated - p.Spent
}

func (p *Project) isApprover(account string) bool {
	for _, a := range p.Approvers {
		if a == account {
			return true
		}
	}
	return false
}

// snapshot returns a detached copy safe to hand to callers.
func (p *Project) snapshot() Project {
	cp := *p
	cp.Approvers = append([]string(nil), p.Approvers...)
	cp.withdrawals = nil
	return cp
}

// Withdrawal is one fund-release proposal against a project.
//
// Approvers records distinct accounts in approval order, proposer first.
// The order is kept for audit readability only; threshold evaluation is a
// count. Executed is a one-way latch.
type Withdrawal struct {
	ID        uint64   `json:"id"`
	ProjectID string   `json:"project_id"`
	Amount    uint64   `json:"amount"`
	Recipient string   `json:"recipient"`
	Approvers []string `json:"approvers"`
	Executed  bool     `json:"executed"`
}

func (w *Withdrawal) hasApproved(account string) bool {
	for _, a := range w.Approvers {
		if a == account {
			return true
		}
	}
	return false
}

func (w *Withdrawal) snapshot() Withdrawal {
	cp := *w
	cp.Approvers = append([]string(nil), w.Approvers...)
	return cp
}

// ExecutionReceipt is the immutable record produced when a withdrawal
// settles. The content hash covers the canonical JSON of the settlement
// facts, so the receipt can be archived and verified independently of the
// engine.
type ExecutionReceipt struct {
	ReceiptID    string   `json:"receipt_id"`
	ProjectID    string   `json:"project_id"`
	WithdrawalID uint64   `json:"withdrawal_id"`
	Amount       uint64   `json:"amount"`
	Recipient    string   `json:"recipient"`
	Approvers    []string `json:"approvers"`
	LogicalTime  uint64   `json:"logical_time"`
	ContentHash  string   `json:"content_hash"`
}

func newExecutionReceipt(w *Withdrawal, logicalTime uint64) *ExecutionReceipt {
	r := &ExecutionReceipt{
		ReceiptID:    uuid.New().String(),
		ProjectID:    w.ProjectID,
		WithdrawalID: w.ID,
		Amount:       w.Amount,
		Recipient:    w.Recipient,
		Approvers:    append([]string(nil), w.Approvers...),
		LogicalTime:  logicalTime,
	}

	hashable := struct {
		ProjectID    string   `json:"project_id"`
		WithdrawalID uint64   `json:"withdrawal_id"`
		Amount       uint64   `json:"amount"`
		Recipient    string   `json:"recipient"`
		Approvers    []string `json:"approvers"`
		LogicalTime  uint64   `json:"logical_time"`
	}{r.ProjectID, r.WithdrawalID, r.Amount, r.Recipient, r.Approvers, r.LogicalTime}

	raw, _ := json.Marshal(hashable)
	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}
	h := sha256.Sum256(canonical)
	r.ContentHash = "sha256:" + hex.EncodeToString(h[:])
	return r
}

// AuditSink receives one record per successful mutation. Implementations
// must not block the engine; failures are ignored.
type AuditSink interface {
	Record(ctx context.Context, action, actor string, metadata map[string]any) error
}

// Metrics is the observability hook for engine operations.
type Metrics interface {
	RecordContribution(ctx context.Context, amount uint64)
	RecordProposal(ctx context.Context)
	RecordApproval(ctx context.Context)
	RecordExecution(ctx context.Context, amount uint64)
	SetPoolBalance(ctx context.Context, balance uint64)
}
