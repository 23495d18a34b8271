// Package funds models the host-supplied ledger primitive: an atomic
// transfer-or-fail operation between accounts plus a balance query.
// The treasury engine consumes this boundary; it never implements value
// movement itself.
package funds

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientBalance is returned when a transfer would overdraw the
// source account.
var ErrInsufficientBalance = errors.New("funds: insufficient balance")

// Ledger is the atomic value-movement boundary. Transfer is all-or-nothing;
// there is no partial transfer.
type Ledger interface {
	// Transfer moves amount from one account to another, or fails with no
	// effect.
	Transfer(ctx context.Context, amount uint64, from, to string) error

	// BalanceOf returns the current balance of an account. Unknown accounts
	// hold zero.
	BalanceOf(ctx context.Context, account string) (uint64, error)
}

// MemoryLedger is a thread-safe in-memory Ledger for tests and single-process
// hosts.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]uint64)}
}

// Mint credits amount to an account out of thin air. Test seeding only.
func (l *MemoryLedger) Mint(account string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

func (l *MemoryLedger) Transfer(ctx context.Context, amount uint64, from, to string) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("transfer %d from %q: %w", amount, from, ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *MemoryLedger) BalanceOf(ctx context.Context, account string) (uint64, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}
