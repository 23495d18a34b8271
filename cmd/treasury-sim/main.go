// Command treasury-sim runs an end-to-end disbursement scenario against an
// in-memory funds ledger: contributions, a project with a two-party
// threshold, a withdrawal settled by a second approval, and an evidence-pack
// export. Useful as a smoke test and as executable documentation.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Mindburn-Labs/treasury/pkg/audit"
	"github.com/Mindburn-Labs/treasury/pkg/config"
	"github.com/Mindburn-Labs/treasury/pkg/funds"
	"github.com/Mindburn-Labs/treasury/pkg/store"
	"github.com/Mindburn-Labs/treasury/pkg/treasury"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	ledger := funds.NewMemoryLedger()
	engine := treasury.New(cfg.Admin, cfg.Custody, ledger).
		WithAudit(audit.NewLogger())

	// The host moves value into custody before reporting the contribution.
	ledger.Mint(cfg.Custody, 1_000_000)
	if err := engine.Contribute(ctx, "contributor-a", 1_000_000); err != nil {
		log.Fatalf("contribute: %v", err)
	}

	if err := engine.CreateProject(ctx, cfg.Admin, "P1", "community well", 500_000, 2); err != nil {
		log.Fatalf("create project: %v", err)
	}
	if err := engine.AddApprover(ctx, cfg.Admin, "P1", "approver-b"); err != nil {
		log.Fatalf("add approver: %v", err)
	}

	id, _, err := engine.ProposeWithdrawal(ctx, cfg.Admin, "P1", 200_000, "recipient-r")
	if err != nil {
		log.Fatalf("propose withdrawal: %v", err)
	}
	receipt, err := engine.ApproveWithdrawal(ctx, "approver-b", "P1", id)
	if err != nil {
		log.Fatalf("approve withdrawal: %v", err)
	}
	if receipt == nil {
		log.Fatal("expected threshold approval to settle the withdrawal")
	}

	fmt.Printf("settled withdrawal %d: %d units to %s (receipt %s)\n",
		receipt.WithdrawalID, receipt.Amount, receipt.Recipient, receipt.ReceiptID)
	fmt.Printf("pool balance: %d\n", engine.PoolBalance())

	evlog := engine.EventLog()
	for _, ev := range evlog.Range(1, evlog.MaxID()) {
		fmt.Printf("event %3d  t=%-3d %-20s project=%-4s actor=%-12s amount=%d %s\n",
			ev.ID, ev.LogicalTime, ev.Type, ev.ProjectID, ev.Actor, ev.Amount, ev.Payload)
	}
	if ok, reason := evlog.Verify(); !ok {
		fmt.Fprintf(os.Stderr, "event chain broken: %s\n", reason)
		os.Exit(1)
	}
	fmt.Println("event chain verified")

	// Mirror the log into a store and export the evidence pack.
	eventStore := store.NewMemoryStore()
	if _, err := store.NewSyncer(evlog, eventStore).Sync(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sync events: %v\n", err)
		os.Exit(1)
	}
	pack, checksum, err := audit.NewExporter(eventStore).GeneratePack(ctx, 1, evlog.MaxID())
	if err != nil {
		fmt.Fprintf(os.Stderr, "export evidence pack: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("evidence pack: %d bytes, %s\n", len(pack), checksum)
}
