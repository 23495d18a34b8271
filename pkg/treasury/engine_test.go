package treasury

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
	"github.com/Mindburn-Labs/treasury/pkg/funds"
)

const (
	admin   = "admin"
	custody = "treasury-pool"
)

// newTestEngine returns an engine whose custody account already holds seed
// units on the funds ledger, mirroring a host that moves value before
// reporting contributions.
func newTestEngine(seed uint64) (*Engine, *funds.MemoryLedger) {
	ledger := funds.NewMemoryLedger()
	ledger.Mint(custody, seed)
	return New(admin, custody, ledger), ledger
}

func TestContribute(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()

	require.NoError(t, e.Contribute(ctx, "alice", 500))
	require.NoError(t, e.Contribute(ctx, "alice", 250))
	require.NoError(t, e.Contribute(ctx, "bob", 100))

	assert.Equal(t, uint64(850), e.PoolBalance())
	assert.Equal(t, uint64(750), e.ContributionOf("alice"))
	assert.Equal(t, uint64(100), e.ContributionOf("bob"))
	assert.Equal(t, uint64(0), e.ContributionOf("carol"))
}

func TestContributeZeroAmount(t *testing.T) {
	e, _ := newTestEngine(0)

	err := e.Contribute(context.Background(), "alice", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, uint64(0), e.PoolBalance())
	assert.Equal(t, uint64(0), e.EventLog().MaxID())
}

func TestCreateProject(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 1000))

	require.NoError(t, e.CreateProject(ctx, admin, "p1", "irrigation", 600, 2))

	p, err := e.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), p.Allocated)
	assert.Equal(t, uint64(0), p.Spent)
	assert.False(t, p.Locked)
	assert.Equal(t, 2, p.Threshold)
	assert.Equal(t, admin, p.Creator)
	// Admin is auto-registered as approver.
	assert.True(t, e.IsApprover("p1", admin))
}

func TestCreateProjectErrors(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 50, 1))

	assert.ErrorIs(t, e.CreateProject(ctx, "mallory", "p2", "", 10, 1), ErrNotAuthorized)
	assert.ErrorIs(t, e.CreateProject(ctx, admin, "p1", "", 10, 1), ErrProjectExists)
	assert.ErrorIs(t, e.CreateProject(ctx, admin, "p3", "", 101, 1), ErrInsufficientFunds)
	assert.ErrorIs(t, e.CreateProject(ctx, admin, "p4", "", 10, 0), ErrInvalidAmount)
}

// Allocation is checked against the live pool balance, not reserved: two
// projects may jointly over-commit the pool. The shortfall surfaces at the
// funds-ledger step during execution instead.
func TestCreateProjectAllocationNotReserved(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))

	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 80, 1))
	require.NoError(t, e.CreateProject(ctx, admin, "p2", "", 80, 1))

	p1, _ := e.GetProject("p1")
	p2, _ := e.GetProject("p2")
	assert.Equal(t, uint64(160), p1.Allocated+p2.Allocated)
	assert.Equal(t, uint64(100), e.PoolBalance())
}

func TestUpdateAllocation(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 1000))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 400, 1))

	require.NoError(t, e.UpdateAllocation(ctx, admin, "p1", 700))
	p, _ := e.GetProject("p1")
	assert.Equal(t, uint64(700), p.Allocated)

	// Shrinking is allowed down to spent.
	require.NoError(t, e.UpdateAllocation(ctx, admin, "p1", 0))
}

func TestUpdateAllocationErrors(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 50, 1))

	assert.ErrorIs(t, e.UpdateAllocation(ctx, "mallory", "p1", 60), ErrNotAuthorized)
	assert.ErrorIs(t, e.UpdateAllocation(ctx, admin, "nope", 60), ErrUnknownProject)
	// Increase delta exceeding the pool.
	assert.ErrorIs(t, e.UpdateAllocation(ctx, admin, "p1", 151), ErrInsufficientFunds)

	require.NoError(t, e.LockProject(ctx, admin, "p1"))
	assert.ErrorIs(t, e.UpdateAllocation(ctx, admin, "p1", 60), ErrProjectLocked)
}

func TestUpdateAllocationBelowSpent(t *testing.T) {
	e, _ := newTestEngine(100)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 50, 1))
	_, receipt, err := e.ProposeWithdrawal(ctx, admin, "p1", 30, "r")
	require.NoError(t, err)
	require.NotNil(t, receipt)

	err = e.UpdateAllocation(ctx, admin, "p1", 29)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLockUnlock(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 50, 1))

	require.NoError(t, e.LockProject(ctx, admin, "p1"))
	p, _ := e.GetProject("p1")
	assert.True(t, p.Locked)

	require.NoError(t, e.UnlockProject(ctx, admin, "p1"))
	p, _ = e.GetProject("p1")
	assert.False(t, p.Locked)

	assert.ErrorIs(t, e.LockProject(ctx, "mallory", "p1"), ErrNotAuthorized)
	assert.ErrorIs(t, e.LockProject(ctx, admin, "nope"), ErrUnknownProject)
}

func TestApproverRegistry(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 50, 2))

	require.NoError(t, e.AddApprover(ctx, admin, "p1", "bob"))
	assert.True(t, e.IsApprover("p1", "bob"))
	assert.False(t, e.IsApprover("p1", "carol"))
	assert.False(t, e.IsApprover("nope", "bob"))

	require.NoError(t, e.RemoveApprover(ctx, admin, "p1", "bob"))
	assert.False(t, e.IsApprover("p1", "bob"))

	assert.ErrorIs(t, e.AddApprover(ctx, "bob", "p1", "carol"), ErrNotAuthorized)
	assert.ErrorIs(t, e.AddApprover(ctx, admin, "nope", "carol"), ErrUnknownProject)
	assert.ErrorIs(t, e.RemoveApprover(ctx, "bob", "p1", "carol"), ErrNotAuthorized)
	assert.ErrorIs(t, e.RemoveApprover(ctx, admin, "nope", "carol"), ErrUnknownProject)
}

// Removing an approver does not rewrite approvals already recorded on open
// withdrawals.
func TestRemoveApproverKeepsRecordedApprovals(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 1000))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 500, 3))
	require.NoError(t, e.AddApprover(ctx, admin, "p1", "bob"))

	id, _, err := e.ProposeWithdrawal(ctx, "bob", "p1", 100, "r")
	require.NoError(t, err)

	require.NoError(t, e.RemoveApprover(ctx, admin, "p1", "bob"))

	w, err := e.GetWithdrawal("p1", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, w.Approvers)
	assert.True(t, e.HasApproved("p1", id, "bob"))
}

func TestEventsAppendedPerMutation(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()

	require.NoError(t, e.Contribute(ctx, "alice", 100))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "well", 50, 2))
	require.NoError(t, e.AddApprover(ctx, admin, "p1", "bob"))
	require.NoError(t, e.LockProject(ctx, admin, "p1"))
	require.NoError(t, e.UnlockProject(ctx, admin, "p1"))
	require.NoError(t, e.UpdateAllocation(ctx, admin, "p1", 60))
	require.NoError(t, e.RemoveApprover(ctx, admin, "p1", "bob"))

	evs := e.Events(1, 7)
	require.Len(t, evs, 7)
	types := make([]eventlog.Type, 0, len(evs))
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []eventlog.Type{
		eventlog.TypeContribution,
		eventlog.TypeProjectCreated,
		eventlog.TypeApproverAdded,
		eventlog.TypeProjectLocked,
		eventlog.TypeProjectUnlocked,
		eventlog.TypeAllocationUpdated,
		eventlog.TypeApproverRemoved,
	}, types)

	ok, reason := e.EventLog().Verify()
	assert.True(t, ok, reason)
}

func TestFailedOperationAppendsNoEvent(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))

	before := e.EventLog().MaxID()
	assert.Error(t, e.CreateProject(ctx, "mallory", "p1", "", 10, 1))
	assert.Error(t, e.CreateProject(ctx, admin, "p1", "", 1000, 1))
	assert.Equal(t, before, e.EventLog().MaxID())
}

func TestWithClockStampsEvents(t *testing.T) {
	e, _ := newTestEngine(0)
	var ts uint64 = 41
	e.WithClock(func() uint64 { ts++; return ts })

	require.NoError(t, e.Contribute(context.Background(), "alice", 5))
	ev, err := e.EventLog().Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ev.LogicalTime)
}

func TestProjectSnapshotIsDetached(t *testing.T) {
	e, _ := newTestEngine(0)
	ctx := context.Background()
	require.NoError(t, e.Contribute(ctx, "alice", 100))
	require.NoError(t, e.CreateProject(ctx, admin, "p1", "", 50, 1))

	p, _ := e.GetProject("p1")
	p.Approvers[0] = "tampered"
	p.Allocated = 9999

	assert.True(t, e.IsApprover("p1", admin))
	fresh, _ := e.GetProject("p1")
	assert.Equal(t, uint64(50), fresh.Allocated)
}
