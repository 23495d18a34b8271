package treasury

import "errors"

// Error kinds surfaced to the host. Every public operation either fully
// succeeds or fails with one of these; callers match with errors.Is.
var (
	// ErrNotAuthorized is returned when the caller lacks the required role.
	ErrNotAuthorized = errors.New("treasury: not authorized")
	// ErrInsufficientFunds is returned when an allocation or withdrawal
	// exceeds the available balance.
	ErrInsufficientFunds = errors.New("treasury: insufficient funds")
	// ErrUnknownProject is returned when the project ID does not exist.
	ErrUnknownProject = errors.New("treasury: unknown project")
	// ErrUnknownWithdrawal is returned when the withdrawal ID does not exist.
	ErrUnknownWithdrawal = errors.New("treasury: unknown withdrawal")
	// ErrInvalidAmount is returned for zero amounts and allocations below
	// the already-spent total.
	ErrInvalidAmount = errors.New("treasury: invalid amount")
	// ErrProjectExists is returned when creating a project with a taken ID.
	ErrProjectExists = errors.New("treasury: project already exists")
	// ErrProjectLocked is returned when updating the allocation of a locked
	// project.
	ErrProjectLocked = errors.New("treasury: project locked")
	// ErrThresholdNotMet is returned by the execution step when the approval
	// count is below the project threshold.
	ErrThresholdNotMet = errors.New("treasury: approval threshold not met")
	// ErrAlreadyExecuted is returned when acting on a settled withdrawal.
	ErrAlreadyExecuted = errors.New("treasury: withdrawal already executed")
	// ErrAlreadyApproved is returned when an approver approves twice.
	ErrAlreadyApproved = errors.New("treasury: already approved")
)
