package domain

import (
	"errors"
	"fmt"
)

// Transition errors. Every precondition is checked before any write, so a
// transition failing with one of these leaves the ledger unchanged.
var (
	// Resource exhaustion.
	ErrCreatureIDOverflow = errors.New("creature id space exhausted")

	// Funding.
	ErrInsufficientFunds = errors.New("insufficient free balance for deposit")

	// Not found.
	ErrNotFound      = errors.New("creature not found")
	ErrInvalidParent = errors.New("parent creature does not exist")
	ErrClaimNotFound = errors.New("claim does not exist")

	// Authorization.
	ErrNotOwner       = errors.New("caller does not own the creature")
	ErrNotParentOwner = errors.New("caller does not own the parent creatures")
	ErrNotClaimOwner  = errors.New("caller does not own the claim")

	// Invariant violation.
	ErrSelfTransfer        = errors.New("cannot transfer to self")
	ErrIdenticalParents    = errors.New("creature cannot breed with itself")
	ErrClaimTooShort       = errors.New("claim shorter than minimum length")
	ErrClaimTooLong        = errors.New("claim longer than maximum length")
	ErrClaimAlreadyExists  = errors.New("claim already exists")
	ErrEmptyAccountID      = errors.New("account id must not be empty")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrHeightRegression    = errors.New("block height must increase")
	ErrGenesisApplied      = errors.New("genesis already applied")
	ErrUnknownCall         = errors.New("unknown call")
	ErrCurrencyUnavailable = errors.New("currency collaborator not configured")
)

// ErrBlockMismatch reports a retried block whose extrinsics differ from the
// partially applied block recorded under the same height.
var ErrBlockMismatch = errors.New("block differs from the partially applied block")

// ErrBlockPending reports a block submitted while an earlier block is only
// partially applied.
var ErrBlockPending = errors.New("an earlier block is partially applied")

// rejections are the transition errors a module returns for a well-formed
// extrinsic it refuses. Replaying the extrinsic on the same state yields the
// same rejection.
var rejections = []error{
	ErrCreatureIDOverflow, ErrInsufficientFunds,
	ErrNotFound, ErrInvalidParent, ErrClaimNotFound,
	ErrNotOwner, ErrNotParentOwner, ErrNotClaimOwner,
	ErrSelfTransfer, ErrIdenticalParents, ErrClaimTooShort, ErrClaimTooLong,
	ErrClaimAlreadyExists, ErrEmptyAccountID, ErrBalanceOverflow,
	ErrUnknownCall, ErrCurrencyUnavailable,
}

// IsRejection reports whether err is a deterministic transition rejection
// rather than a storage or context failure.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DispatchError wraps a failed transition with the module and call that
// produced it. errors.Is reaches the underlying sentinel.
type DispatchError struct {
	Module string
	Call   string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Module, e.Call, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
