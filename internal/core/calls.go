package core

import "ledgercore/pkg/domain"

// Call is a module transition requested by a signed transaction.
type Call interface {
	Module() string
	Name() string
}

// CreateCreature mints a creature for the caller.
type CreateCreature struct{}

// TransferCreature hands creature ID to To.
type TransferCreature struct {
	To domain.AccountID
	ID domain.CreatureID
}

// BreedCreatures breeds A with B.
type BreedCreatures struct {
	A domain.CreatureID
	B domain.CreatureID
}

// CreateClaim registers Claim for the caller.
type CreateClaim struct {
	Claim []byte
}

// RevokeClaim removes Claim.
type RevokeClaim struct {
	Claim []byte
}

// TransferClaim hands Claim to To.
type TransferClaim struct {
	Claim []byte
	To    domain.AccountID
}

func (CreateCreature) Module() string   { return domain.ModuleCreatures }
func (TransferCreature) Module() string { return domain.ModuleCreatures }
func (BreedCreatures) Module() string   { return domain.ModuleCreatures }
func (CreateClaim) Module() string      { return domain.ModuleClaims }
func (RevokeClaim) Module() string      { return domain.ModuleClaims }
func (TransferClaim) Module() string    { return domain.ModuleClaims }

func (CreateCreature) Name() string   { return "create" }
func (TransferCreature) Name() string { return "transfer" }
func (BreedCreatures) Name() string   { return "breed" }
func (CreateClaim) Name() string      { return "create_claim" }
func (RevokeClaim) Name() string      { return "revoke_claim" }
func (TransferClaim) Name() string    { return "transfer_claim" }

// Extrinsic is a signed transaction: an authenticated caller and a call.
type Extrinsic struct {
	Caller domain.AccountID
	Call   Call
}

// Block is an ordered batch of extrinsics at a height.
type Block struct {
	Height     uint64
	Extrinsics []Extrinsic
}

// Receipt reports the outcome of one extrinsic. Err is nil on success; a
// failed extrinsic has no events and left the ledger unchanged. Resumed marks
// an extrinsic dispatched by an earlier, interrupted attempt at the block; its
// events are read back from the event log and Result is empty.
type Receipt struct {
	Index   uint32
	Module  string
	Call    string
	Events  []domain.Event
	Result  domain.Result
	Err     error
	Resumed bool
}

// BlockReceipt reports the outcome of ApplyBlock.
type BlockReceipt struct {
	Height   uint64
	Seed     domain.Seed
	Receipts []Receipt
}

// Failed returns the receipts of extrinsics that did not commit.
func (b BlockReceipt) Failed() []Receipt {
	var out []Receipt
	for _, r := range b.Receipts {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
