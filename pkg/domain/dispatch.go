package domain

// SeedSize is the length of a per-block randomness seed.
const SeedSize = 32

// Seed is the per-block randomness value agreed by consensus.
type Seed [SeedSize]byte

// RandomnessSource yields the seed of a block. Every replica must return the
// same seed for the same height.
type RandomnessSource interface {
	Seed(height uint64) Seed
}

// Currency is the reservable-balance collaborator charged for creature
// deposits. Reserve must fail with ErrInsufficientFunds and leave tx
// untouched when who cannot cover amount.
type Currency interface {
	Reserve(tx Transaction, who AccountID, amount Balance) error
}

// BlockContext carries the block-scoped inputs of a transition.
type BlockContext struct {
	Height uint64
	Seed   Seed
}

// Dispatch is the execution context of a single signed transaction: who sent
// it, which block and position it executes at, the staged ledger state, and
// the events it has deposited so far.
type Dispatch struct {
	Caller AccountID
	Block  BlockContext
	Index  uint32
	Tx     Transaction

	events []Event
}

// NewDispatch builds the context for the extrinsic at index within block.
func NewDispatch(tx Transaction, block BlockContext, index uint32, caller AccountID) *Dispatch {
	return &Dispatch{
		Caller: caller,
		Block:  block,
		Index:  index,
		Tx:     tx,
	}
}

// Deposit appends an event. Events only become observable if the transaction
// commits.
func (d *Dispatch) Deposit(event Event) {
	d.events = append(d.events, event)
}

// Events returns a copy of the deposited events in emission order.
func (d *Dispatch) Events() []Event {
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}
