package domain

// Module names used to namespace events and dispatch errors.
const (
	ModuleCreatures = "creatures"
	ModuleClaims    = "claims"
	ModuleBalances  = "balances"
)

// Event is a notification deposited by a successful transition.
type Event interface {
	Module() string
	EventName() string
}

// Created reports a newly minted creature.
type Created struct {
	Owner AccountID  `cbor:"1,keyasint" json:"owner"`
	ID    CreatureID `cbor:"2,keyasint" json:"id"`
}

// Transferred reports a creature changing owner.
type Transferred struct {
	From AccountID  `cbor:"1,keyasint" json:"from"`
	To   AccountID  `cbor:"2,keyasint" json:"to"`
	ID   CreatureID `cbor:"3,keyasint" json:"id"`
}

// Bred reports a creature produced from two parents.
type Bred struct {
	Owner AccountID  `cbor:"1,keyasint" json:"owner"`
	ID    CreatureID `cbor:"2,keyasint" json:"id"`
}

// ClaimCreated reports a new claim.
type ClaimCreated struct {
	Owner AccountID `cbor:"1,keyasint" json:"owner"`
	Claim []byte    `cbor:"2,keyasint" json:"claim"`
}

// ClaimRevoked reports a claim removed by its owner.
type ClaimRevoked struct {
	Owner AccountID `cbor:"1,keyasint" json:"owner"`
	Claim []byte    `cbor:"2,keyasint" json:"claim"`
}

// ClaimTransferred reports a claim moving to a new owner.
type ClaimTransferred struct {
	From  AccountID `cbor:"1,keyasint" json:"from"`
	Claim []byte    `cbor:"2,keyasint" json:"claim"`
	To    AccountID `cbor:"3,keyasint" json:"to"`
}

func (Created) Module() string          { return ModuleCreatures }
func (Transferred) Module() string      { return ModuleCreatures }
func (Bred) Module() string             { return ModuleCreatures }
func (ClaimCreated) Module() string     { return ModuleClaims }
func (ClaimRevoked) Module() string     { return ModuleClaims }
func (ClaimTransferred) Module() string { return ModuleClaims }

func (Created) EventName() string          { return "Created" }
func (Transferred) EventName() string      { return "Transferred" }
func (Bred) EventName() string             { return "Breed" }
func (ClaimCreated) EventName() string     { return "ClaimCreated" }
func (ClaimRevoked) EventName() string     { return "ClaimRevoked" }
func (ClaimTransferred) EventName() string { return "ClaimTransfer" }

// DecodeEvent rebuilds the event registered under module and name using
// decode to fill it. Unknown events report ok=false.
func DecodeEvent(module, name string, decode func(target any) error) (event Event, ok bool, err error) {
	switch module + "." + name {
	case ModuleCreatures + ".Created":
		return decodeInto[Created](decode)
	case ModuleCreatures + ".Transferred":
		return decodeInto[Transferred](decode)
	case ModuleCreatures + ".Breed":
		return decodeInto[Bred](decode)
	case ModuleClaims + ".ClaimCreated":
		return decodeInto[ClaimCreated](decode)
	case ModuleClaims + ".ClaimRevoked":
		return decodeInto[ClaimRevoked](decode)
	case ModuleClaims + ".ClaimTransfer":
		return decodeInto[ClaimTransferred](decode)
	default:
		return nil, false, nil
	}
}

func decodeInto[T Event](decode func(target any) error) (Event, bool, error) {
	var value T
	if err := decode(&value); err != nil {
		return nil, true, err
	}
	return value, true, nil
}
