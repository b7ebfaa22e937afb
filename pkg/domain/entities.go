// Package domain defines the ledger value types, transition context, events,
// and rule evaluation primitives shared by the ledgercore modules.
package domain

import (
	"encoding/hex"
	"fmt"
)

// EntityType identifies the kind of record touched by a Change.
type EntityType string

// Supported entity type identifiers used in Change records and audit entries.
const (
	// EntityCreature identifies a creature record (genome, owner, relationships).
	EntityCreature EntityType = "creature"
	// EntityClaim identifies a proof-of-existence claim record.
	EntityClaim EntityType = "claim"
	// EntityBalance identifies a currency account.
	EntityBalance EntityType = "balance"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// AccountID is the opaque identity of a transaction signer.
type AccountID string

// Balance is an amount of the native currency.
type Balance uint64

// CreatureID identifies a creature. Ids are allocated sequentially from zero.
type CreatureID uint32

// GenomeSize is the fixed length of a creature genome in bytes.
const GenomeSize = 16

// Genome is the immutable 16-byte value of a creature.
type Genome [GenomeSize]byte

// String renders the genome as lowercase hex.
func (g Genome) String() string {
	return hex.EncodeToString(g[:])
}

// Parentage records the ordered parents of a bred creature.
type Parentage struct {
	A CreatureID `cbor:"1,keyasint" json:"a"`
	B CreatureID `cbor:"2,keyasint" json:"b"`
}

func (p Parentage) String() string {
	return fmt.Sprintf("(%d,%d)", p.A, p.B)
}

// Creature is the aggregated read model of a creature used in queries and
// change payloads.
type Creature struct {
	ID      CreatureID `json:"id"`
	Genome  Genome     `json:"genome"`
	Owner   AccountID  `json:"owner"`
	Parents *Parentage `json:"parents,omitempty"`
}

// ClaimRecord stores the owner of a claim. Height is the block at which the
// current owner acquired the claim; AttestedAt is the block at which the claim
// was first created and never changes across transfers.
type ClaimRecord struct {
	Owner      AccountID `cbor:"1,keyasint" json:"owner"`
	Height     uint64    `cbor:"2,keyasint" json:"height"`
	AttestedAt uint64    `cbor:"3,keyasint" json:"attested_at"`
}

// Claim pairs claim bytes with their record for change payloads.
type Claim struct {
	Key    []byte      `json:"key"`
	Record ClaimRecord `json:"record"`
}

// Account holds the free and reserved balance of an account.
type Account struct {
	Free     Balance `cbor:"1,keyasint" json:"free"`
	Reserved Balance `cbor:"2,keyasint" json:"reserved"`
}

// AccountChange is the payload recorded for balance mutations.
type AccountChange struct {
	Who     AccountID `json:"who"`
	Account Account   `json:"account"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

// MarshalText encodes the genome as hex so JSON and YAML renderings stay readable.
func (g Genome) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes a hex genome.
func (g *Genome) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != GenomeSize {
		return fmt.Errorf("genome must be %d hex bytes, got %d characters", GenomeSize, len(text))
	}
	_, err := hex.Decode(g[:], text)
	return err
}
