// Package claims implements the proof-of-existence registry: short opaque
// claims owned by at most one account, created, revoked and transferred by
// their owner.
package claims

import (
	"bytes"

	"ledgercore/internal/storage"
	"ledgercore/pkg/domain"
)

// TableClaims maps claim bytes to their record.
const TableClaims domain.Table = "claims.proofs"

// Default claim length bounds, inclusive.
const (
	DefaultMinLength = 2
	DefaultMaxLength = 10
)

// Config carries the registry parameters.
type Config struct {
	MinLength int
	MaxLength int
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{MinLength: DefaultMinLength, MaxLength: DefaultMaxLength}
}

// Registry is the claim module.
type Registry struct {
	cfg    Config
	proofs storage.Map[[]byte, domain.ClaimRecord]
}

// NewRegistry constructs the module. A zero Config selects the defaults.
func NewRegistry(cfg Config) *Registry {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Registry{
		cfg:    cfg,
		proofs: storage.NewMap[[]byte, domain.ClaimRecord](TableClaims, storage.BytesKey{}),
	}
}

// Config returns the active parameters.
func (r *Registry) Config() Config { return r.cfg }

// Tables lists the tables owned by the module.
func (r *Registry) Tables() []domain.Table {
	return []domain.Table{TableClaims}
}

// CreateClaim records claim as owned by the caller at the current height.
func (r *Registry) CreateClaim(d *domain.Dispatch, claim []byte) error {
	if len(claim) < r.cfg.MinLength {
		return domain.ErrClaimTooShort
	}
	if len(claim) > r.cfg.MaxLength {
		return domain.ErrClaimTooLong
	}
	exists, err := r.proofs.Contains(d.Tx, claim)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrClaimAlreadyExists
	}

	record := domain.ClaimRecord{Owner: d.Caller, Height: d.Block.Height, AttestedAt: d.Block.Height}
	if err := r.proofs.Put(d.Tx, claim, record); err != nil {
		return err
	}
	key := bytes.Clone(claim)
	d.Tx.RecordChange(domain.Change{
		Entity: domain.EntityClaim,
		Action: domain.ActionCreate,
		After:  domain.Claim{Key: key, Record: record},
	})
	d.Deposit(domain.ClaimCreated{Owner: d.Caller, Claim: key})
	return nil
}

// RevokeClaim deletes a claim owned by the caller.
func (r *Registry) RevokeClaim(d *domain.Dispatch, claim []byte) error {
	record, err := r.owned(d, claim)
	if err != nil {
		return err
	}
	if err := r.proofs.Delete(d.Tx, claim); err != nil {
		return err
	}
	key := bytes.Clone(claim)
	d.Tx.RecordChange(domain.Change{
		Entity: domain.EntityClaim,
		Action: domain.ActionDelete,
		Before: domain.Claim{Key: key, Record: record},
	})
	d.Deposit(domain.ClaimRevoked{Owner: d.Caller, Claim: key})
	return nil
}

// TransferClaim hands a claim owned by the caller to recipient. The ownership
// height moves to the current block; the attestation height is kept.
func (r *Registry) TransferClaim(d *domain.Dispatch, claim []byte, recipient domain.AccountID) error {
	before, err := r.owned(d, claim)
	if err != nil {
		return err
	}
	if recipient == d.Caller {
		return domain.ErrSelfTransfer
	}
	if recipient == "" {
		return domain.ErrEmptyAccountID
	}

	after := domain.ClaimRecord{Owner: recipient, Height: d.Block.Height, AttestedAt: before.AttestedAt}
	if err := r.proofs.Put(d.Tx, claim, after); err != nil {
		return err
	}
	key := bytes.Clone(claim)
	d.Tx.RecordChange(domain.Change{
		Entity: domain.EntityClaim,
		Action: domain.ActionUpdate,
		Before: domain.Claim{Key: key, Record: before},
		After:  domain.Claim{Key: key, Record: after},
	})
	d.Deposit(domain.ClaimTransferred{From: d.Caller, Claim: key, To: recipient})
	return nil
}

// Claim returns the record of claim.
func (r *Registry) Claim(view domain.KVReader, claim []byte) (domain.ClaimRecord, bool, error) {
	return r.proofs.Get(view, claim)
}

// Each visits every claim in key order until fn returns false.
func (r *Registry) Each(view domain.KVReader, fn func(claim []byte, record domain.ClaimRecord) bool) error {
	return r.proofs.Iterate(view, fn)
}

func (r *Registry) owned(d *domain.Dispatch, claim []byte) (domain.ClaimRecord, error) {
	record, ok, err := r.proofs.Get(d.Tx, claim)
	if err != nil {
		return domain.ClaimRecord{}, err
	}
	if !ok {
		return domain.ClaimRecord{}, domain.ErrClaimNotFound
	}
	if record.Owner != d.Caller {
		return domain.ClaimRecord{}, domain.ErrNotClaimOwner
	}
	return record, nil
}
