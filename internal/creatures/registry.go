// Package creatures implements the creature registry: minting creatures with
// deterministic 16-byte genomes, transferring them between accounts, and
// breeding two creatures into a third while maintaining the ownership,
// holdings, parentage, children, sibling and partner indexes.
package creatures

import (
	"fmt"
	"math"

	"ledgercore/internal/entropy"
	"ledgercore/internal/storage"
	"ledgercore/pkg/domain"
)

// Ledger tables owned by the registry.
const (
	TableGenomes  domain.Table = "creatures.genomes"
	TableMeta     domain.Table = "creatures.meta"
	TableOwners   domain.Table = "creatures.owners"
	TableHoldings domain.Table = "creatures.holdings"
	TableParents  domain.Table = "creatures.parents"
	TableChildren domain.Table = "creatures.children"
	TableSiblings domain.Table = "creatures.siblings"
	TablePartners domain.Table = "creatures.partners"
)

// DefaultDeposit is the amount reserved from the caller when minting.
const DefaultDeposit domain.Balance = 5_000

// BreedPolicy controls who may breed two creatures.
type BreedPolicy string

const (
	// BreedAnyone lets any caller breed any two existing creatures.
	BreedAnyone BreedPolicy = "anyone"
	// BreedOwnerOfOne requires the caller to own at least one parent.
	BreedOwnerOfOne BreedPolicy = "owner-of-one"
	// BreedOwnerOfBoth requires the caller to own both parents.
	BreedOwnerOfBoth BreedPolicy = "owner-of-both"
)

// ParseBreedPolicy validates a policy name.
func ParseBreedPolicy(name string) (BreedPolicy, error) {
	switch p := BreedPolicy(name); p {
	case BreedAnyone, BreedOwnerOfOne, BreedOwnerOfBoth:
		return p, nil
	default:
		return "", fmt.Errorf("unknown breed policy %q", name)
	}
}

// Config carries the registry parameters.
type Config struct {
	// Deposit is reserved from the caller on Create.
	Deposit domain.Balance
	// MaxID is the counter value at which id allocation stops. The last
	// allocatable id is MaxID-1.
	MaxID       domain.CreatureID
	BreedPolicy BreedPolicy
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		Deposit:     DefaultDeposit,
		MaxID:       math.MaxUint32,
		BreedPolicy: BreedOwnerOfOne,
	}
}

// Registry is the creature module.
type Registry struct {
	cfg      Config
	currency domain.Currency

	genomes  storage.Map[domain.CreatureID, domain.Genome]
	count    storage.Value[domain.CreatureID]
	owners   storage.Map[domain.CreatureID, domain.AccountID]
	holdings storage.Map[domain.AccountID, []domain.CreatureID]
	parents  storage.Map[domain.CreatureID, domain.Parentage]
	children storage.DoubleMap[domain.CreatureID, domain.CreatureID, []domain.CreatureID]
	siblings storage.Map[domain.CreatureID, []domain.CreatureID]
	partners storage.Map[domain.CreatureID, []domain.CreatureID]
}

// NewRegistry constructs the module. currency is charged the creation deposit.
// A zero cfg selects DefaultConfig.
func NewRegistry(cfg Config, currency domain.Currency) *Registry {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.BreedPolicy == "" {
		cfg.BreedPolicy = BreedOwnerOfOne
	}
	ids := storage.Uint32Key[domain.CreatureID]{}
	return &Registry{
		cfg:      cfg,
		currency: currency,
		genomes:  storage.NewMap[domain.CreatureID, domain.Genome](TableGenomes, ids),
		count:    storage.NewValue[domain.CreatureID](TableMeta, "count"),
		owners:   storage.NewMap[domain.CreatureID, domain.AccountID](TableOwners, ids),
		holdings: storage.NewMap[domain.AccountID, []domain.CreatureID](TableHoldings, storage.StringKey[domain.AccountID]{}),
		parents:  storage.NewMap[domain.CreatureID, domain.Parentage](TableParents, ids),
		children: storage.NewDoubleMap[domain.CreatureID, domain.CreatureID, []domain.CreatureID](TableChildren, ids, ids),
		siblings: storage.NewMap[domain.CreatureID, []domain.CreatureID](TableSiblings, ids),
		partners: storage.NewMap[domain.CreatureID, []domain.CreatureID](TablePartners, ids),
	}
}

// Config returns the active parameters.
func (r *Registry) Config() Config { return r.cfg }

// Tables lists the tables owned by the module.
func (r *Registry) Tables() []domain.Table {
	return []domain.Table{
		TableGenomes, TableMeta, TableOwners, TableHoldings,
		TableParents, TableChildren, TableSiblings, TablePartners,
	}
}

// CombineGenome mixes two genomes bit by bit: where a selector bit is set the
// bit comes from a, otherwise from b.
func CombineGenome(a, b domain.Genome, selector [domain.GenomeSize]byte) domain.Genome {
	var out domain.Genome
	for i := range out {
		out[i] = (selector[i] & a[i]) | (^selector[i] & b[i])
	}
	return out
}

// Create mints a creature with a derived genome for the caller, reserving the
// configured deposit.
func (r *Registry) Create(d *domain.Dispatch) (domain.CreatureID, error) {
	id, err := r.nextID(d.Tx)
	if err != nil {
		return 0, err
	}
	if r.currency == nil {
		return 0, domain.ErrCurrencyUnavailable
	}
	if err := r.currency.Reserve(d.Tx, d.Caller, r.cfg.Deposit); err != nil {
		return 0, err
	}

	genome := domain.Genome(entropy.ForDispatch(d))
	if err := r.insert(d.Tx, id, d.Caller, genome, nil); err != nil {
		return 0, err
	}
	d.Deposit(domain.Created{Owner: d.Caller, ID: id})
	return id, nil
}

// Transfer moves id from the caller to recipient.
func (r *Registry) Transfer(d *domain.Dispatch, recipient domain.AccountID, id domain.CreatureID) error {
	owner, ok, err := r.owners.Get(d.Tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	if owner != d.Caller {
		return domain.ErrNotOwner
	}
	if recipient == d.Caller {
		return domain.ErrSelfTransfer
	}
	if recipient == "" {
		return domain.ErrEmptyAccountID
	}

	before, err := r.creature(d.Tx, id)
	if err != nil {
		return err
	}
	if err := r.owners.Put(d.Tx, id, recipient); err != nil {
		return err
	}
	if err := r.removeHolding(d.Tx, owner, id); err != nil {
		return err
	}
	if err := r.appendHolding(d.Tx, recipient, id); err != nil {
		return err
	}

	after := before
	after.Owner = recipient
	d.Tx.RecordChange(domain.Change{Entity: domain.EntityCreature, Action: domain.ActionUpdate, Before: before, After: after})
	d.Deposit(domain.Transferred{From: owner, To: recipient, ID: id})
	return nil
}

// Breed produces a new creature owned by the caller from parents a and b.
func (r *Registry) Breed(d *domain.Dispatch, a, b domain.CreatureID) (domain.CreatureID, error) {
	genomeA, okA, err := r.genomes.Get(d.Tx, a)
	if err != nil {
		return 0, err
	}
	genomeB, okB, err := r.genomes.Get(d.Tx, b)
	if err != nil {
		return 0, err
	}
	if !okA || !okB {
		return 0, domain.ErrInvalidParent
	}
	if a == b {
		return 0, domain.ErrIdenticalParents
	}
	if err := r.authorizeBreed(d, a, b); err != nil {
		return 0, err
	}
	id, err := r.nextID(d.Tx)
	if err != nil {
		return 0, err
	}

	genome := CombineGenome(genomeA, genomeB, entropy.ForDispatch(d))
	parentage := domain.Parentage{A: a, B: b}
	if err := r.insert(d.Tx, id, d.Caller, genome, &parentage); err != nil {
		return 0, err
	}
	if err := r.link(d.Tx, id, parentage); err != nil {
		return 0, err
	}
	d.Deposit(domain.Bred{Owner: d.Caller, ID: id})
	return id, nil
}

func (r *Registry) authorizeBreed(d *domain.Dispatch, a, b domain.CreatureID) error {
	if r.cfg.BreedPolicy == BreedAnyone {
		return nil
	}
	ownerA, _, err := r.owners.Get(d.Tx, a)
	if err != nil {
		return err
	}
	ownerB, _, err := r.owners.Get(d.Tx, b)
	if err != nil {
		return err
	}
	ownsA, ownsB := ownerA == d.Caller, ownerB == d.Caller
	switch r.cfg.BreedPolicy {
	case BreedOwnerOfBoth:
		if !ownsA || !ownsB {
			return domain.ErrNotParentOwner
		}
	default:
		if !ownsA && !ownsB {
			return domain.ErrNotParentOwner
		}
	}
	return nil
}

// nextID returns the id the next creature will receive, failing when the
// counter has reached the configured maximum.
func (r *Registry) nextID(tx domain.KVReader) (domain.CreatureID, error) {
	id, _, err := r.count.Get(tx)
	if err != nil {
		return 0, err
	}
	if id >= r.cfg.MaxID {
		return 0, domain.ErrCreatureIDOverflow
	}
	return id, nil
}

func (r *Registry) insert(tx domain.Transaction, id domain.CreatureID, owner domain.AccountID, genome domain.Genome, parents *domain.Parentage) error {
	if err := r.genomes.Put(tx, id, genome); err != nil {
		return err
	}
	if err := r.count.Put(tx, id+1); err != nil {
		return err
	}
	if err := r.owners.Put(tx, id, owner); err != nil {
		return err
	}
	if err := r.appendHolding(tx, owner, id); err != nil {
		return err
	}
	if parents != nil {
		if err := r.parents.Put(tx, id, *parents); err != nil {
			return err
		}
	}
	tx.RecordChange(domain.Change{
		Entity: domain.EntityCreature,
		Action: domain.ActionCreate,
		After:  domain.Creature{ID: id, Genome: genome, Owner: owner, Parents: parents},
	})
	return nil
}

// link maintains the relationship indexes for a freshly bred creature.
func (r *Registry) link(tx domain.Transaction, child domain.CreatureID, p domain.Parentage) error {
	siblings, err := r.familyOf(tx, p)
	if err != nil {
		return err
	}

	litter, _, err := r.children.Get(tx, p.A, p.B)
	if err != nil {
		return err
	}
	if err := r.children.Put(tx, p.A, p.B, append(litter, child)); err != nil {
		return err
	}
	if err := r.addToSet(tx, r.partners, p.A, p.B); err != nil {
		return err
	}
	if err := r.addToSet(tx, r.partners, p.B, p.A); err != nil {
		return err
	}

	for _, sibling := range siblings {
		if err := r.addToSet(tx, r.siblings, child, sibling); err != nil {
			return err
		}
		if err := r.addToSet(tx, r.siblings, sibling, child); err != nil {
			return err
		}
	}
	return nil
}

// familyOf collects, in ascending order and without duplicates, every
// existing child of either parent across all of their partners.
func (r *Registry) familyOf(tx domain.KVReader, p domain.Parentage) ([]domain.CreatureID, error) {
	seen := make(map[domain.CreatureID]struct{})
	for _, parent := range []domain.CreatureID{p.A, p.B} {
		mates, _, err := r.partners.Get(tx, parent)
		if err != nil {
			return nil, err
		}
		for _, mate := range mates {
			for _, pair := range [][2]domain.CreatureID{{parent, mate}, {mate, parent}} {
				litter, _, err := r.children.Get(tx, pair[0], pair[1])
				if err != nil {
					return nil, err
				}
				for _, c := range litter {
					seen[c] = struct{}{}
				}
			}
		}
	}
	return sortedIDs(seen), nil
}

func (r *Registry) addToSet(tx domain.Transaction, m storage.Map[domain.CreatureID, []domain.CreatureID], key, member domain.CreatureID) error {
	set, _, err := m.Get(tx, key)
	if err != nil {
		return err
	}
	if containsID(set, member) {
		return nil
	}
	return m.Put(tx, key, append(set, member))
}

func (r *Registry) appendHolding(tx domain.Transaction, owner domain.AccountID, id domain.CreatureID) error {
	held, _, err := r.holdings.Get(tx, owner)
	if err != nil {
		return err
	}
	return r.holdings.Put(tx, owner, append(held, id))
}

// removeHolding drops exactly id from the owner's holdings, keeping the order
// of the remaining ids.
func (r *Registry) removeHolding(tx domain.Transaction, owner domain.AccountID, id domain.CreatureID) error {
	held, _, err := r.holdings.Get(tx, owner)
	if err != nil {
		return err
	}
	kept := held[:0]
	for _, h := range held {
		if h != id {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return r.holdings.Delete(tx, owner)
	}
	return r.holdings.Put(tx, owner, kept)
}

func (r *Registry) creature(tx domain.KVReader, id domain.CreatureID) (domain.Creature, error) {
	c, _, err := r.Creature(tx, id)
	return c, err
}

func containsID(ids []domain.CreatureID, id domain.CreatureID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
