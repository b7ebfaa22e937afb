package creatures

import (
	"sort"

	"ledgercore/pkg/domain"
)

// Creature assembles the read model of id.
func (r *Registry) Creature(view domain.KVReader, id domain.CreatureID) (domain.Creature, bool, error) {
	genome, ok, err := r.genomes.Get(view, id)
	if err != nil || !ok {
		return domain.Creature{}, false, err
	}
	owner, _, err := r.owners.Get(view, id)
	if err != nil {
		return domain.Creature{}, false, err
	}
	c := domain.Creature{ID: id, Genome: genome, Owner: owner}
	parents, ok, err := r.parents.Get(view, id)
	if err != nil {
		return domain.Creature{}, false, err
	}
	if ok {
		c.Parents = &parents
	}
	return c, true, nil
}

// Genome returns the genome of id.
func (r *Registry) Genome(view domain.KVReader, id domain.CreatureID) (domain.Genome, bool, error) {
	return r.genomes.Get(view, id)
}

// Owner returns the owner of id.
func (r *Registry) Owner(view domain.KVReader, id domain.CreatureID) (domain.AccountID, bool, error) {
	return r.owners.Get(view, id)
}

// Count returns the next unallocated creature id, which equals the number of
// creatures ever created.
func (r *Registry) Count(view domain.KVReader) (domain.CreatureID, error) {
	n, _, err := r.count.Get(view)
	return n, err
}

// Holdings returns the creatures owned by account in acquisition order.
func (r *Registry) Holdings(view domain.KVReader, account domain.AccountID) ([]domain.CreatureID, error) {
	held, _, err := r.holdings.Get(view, account)
	return held, err
}

// Parents returns the parentage of a bred creature.
func (r *Registry) Parents(view domain.KVReader, id domain.CreatureID) (domain.Parentage, bool, error) {
	return r.parents.Get(view, id)
}

// Children returns the creatures bred from the ordered pair (a, b).
func (r *Registry) Children(view domain.KVReader, a, b domain.CreatureID) ([]domain.CreatureID, error) {
	litter, _, err := r.children.Get(view, a, b)
	return litter, err
}

// Siblings returns the creatures sharing at least one parent with id.
func (r *Registry) Siblings(view domain.KVReader, id domain.CreatureID) ([]domain.CreatureID, error) {
	s, _, err := r.siblings.Get(view, id)
	return s, err
}

// Partners returns the creatures id has bred with.
func (r *Registry) Partners(view domain.KVReader, id domain.CreatureID) ([]domain.CreatureID, error) {
	p, _, err := r.partners.Get(view, id)
	return p, err
}

// Offspring returns every child of id across all partners and pair orders,
// ascending.
func (r *Registry) Offspring(view domain.KVReader, id domain.CreatureID) ([]domain.CreatureID, error) {
	return r.familyOf(view, domain.Parentage{A: id, B: id})
}

// Each visits every creature in id order until fn returns false.
func (r *Registry) Each(view domain.KVReader, fn func(domain.Creature) bool) error {
	var visitErr error
	err := r.genomes.Iterate(view, func(id domain.CreatureID, _ domain.Genome) bool {
		c, _, err := r.Creature(view, id)
		if err != nil {
			visitErr = err
			return false
		}
		return fn(c)
	})
	if err != nil {
		return err
	}
	return visitErr
}

func sortedIDs(set map[domain.CreatureID]struct{}) []domain.CreatureID {
	out := make([]domain.CreatureID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
