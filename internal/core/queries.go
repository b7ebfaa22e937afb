package core

import (
	"context"

	"ledgercore/pkg/domain"
)

// Height returns the height of the last applied block, or 0 before the first.
func (s *Service) Height(ctx context.Context) (uint64, error) {
	var height uint64
	err := s.store.View(ctx, func(view domain.KVReader) error {
		h, _, err := s.height.Get(view)
		height = h
		return err
	})
	return height, err
}

// Creature returns the committed creature id.
func (s *Service) Creature(ctx context.Context, id domain.CreatureID) (domain.Creature, bool, error) {
	var (
		out domain.Creature
		ok  bool
	)
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		out, ok, err = s.creatures.Creature(view, id)
		return err
	})
	return out, ok, err
}

// CreatureCount returns the number of creatures ever allocated.
func (s *Service) CreatureCount(ctx context.Context) (domain.CreatureID, error) {
	var count domain.CreatureID
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		count, err = s.creatures.Count(view)
		return err
	})
	return count, err
}

// Owner returns the owner of creature id.
func (s *Service) Owner(ctx context.Context, id domain.CreatureID) (domain.AccountID, bool, error) {
	var (
		owner domain.AccountID
		ok    bool
	)
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		owner, ok, err = s.creatures.Owner(view, id)
		return err
	})
	return owner, ok, err
}

// Holdings lists the creatures held by account in acquisition order.
func (s *Service) Holdings(ctx context.Context, account domain.AccountID) ([]domain.CreatureID, error) {
	return s.listIDs(ctx, func(view domain.KVReader) ([]domain.CreatureID, error) {
		return s.creatures.Holdings(view, account)
	})
}

// Parents returns the parentage of a bred creature.
func (s *Service) Parents(ctx context.Context, id domain.CreatureID) (domain.Parentage, bool, error) {
	var (
		p  domain.Parentage
		ok bool
	)
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		p, ok, err = s.creatures.Parents(view, id)
		return err
	})
	return p, ok, err
}

// Children lists the creatures bred from a with b, in that argument order.
func (s *Service) Children(ctx context.Context, a, b domain.CreatureID) ([]domain.CreatureID, error) {
	return s.listIDs(ctx, func(view domain.KVReader) ([]domain.CreatureID, error) {
		return s.creatures.Children(view, a, b)
	})
}

// Siblings lists the recorded siblings of id.
func (s *Service) Siblings(ctx context.Context, id domain.CreatureID) ([]domain.CreatureID, error) {
	return s.listIDs(ctx, func(view domain.KVReader) ([]domain.CreatureID, error) {
		return s.creatures.Siblings(view, id)
	})
}

// Partners lists the creatures id has been bred with.
func (s *Service) Partners(ctx context.Context, id domain.CreatureID) ([]domain.CreatureID, error) {
	return s.listIDs(ctx, func(view domain.KVReader) ([]domain.CreatureID, error) {
		return s.creatures.Partners(view, id)
	})
}

// Offspring lists every child of id across all partners.
func (s *Service) Offspring(ctx context.Context, id domain.CreatureID) ([]domain.CreatureID, error) {
	return s.listIDs(ctx, func(view domain.KVReader) ([]domain.CreatureID, error) {
		return s.creatures.Offspring(view, id)
	})
}

// Claim returns the record for claim.
func (s *Service) Claim(ctx context.Context, claim []byte) (domain.ClaimRecord, bool, error) {
	var (
		rec domain.ClaimRecord
		ok  bool
	)
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		rec, ok, err = s.claims.Claim(view, claim)
		return err
	})
	return rec, ok, err
}

// Balance returns the account state of who.
func (s *Service) Balance(ctx context.Context, who domain.AccountID) (domain.Account, error) {
	var acct domain.Account
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		acct, err = s.balances.Account(view, who)
		return err
	})
	return acct, err
}

// Events returns the events committed at height in dispatch order.
func (s *Service) Events(ctx context.Context, height uint64) ([]EventRecord, error) {
	var out []EventRecord
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		out, err = s.events.at(view, height)
		return err
	})
	return out, err
}

func (s *Service) listIDs(ctx context.Context, fn func(domain.KVReader) ([]domain.CreatureID, error)) ([]domain.CreatureID, error) {
	var out []domain.CreatureID
	err := s.store.View(ctx, func(view domain.KVReader) error {
		var err error
		out, err = fn(view)
		return err
	})
	return out, err
}
