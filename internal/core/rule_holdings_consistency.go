package core

import (
	"context"
	"fmt"
	"strconv"

	"ledgercore/internal/creatures"
	"ledgercore/pkg/domain"
)

// HoldingsConsistencyRule checks that every touched creature appears exactly
// once in the holdings of its owner and nowhere in the holdings of its
// previous owner.
func HoldingsConsistencyRule() domain.Rule {
	return holdingsConsistencyRule{registry: readRegistry()}
}

type holdingsConsistencyRule struct {
	registry *creatures.Registry
}

func (holdingsConsistencyRule) Name() string { return "holdings_consistency" }

func (r holdingsConsistencyRule) Evaluate(_ context.Context, view domain.KVReader, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityCreature {
			continue
		}
		after, ok := change.After.(domain.Creature)
		if !ok {
			continue
		}
		id := strconv.FormatUint(uint64(after.ID), 10)

		owner, found, err := r.registry.Owner(view, after.ID)
		if err != nil {
			return domain.Result{}, err
		}
		if !found || owner != after.Owner {
			res.Violations = append(res.Violations, holdingsViolation(id, fmt.Sprintf("creature %s owner is %q, want %q", id, owner, after.Owner)))
			continue
		}
		held, err := r.registry.Holdings(view, owner)
		if err != nil {
			return domain.Result{}, err
		}
		if n := countID(held, after.ID); n != 1 {
			res.Violations = append(res.Violations, holdingsViolation(id, fmt.Sprintf("creature %s listed %d times in holdings of %s", id, n, owner)))
		}

		before, ok := change.Before.(domain.Creature)
		if !ok || before.Owner == after.Owner {
			continue
		}
		prev, err := r.registry.Holdings(view, before.Owner)
		if err != nil {
			return domain.Result{}, err
		}
		if countID(prev, after.ID) != 0 {
			res.Violations = append(res.Violations, holdingsViolation(id, fmt.Sprintf("creature %s still held by previous owner %s", id, before.Owner)))
		}
	}
	return res, nil
}

func holdingsViolation(entityID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "holdings_consistency",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityCreature,
		EntityID: entityID,
	}
}

func countID(ids []domain.CreatureID, id domain.CreatureID) int {
	n := 0
	for _, existing := range ids {
		if existing == id {
			n++
		}
	}
	return n
}
