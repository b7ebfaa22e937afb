package core

import (
	"context"
	"fmt"
	"strconv"

	"ledgercore/internal/creatures"
	"ledgercore/pkg/domain"
)

// LineageIntegrityRule enforces parentage constraints on newly bred creatures.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{registry: readRegistry()}
}

type lineageIntegrityRule struct {
	registry *creatures.Registry
}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (r lineageIntegrityRule) Evaluate(_ context.Context, view domain.KVReader, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityCreature || change.Action != domain.ActionCreate {
			continue
		}
		child, ok := change.After.(domain.Creature)
		if !ok || child.Parents == nil {
			continue
		}
		id := strconv.FormatUint(uint64(child.ID), 10)
		p := *child.Parents

		if p.A == p.B {
			res.Violations = append(res.Violations, lineageViolation(id, fmt.Sprintf("creature %s lists parent %d twice", id, p.A)))
			continue
		}
		for _, parent := range []domain.CreatureID{p.A, p.B} {
			if parent == child.ID {
				res.Violations = append(res.Violations, lineageViolation(id, fmt.Sprintf("creature %s references itself as a parent", id)))
				continue
			}
			if parent > child.ID {
				res.Violations = append(res.Violations, lineageViolation(id, fmt.Sprintf("creature %s parent %d was allocated later", id, parent)))
			}
			if _, found, err := r.registry.Genome(view, parent); err != nil {
				return domain.Result{}, err
			} else if !found {
				res.Violations = append(res.Violations, lineageViolation(id, fmt.Sprintf("creature %s references missing parent %d", id, parent)))
			}
		}

		litter, err := r.registry.Children(view, p.A, p.B)
		if err != nil {
			return domain.Result{}, err
		}
		if countID(litter, child.ID) != 1 {
			res.Violations = append(res.Violations, lineageViolation(id, fmt.Sprintf("creature %s missing from children of %s", id, p)))
		}
		stored, found, err := r.registry.Parents(view, child.ID)
		if err != nil {
			return domain.Result{}, err
		}
		if !found || stored != p {
			res.Violations = append(res.Violations, lineageViolation(id, fmt.Sprintf("creature %s parentage not recorded", id)))
		}
	}
	return res, nil
}

func lineageViolation(entityID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityCreature,
		EntityID: entityID,
	}
}
