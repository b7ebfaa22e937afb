package core

import (
	"context"
	"fmt"

	"ledgercore/internal/claims"
	"ledgercore/pkg/domain"
)

// ClaimIntegrityRule checks that touched claims respect the length bounds of
// cfg, have a non-empty owner, and match the staged record.
func ClaimIntegrityRule(cfg claims.Config) domain.Rule {
	reg := claims.NewRegistry(cfg)
	return claimIntegrityRule{registry: reg, cfg: reg.Config()}
}

type claimIntegrityRule struct {
	registry *claims.Registry
	cfg      claims.Config
}

func (claimIntegrityRule) Name() string { return "claim_integrity" }

func (r claimIntegrityRule) Evaluate(_ context.Context, view domain.KVReader, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityClaim {
			continue
		}
		if change.Action == domain.ActionDelete {
			before, ok := change.Before.(domain.Claim)
			if !ok {
				continue
			}
			if _, found, err := r.registry.Claim(view, before.Key); err != nil {
				return domain.Result{}, err
			} else if found {
				res.Violations = append(res.Violations, claimViolation(before.Key, "revoked claim %x still present"))
			}
			continue
		}

		after, ok := change.After.(domain.Claim)
		if !ok {
			continue
		}
		if n := len(after.Key); n < r.cfg.MinLength || n > r.cfg.MaxLength {
			res.Violations = append(res.Violations, claimViolation(after.Key, "claim %x length outside bounds"))
		}
		if after.Record.Owner == "" {
			res.Violations = append(res.Violations, claimViolation(after.Key, "claim %x has no owner"))
		}
		stored, found, err := r.registry.Claim(view, after.Key)
		if err != nil {
			return domain.Result{}, err
		}
		if !found || stored != after.Record {
			res.Violations = append(res.Violations, claimViolation(after.Key, "claim %x record diverges from staged state"))
		}
	}
	return res, nil
}

func claimViolation(key []byte, format string) domain.Violation {
	return domain.Violation{
		Rule:     "claim_integrity",
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf(format, key),
		Entity:   domain.EntityClaim,
		EntityID: fmt.Sprintf("%x", key),
	}
}
