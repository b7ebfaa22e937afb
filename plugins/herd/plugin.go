// Package herd is a reference plugin that warns when an account accumulates
// more creatures than a configured herd size.
package herd

import (
	"context"
	"fmt"

	"ledgercore/internal/core"
	"ledgercore/internal/creatures"
)

// DefaultLimit is the herd size above which the plugin warns.
const DefaultLimit = 32

// Plugin contributes the herd size rule.
type Plugin struct {
	limit int
}

// New constructs a herd plugin warning above limit creatures. A non-positive
// limit selects DefaultLimit.
func New(limit int) Plugin {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Plugin{limit: limit}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "herd" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Register wires the herd size rule.
func (p Plugin) Register(registry *core.PluginRegistry) error {
	registry.RegisterRule(herdSizeRule{limit: p.limit, creatures: creatures.NewRegistry(creatures.Config{}, nil)})
	return nil
}

type herdSizeRule struct {
	limit     int
	creatures *creatures.Registry
}

func (herdSizeRule) Name() string { return "herd_size_warning" }

func (r herdSizeRule) Evaluate(_ context.Context, view core.KVReader, changes []core.Change) (core.Result, error) {
	var result core.Result
	seen := make(map[core.AccountID]struct{})
	for _, change := range changes {
		if change.Entity != core.EntityCreature {
			continue
		}
		after, ok := change.After.(core.Creature)
		if !ok {
			continue
		}
		if _, dup := seen[after.Owner]; dup {
			continue
		}
		seen[after.Owner] = struct{}{}

		held, err := r.creatures.Holdings(view, after.Owner)
		if err != nil {
			return core.Result{}, err
		}
		if len(held) <= r.limit {
			continue
		}
		result.Violations = append(result.Violations, core.Violation{
			Rule:     "herd_size_warning",
			Severity: core.SeverityWarn,
			Message:  fmt.Sprintf("account %s holds %d creatures, above herd size %d", after.Owner, len(held), r.limit),
			Entity:   core.EntityCreature,
			EntityID: fmt.Sprint(after.ID),
		})
	}
	return result, nil
}
