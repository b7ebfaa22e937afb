package core

import (
	"ledgercore/internal/claims"
	"ledgercore/internal/creatures"
	"ledgercore/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	return NewRulesEngineForClaims(claims.DefaultConfig())
}

// NewRulesEngineForClaims builds the built-in policy set with claim bounds
// taken from cfg. NewService rebinds the claim rule to the service's own claim
// config, so engines shared with a service need not match it up front.
func NewRulesEngineForClaims(cfg claims.Config) *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(HoldingsConsistencyRule())
	engine.Register(LineageIntegrityRule())
	engine.Register(ClaimIntegrityRule(cfg))
	return engine
}

// readRegistry returns a creature registry usable for reads inside rules. It
// has no currency and never mints.
func readRegistry() *creatures.Registry {
	return creatures.NewRegistry(creatures.Config{}, nil)
}
