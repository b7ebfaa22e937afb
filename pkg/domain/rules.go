package domain

import "context"

// Rule defines an evaluation executed within a transaction boundary. The view
// exposes the staged state of the transaction, including its uncommitted writes.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view KVReader, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Replace swaps the registered rule sharing rule's name. It reports false and
// leaves the engine unchanged when no such rule is registered.
func (e *RulesEngine) Replace(rule Rule) bool {
	if e == nil {
		return false
	}
	for i, existing := range e.rules {
		if existing.Name() == rule.Name() {
			e.rules[i] = rule
			return true
		}
	}
	return false
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, rule := range e.rules {
		names = append(names, rule.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view KVReader, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

// Check evaluates the engine against a staged transaction. A nil engine or an
// empty change set passes. Blocking violations are returned as a
// RuleViolationError alongside the aggregated result.
func (e *RulesEngine) Check(ctx context.Context, view KVReader, changes []Change) (Result, error) {
	if e == nil || len(changes) == 0 {
		return Result{}, nil
	}
	res, err := e.Evaluate(ctx, view, changes)
	if err != nil {
		return Result{}, err
	}
	if res.HasBlocking() {
		return res, RuleViolationError{Result: res}
	}
	return res, nil
}
