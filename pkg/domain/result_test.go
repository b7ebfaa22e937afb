package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() == "" {
		t.Fatalf("expected error string")
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn", SeverityWarn})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if names := engine.Rules(); len(names) != 1 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

func TestRulesEngineCheck(t *testing.T) {
	changes := []Change{{Entity: EntityCreature, Action: ActionCreate}}

	var nilEngine *RulesEngine
	if _, err := nilEngine.Check(context.Background(), emptyView{}, changes); err != nil {
		t.Fatalf("nil engine should pass: %v", err)
	}

	engine := NewRulesEngine()
	engine.Register(staticRule{"block", SeverityBlock})
	if _, err := engine.Check(context.Background(), emptyView{}, nil); err != nil {
		t.Fatalf("empty change set should skip evaluation: %v", err)
	}
	res, err := engine.Check(context.Background(), emptyView{}, changes)
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if len(res.Violations) != 1 || len(violation.Result.Violations) != 1 {
		t.Fatalf("expected violations to be reported, got %+v", res)
	}

	warn := NewRulesEngine()
	warn.Register(staticRule{"warn", SeverityWarn})
	res, err = warn.Check(context.Background(), emptyView{}, changes)
	if err != nil || len(res.Violations) != 1 {
		t.Fatalf("expected warning without error, got %+v %v", res, err)
	}

	failing := NewRulesEngine()
	failing.Register(errorRule{})
	if _, err := failing.Check(context.Background(), emptyView{}, changes); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

func TestRulesEngineReplace(t *testing.T) {
	changes := []Change{{Entity: EntityClaim, Action: ActionCreate}}
	engine := NewRulesEngine()
	engine.Register(staticRule{"gate", SeverityBlock})
	if engine.Replace(staticRule{"other", SeverityWarn}) {
		t.Fatalf("replace of an unregistered rule should report false")
	}
	if !engine.Replace(staticRule{"gate", SeverityWarn}) {
		t.Fatalf("expected gate to be replaced")
	}
	if _, err := engine.Check(context.Background(), emptyView{}, changes); err != nil {
		t.Fatalf("replaced rule should only warn: %v", err)
	}
	if got := engine.Rules(); len(got) != 1 || got[0] != "gate" {
		t.Fatalf("unexpected rules %v", got)
	}
	var nilEngine *RulesEngine
	if nilEngine.Replace(staticRule{"gate", SeverityBlock}) {
		t.Fatalf("nil engine has nothing to replace")
	}
}

type staticRule struct {
	name     string
	severity Severity
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, KVReader, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: r.severity}}}, nil
}

type emptyView struct{}

func (emptyView) Get(Table, []byte) ([]byte, bool, error) { return nil, false, nil }
func (emptyView) Iterate(Table, []byte, func(key, value []byte) error) error {
	return nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, KVReader, []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}
