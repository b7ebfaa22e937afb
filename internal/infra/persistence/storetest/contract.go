// Package storetest holds the behavioural contract every ledger store backend
// must satisfy. Backend test suites call Run with a constructor.
package storetest

import (
	"context"
	"errors"
	"testing"

	"ledgercore/pkg/domain"
)

// Factory opens a fresh, empty store using engine.
type Factory func(t *testing.T, engine *domain.RulesEngine) domain.LedgerStore

const (
	tableA domain.Table = "contract.a"
	tableB domain.Table = "contract.b"
)

// Run executes the contract suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	t.Run("commit_visible_to_view", func(t *testing.T) { testCommit(t, open) })
	t.Run("callback_error_rolls_back", func(t *testing.T) { testRollback(t, open) })
	t.Run("blocking_rule_rolls_back", func(t *testing.T) { testRuleBlock(t, open) })
	t.Run("warning_rule_commits", func(t *testing.T) { testRuleWarn(t, open) })
	t.Run("iterate_prefix_ordered", func(t *testing.T) { testIterate(t, open) })
	t.Run("staged_reads", func(t *testing.T) { testStagedReads(t, open) })
	t.Run("tables_isolated", func(t *testing.T) { testIsolation(t, open) })
}

func put(t *testing.T, store domain.LedgerStore, table domain.Table, kv ...string) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for i := 0; i+1 < len(kv); i += 2 {
			if err := tx.Put(table, []byte(kv[i]), []byte(kv[i+1])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
}

func get(t *testing.T, store domain.LedgerStore, table domain.Table, key string) (string, bool) {
	t.Helper()
	var (
		value []byte
		ok    bool
	)
	err := store.View(context.Background(), func(r domain.KVReader) error {
		var err error
		value, ok, err = r.Get(table, []byte(key))
		return err
	})
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return string(value), ok
}

func testCommit(t *testing.T, open Factory) {
	store := open(t, nil)
	put(t, store, tableA, "k", "v1")
	if v, ok := get(t, store, tableA, "k"); !ok || v != "v1" {
		t.Fatalf("expected committed value, got %q %v", v, ok)
	}
	put(t, store, tableA, "k", "v2")
	if v, _ := get(t, store, tableA, "k"); v != "v2" {
		t.Fatalf("expected overwrite, got %q", v)
	}
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Delete(tableA, []byte("k"))
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := get(t, store, tableA, "k"); ok {
		t.Fatalf("expected key deleted")
	}
}

func testRollback(t *testing.T, open Factory) {
	store := open(t, nil)
	put(t, store, tableA, "keep", "1")
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.Put(tableA, []byte("new"), []byte("x")); err != nil {
			return err
		}
		if err := tx.Delete(tableA, []byte("keep")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, ok := get(t, store, tableA, "new"); ok {
		t.Fatalf("expected staged put discarded")
	}
	if v, ok := get(t, store, tableA, "keep"); !ok || v != "1" {
		t.Fatalf("expected staged delete discarded")
	}
}

type staticRule struct {
	name     string
	severity domain.Severity
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(_ context.Context, _ domain.KVReader, changes []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: r.name, Severity: r.severity, Message: "static"}}}, nil
}

func writeWithChange(store domain.LedgerStore, key string) (domain.Result, error) {
	return store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.RecordChange(domain.Change{Entity: domain.EntityClaim, Action: domain.ActionCreate})
		return tx.Put(tableA, []byte(key), []byte("v"))
	})
}

func testRuleBlock(t *testing.T, open Factory) {
	engine := domain.NewRulesEngine()
	engine.Register(staticRule{name: "block", severity: domain.SeverityBlock})
	store := open(t, engine)

	res, err := writeWithChange(store, "blocked")
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(res.Violations) != 1 || len(violation.Result.Violations) != 1 {
		t.Fatalf("expected violation reported, got %+v", res)
	}
	if _, ok := get(t, store, tableA, "blocked"); ok {
		t.Fatalf("expected blocked write discarded")
	}
}

func testRuleWarn(t *testing.T, open Factory) {
	engine := domain.NewRulesEngine()
	engine.Register(staticRule{name: "warn", severity: domain.SeverityWarn})
	store := open(t, engine)

	res, err := writeWithChange(store, "warned")
	if err != nil {
		t.Fatalf("expected warning to commit, got %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != domain.SeverityWarn {
		t.Fatalf("expected warning in result, got %+v", res)
	}
	if _, ok := get(t, store, tableA, "warned"); !ok {
		t.Fatalf("expected warned write committed")
	}
}

func collect(t *testing.T, r domain.KVReader, table domain.Table, prefix string) []string {
	t.Helper()
	var out []string
	var p []byte
	if prefix != "" {
		p = []byte(prefix)
	}
	err := r.Iterate(table, p, func(key, value []byte) error {
		out = append(out, string(key)+"="+string(value))
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testIterate(t *testing.T, open Factory) {
	store := open(t, nil)
	put(t, store, tableA, "b2", "4", "a1", "1", "b1", "3", "a2", "2", "c", "5")
	err := store.View(context.Background(), func(r domain.KVReader) error {
		if got, want := collect(t, r, tableA, ""), []string{"a1=1", "a2=2", "b1=3", "b2=4", "c=5"}; !equal(got, want) {
			t.Fatalf("full scan: got %v want %v", got, want)
		}
		if got, want := collect(t, r, tableA, "b"), []string{"b1=3", "b2=4"}; !equal(got, want) {
			t.Fatalf("prefix scan: got %v want %v", got, want)
		}
		if got := collect(t, r, tableA, "z"); len(got) != 0 {
			t.Fatalf("expected empty scan, got %v", got)
		}

		var seen int
		err := r.Iterate(tableA, nil, func(key, _ []byte) error {
			seen++
			if string(key) == "a2" {
				return domain.ErrStopIteration
			}
			return nil
		})
		if !errors.Is(err, domain.ErrStopIteration) && err != nil {
			t.Fatalf("unexpected stop error: %v", err)
		}
		if seen != 2 {
			t.Fatalf("expected iteration to stop after 2 entries, saw %d", seen)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testStagedReads(t *testing.T, open Factory) {
	store := open(t, nil)
	put(t, store, tableA, "a", "1", "b", "2")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.Put(tableA, []byte("c"), []byte("3")); err != nil {
			return err
		}
		if err := tx.Delete(tableA, []byte("a")); err != nil {
			return err
		}
		if err := tx.Put(tableA, []byte("b"), []byte("20")); err != nil {
			return err
		}
		if got, want := collect(t, tx, tableA, ""), []string{"b=20", "c=3"}; !equal(got, want) {
			t.Fatalf("staged scan: got %v want %v", got, want)
		}
		if _, ok, err := tx.Get(tableA, []byte("a")); err != nil || ok {
			t.Fatalf("expected staged delete visible, ok=%v err=%v", ok, err)
		}
		tx.RecordChange(domain.Change{Entity: domain.EntityClaim})
		if len(tx.Changes()) != 1 {
			t.Fatalf("expected recorded change")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func testIsolation(t *testing.T, open Factory) {
	store := open(t, nil)
	put(t, store, tableA, "k", "a")
	put(t, store, tableB, "k", "b")
	if v, _ := get(t, store, tableA, "k"); v != "a" {
		t.Fatalf("table a: got %q", v)
	}
	if v, _ := get(t, store, tableB, "k"); v != "b" {
		t.Fatalf("table b: got %q", v)
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
}
