package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"ledgercore/pkg/domain"
)

const testTable domain.Table = "test.values"

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok, _ := tx.Get(testTable, []byte("missing")); ok {
			t.Fatalf("expected missing lookup")
		}
		if err := tx.Put(testTable, []byte("b"), []byte("2")); err != nil {
			return err
		}
		if err := tx.Put(testTable, []byte("a"), []byte("1")); err != nil {
			return err
		}
		value, ok, err := tx.Get(testTable, []byte("a"))
		if err != nil || !ok || string(value) != "1" {
			t.Fatalf("expected staged write to be readable, got %q %v %v", value, ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}

	snapshot := store.ExportState()
	want := []domain.SnapshotEntry{
		{Table: testTable, Key: []byte("a"), Value: []byte("1")},
		{Table: testTable, Key: []byte("b"), Value: []byte("2")},
	}
	if !reflect.DeepEqual(snapshot.Entries, want) {
		t.Fatalf("unexpected snapshot %+v", snapshot.Entries)
	}

	store.ImportState(domain.Snapshot{})
	if len(store.ExportState().Entries) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if !reflect.DeepEqual(store.ExportState(), snapshot) {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStoreCallbackErrorDiscardsWrites(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seed(t, store, "a", "1")
	before := store.ExportState()

	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_ = tx.Put(testTable, []byte("a"), []byte("changed"))
		_ = tx.Put(testTable, []byte("z"), []byte("new"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if !reflect.DeepEqual(store.ExportState(), before) {
		t.Fatalf("state changed after failed transaction")
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	before := store.ExportState()
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.RecordChange(domain.Change{Entity: domain.EntityClaim, Action: domain.ActionCreate})
		return tx.Put(testTable, []byte("a"), []byte("1"))
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if !reflect.DeepEqual(store.ExportState(), before) {
		t.Fatalf("state changed after blocked transaction")
	}
}

func TestRulesSeeStagedWrites(t *testing.T) {
	store := NewStore(nil)
	rule := &observingRule{}
	store.RulesEngine().Register(rule)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.RecordChange(domain.Change{Entity: domain.EntityClaim, Action: domain.ActionCreate})
		if len(tx.Changes()) != 1 {
			t.Fatalf("expected recorded change")
		}
		return tx.Put(testTable, []byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(rule.seen) != "v" {
		t.Fatalf("rule did not observe staged write, saw %q", rule.seen)
	}
}

func TestIterateMergesStagedAndCommitted(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seed(t, store, "p1", "old")
	seed(t, store, "p2", "keep")
	seed(t, store, "q1", "other")

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_ = tx.Delete(testTable, []byte("p1"))
		_ = tx.Put(testTable, []byte("p0"), []byte("new"))
		var keys []string
		err := tx.Iterate(testTable, []byte("p"), func(key, value []byte) error {
			keys = append(keys, string(key)+"="+string(value))
			return nil
		})
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(keys, []string{"p0=new", "p2=keep"}) {
			t.Fatalf("unexpected staged iteration %v", keys)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var committed []string
	err = store.View(ctx, func(r domain.KVReader) error {
		return r.Iterate(testTable, nil, func(key, _ []byte) error {
			committed = append(committed, string(key))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !reflect.DeepEqual(committed, []string{"p0", "p2", "q1"}) {
		t.Fatalf("unexpected committed keys %v", committed)
	}
}

func TestDeletingLastKeyDropsTable(t *testing.T) {
	store := NewStore(nil)
	seed(t, store, "only", "1")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Delete(testTable, []byte("only"))
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.ExportState().Entries) != 0 {
		t.Fatalf("expected empty export")
	}
}

func TestIterateStopsOnCallbackError(t *testing.T) {
	store := NewStore(nil)
	seed(t, store, "a", "1")
	seed(t, store, "b", "2")
	calls := 0
	err := store.View(context.Background(), func(r domain.KVReader) error {
		return r.Iterate(testTable, nil, func(_, _ []byte) error {
			calls++
			return domain.ErrStopIteration
		})
	})
	if !errors.Is(err, domain.ErrStopIteration) || calls != 1 {
		t.Fatalf("expected iteration to stop after first key, calls=%d err=%v", calls, err)
	}
}

func seed(t *testing.T, store *Store, key, value string) {
	t.Helper()
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Put(testTable, []byte(key), []byte(value))
	}); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.KVReader, []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	res.Merge(domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}})
	return res, nil
}

type observingRule struct{ seen []byte }

func (*observingRule) Name() string { return "observe" }

func (r *observingRule) Evaluate(_ context.Context, view domain.KVReader, _ []domain.Change) (domain.Result, error) {
	value, _, err := view.Get(testTable, []byte("k"))
	r.seen = value
	return domain.Result{}, err
}
