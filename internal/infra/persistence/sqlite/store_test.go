package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"ledgercore/internal/infra/persistence/storetest"
	"ledgercore/pkg/domain"
)

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, engine *domain.RulesEngine) domain.LedgerStore {
		store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"), engine)
		if err != nil {
			t.Skipf("sqlite unavailable: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Put("claims.proofs", []byte{0xab, 0xcd}, []byte{0xa0})
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	err = reloaded.View(context.Background(), func(r domain.KVReader) error {
		value, ok, err := r.Get("claims.proofs", []byte{0xab, 0xcd})
		if err != nil {
			return err
		}
		if !ok || len(value) != 1 || value[0] != 0xa0 {
			t.Fatalf("expected persisted value, got %x %v", value, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSQLiteStoreInMemory(t *testing.T) {
	store, err := NewStore(":memory:", nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var name string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "kv").Scan(&name); err != nil {
		t.Fatalf("lookup kv table: %v", err)
	}
}
