package creatures

import (
	"context"
	"testing"

	"ledgercore/internal/balances"
	"ledgercore/internal/infra/persistence/memory"
	"ledgercore/pkg/domain"
)

type harness struct {
	t      *testing.T
	store  *memory.Store
	ledger *balances.Ledger
	reg    *Registry
	block  domain.BlockContext
	index  uint32
}

func newHarness(t *testing.T, cfg Config, funded ...domain.AccountID) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		store:  memory.NewStore(nil),
		ledger: balances.NewLedger(),
		block:  domain.BlockContext{Height: 1, Seed: domain.Seed{1, 2, 3, 4}},
	}
	h.reg = NewRegistry(cfg, h.ledger)
	if _, err := h.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, who := range funded {
			if err := h.ledger.Endow(tx, who, 1_000_000); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("endow: %v", err)
	}
	return h
}

// run executes fn as the next extrinsic of the current block.
func (h *harness) run(caller domain.AccountID, fn func(d *domain.Dispatch) error) ([]domain.Event, error) {
	var events []domain.Event
	index := h.index
	h.index++
	_, err := h.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		d := domain.NewDispatch(tx, h.block, index, caller)
		if err := fn(d); err != nil {
			return err
		}
		events = d.Events()
		return nil
	})
	return events, err
}

func (h *harness) create(caller domain.AccountID) domain.CreatureID {
	h.t.Helper()
	var id domain.CreatureID
	if _, err := h.run(caller, func(d *domain.Dispatch) error {
		var err error
		id, err = h.reg.Create(d)
		return err
	}); err != nil {
		h.t.Fatalf("create for %s: %v", caller, err)
	}
	return id
}

func (h *harness) breed(caller domain.AccountID, a, b domain.CreatureID) domain.CreatureID {
	h.t.Helper()
	var id domain.CreatureID
	if _, err := h.run(caller, func(d *domain.Dispatch) error {
		var err error
		id, err = h.reg.Breed(d, a, b)
		return err
	}); err != nil {
		h.t.Fatalf("breed %d x %d: %v", a, b, err)
	}
	return id
}

func (h *harness) view(fn func(r domain.KVReader)) {
	h.t.Helper()
	if err := h.store.View(context.Background(), func(r domain.KVReader) error {
		fn(r)
		return nil
	}); err != nil {
		h.t.Fatalf("view: %v", err)
	}
}

func (h *harness) ids(get func(r domain.KVReader) ([]domain.CreatureID, error)) []domain.CreatureID {
	h.t.Helper()
	var out []domain.CreatureID
	h.view(func(r domain.KVReader) {
		var err error
		out, err = get(r)
		if err != nil {
			h.t.Fatalf("query: %v", err)
		}
	})
	return out
}
