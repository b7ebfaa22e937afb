package creatures

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"ledgercore/internal/balances"
	"ledgercore/internal/infra/persistence/memory"
	"ledgercore/pkg/domain"
)

func TestCombineGenomeTakesEachBitFromSelectedParent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var a, b domain.Genome
		var selector [domain.GenomeSize]byte
		copy(a[:], rapid.SliceOfN(rapid.Byte(), domain.GenomeSize, domain.GenomeSize).Draw(t, "a"))
		copy(b[:], rapid.SliceOfN(rapid.Byte(), domain.GenomeSize, domain.GenomeSize).Draw(t, "b"))
		copy(selector[:], rapid.SliceOfN(rapid.Byte(), domain.GenomeSize, domain.GenomeSize).Draw(t, "selector"))

		child := CombineGenome(a, b, selector)
		for i := range child {
			if child[i]&selector[i] != a[i]&selector[i] {
				t.Fatalf("byte %d: selected bits must come from a", i)
			}
			if child[i]&^selector[i] != b[i]&^selector[i] {
				t.Fatalf("byte %d: unselected bits must come from b", i)
			}
		}
		if CombineGenome(a, b, selector) != child {
			t.Fatalf("combination is not deterministic")
		}
	})
}

// TestOwnershipInvariants drives random transition sequences and checks that
// every allocated id has exactly one owner whose holdings list it exactly once.
func TestOwnershipInvariants(t *testing.T) {
	accounts := []domain.AccountID{"alice", "bob", "carol"}

	rapid.Check(t, func(rt *rapid.T) {
		store := memory.NewStore(nil)
		ledger := balances.NewLedger()
		cfg := DefaultConfig()
		cfg.BreedPolicy = BreedAnyone
		reg := NewRegistry(cfg, ledger)
		ctx := context.Background()

		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			for _, who := range accounts {
				if err := ledger.Endow(tx, who, 1_000_000); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			rt.Fatalf("endow: %v", err)
		}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			caller := rapid.SampledFrom(accounts).Draw(rt, "caller")
			op := rapid.IntRange(0, 2).Draw(rt, "op")
			idA := domain.CreatureID(rapid.IntRange(0, 12).Draw(rt, "a"))
			idB := domain.CreatureID(rapid.IntRange(0, 12).Draw(rt, "b"))
			to := rapid.SampledFrom(accounts).Draw(rt, "to")
			block := domain.BlockContext{Height: uint64(i + 1), Seed: domain.Seed{byte(i)}}

			_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				d := domain.NewDispatch(tx, block, 0, caller)
				var err error
				switch op {
				case 0:
					_, err = reg.Create(d)
				case 1:
					err = reg.Transfer(d, to, idA)
				default:
					_, err = reg.Breed(d, idA, idB)
				}
				return err
			})
		}

		err := store.View(ctx, func(r domain.KVReader) error {
			count, err := reg.Count(r)
			if err != nil {
				return err
			}
			seen := make(map[domain.CreatureID]domain.AccountID)
			for _, who := range accounts {
				held, err := reg.Holdings(r, who)
				if err != nil {
					return err
				}
				for _, id := range held {
					if prev, dup := seen[id]; dup {
						rt.Fatalf("creature %d held by %s and %s", id, prev, who)
					}
					seen[id] = who
				}
			}
			if len(seen) != int(count) {
				rt.Fatalf("holdings cover %d creatures, counter is %d", len(seen), count)
			}
			for id := domain.CreatureID(0); id < count; id++ {
				owner, ok, err := reg.Owner(r, id)
				if err != nil {
					return err
				}
				if !ok || seen[id] != owner {
					rt.Fatalf("creature %d owner %q does not match holdings %q", id, owner, seen[id])
				}
				if parents, bred, _ := reg.Parents(r, id); bred && (parents.A >= id || parents.B >= id || parents.A == parents.B) {
					rt.Fatalf("creature %d has invalid parentage %+v", id, parents)
				}
			}
			return nil
		})
		if err != nil {
			rt.Fatalf("view: %v", err)
		}
	})
}
