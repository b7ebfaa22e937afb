package claims

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"ledgercore/internal/infra/persistence/memory"
	"ledgercore/pkg/domain"
)

type harness struct {
	t      *testing.T
	store  *memory.Store
	reg    *Registry
	height uint64
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, store: memory.NewStore(nil), reg: NewRegistry(Config{}), height: 1}
}

func (h *harness) run(caller domain.AccountID, fn func(d *domain.Dispatch) error) ([]domain.Event, error) {
	var events []domain.Event
	_, err := h.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		d := domain.NewDispatch(tx, domain.BlockContext{Height: h.height}, 0, caller)
		if err := fn(d); err != nil {
			return err
		}
		events = d.Events()
		return nil
	})
	return events, err
}

func (h *harness) record(claim []byte) (domain.ClaimRecord, bool) {
	h.t.Helper()
	var (
		rec domain.ClaimRecord
		ok  bool
	)
	if err := h.store.View(context.Background(), func(r domain.KVReader) error {
		var err error
		rec, ok, err = h.reg.Claim(r, claim)
		return err
	}); err != nil {
		h.t.Fatalf("claim lookup: %v", err)
	}
	return rec, ok
}

func TestClaimLifecycle(t *testing.T) {
	h := newHarness(t)
	claim := []byte("ab")

	h.height = 3
	events, err := h.run("alice", func(d *domain.Dispatch) error { return h.reg.CreateClaim(d, claim) })
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !reflect.DeepEqual(events, []domain.Event{domain.ClaimCreated{Owner: "alice", Claim: claim}}) {
		t.Fatalf("unexpected events %+v", events)
	}
	if rec, ok := h.record(claim); !ok || rec != (domain.ClaimRecord{Owner: "alice", Height: 3, AttestedAt: 3}) {
		t.Fatalf("unexpected record %+v", rec)
	}

	h.height = 8
	events, err = h.run("alice", func(d *domain.Dispatch) error { return h.reg.TransferClaim(d, claim, "bob") })
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !reflect.DeepEqual(events, []domain.Event{domain.ClaimTransferred{From: "alice", Claim: claim, To: "bob"}}) {
		t.Fatalf("unexpected events %+v", events)
	}
	if rec, _ := h.record(claim); rec != (domain.ClaimRecord{Owner: "bob", Height: 8, AttestedAt: 3}) {
		t.Fatalf("transfer must move ownership height and keep attestation, got %+v", rec)
	}

	if _, err := h.run("alice", func(d *domain.Dispatch) error { return h.reg.RevokeClaim(d, claim) }); !errors.Is(err, domain.ErrNotClaimOwner) {
		t.Fatalf("expected former owner to be rejected, got %v", err)
	}
	events, err = h.run("bob", func(d *domain.Dispatch) error { return h.reg.RevokeClaim(d, claim) })
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !reflect.DeepEqual(events, []domain.Event{domain.ClaimRevoked{Owner: "bob", Claim: claim}}) {
		t.Fatalf("unexpected events %+v", events)
	}
	if _, ok := h.record(claim); ok {
		t.Fatalf("revoked claim still present")
	}

	if _, err := h.run("carol", func(d *domain.Dispatch) error { return h.reg.CreateClaim(d, claim) }); err != nil {
		t.Fatalf("revoked claim should be claimable again: %v", err)
	}
}

func TestClaimLengthBoundaries(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		size int
		want error
	}{
		{0, domain.ErrClaimTooShort},
		{1, domain.ErrClaimTooShort},
		{2, nil},
		{10, nil},
		{11, domain.ErrClaimTooLong},
	}
	for _, tc := range cases {
		claim := bytes.Repeat([]byte{byte('a' + tc.size)}, tc.size)
		_, err := h.run("alice", func(d *domain.Dispatch) error { return h.reg.CreateClaim(d, claim) })
		if !errors.Is(err, tc.want) {
			t.Fatalf("length %d: expected %v, got %v", tc.size, tc.want, err)
		}
	}
}

func TestClaimErrorsLeaveStateUnchanged(t *testing.T) {
	h := newHarness(t)
	claim := []byte{0x00, 0xff}
	if _, err := h.run("alice", func(d *domain.Dispatch) error { return h.reg.CreateClaim(d, claim) }); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := h.store.ExportState()

	cases := []struct {
		name   string
		caller domain.AccountID
		fn     func(d *domain.Dispatch) error
		want   error
	}{
		{"duplicate", "bob", func(d *domain.Dispatch) error { return h.reg.CreateClaim(d, claim) }, domain.ErrClaimAlreadyExists},
		{"revoke missing", "alice", func(d *domain.Dispatch) error { return h.reg.RevokeClaim(d, []byte("zz")) }, domain.ErrClaimNotFound},
		{"revoke foreign", "bob", func(d *domain.Dispatch) error { return h.reg.RevokeClaim(d, claim) }, domain.ErrNotClaimOwner},
		{"transfer missing", "alice", func(d *domain.Dispatch) error { return h.reg.TransferClaim(d, []byte("zz"), "bob") }, domain.ErrClaimNotFound},
		{"transfer foreign", "bob", func(d *domain.Dispatch) error { return h.reg.TransferClaim(d, claim, "carol") }, domain.ErrNotClaimOwner},
		{"transfer self", "alice", func(d *domain.Dispatch) error { return h.reg.TransferClaim(d, claim, "alice") }, domain.ErrSelfTransfer},
		{"transfer empty", "alice", func(d *domain.Dispatch) error { return h.reg.TransferClaim(d, claim, "") }, domain.ErrEmptyAccountID},
	}
	for _, tc := range cases {
		events, err := h.run(tc.caller, tc.fn)
		if !errors.Is(err, tc.want) || events != nil {
			t.Fatalf("%s: expected %v, got %v (events %v)", tc.name, tc.want, err, events)
		}
	}
	if !reflect.DeepEqual(before, h.store.ExportState()) {
		t.Fatalf("failed claim transitions changed state")
	}
}

func TestConfigDefaultsAndEach(t *testing.T) {
	h := newHarness(t)
	if h.reg.Config() != DefaultConfig() {
		t.Fatalf("expected default bounds, got %+v", h.reg.Config())
	}
	for _, c := range []string{"bb", "aa", "cc"} {
		claim := []byte(c)
		if _, err := h.run("alice", func(d *domain.Dispatch) error { return h.reg.CreateClaim(d, claim) }); err != nil {
			t.Fatalf("create %s: %v", c, err)
		}
	}
	var order []string
	err := h.store.View(context.Background(), func(r domain.KVReader) error {
		return h.reg.Each(r, func(claim []byte, _ domain.ClaimRecord) bool {
			order = append(order, string(claim))
			return true
		})
	})
	if err != nil || !reflect.DeepEqual(order, []string{"aa", "bb", "cc"}) {
		t.Fatalf("unexpected order %v %v", order, err)
	}
	if tables := h.reg.Tables(); len(tables) != 1 || tables[0] != TableClaims {
		t.Fatalf("unexpected tables %v", tables)
	}
}

// TestAtMostOneOwner checks that a random walk of claim transitions never
// leaves a claim without exactly one owner or with a record after revocation.
func TestAtMostOneOwner(t *testing.T) {
	accounts := []domain.AccountID{"alice", "bob", "carol"}
	rapid.Check(t, func(rt *rapid.T) {
		h := &harness{store: memory.NewStore(nil), reg: NewRegistry(DefaultConfig()), height: 1}
		model := make(map[string]domain.AccountID)

		steps := rapid.IntRange(1, 50).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			h.height++
			caller := rapid.SampledFrom(accounts).Draw(rt, "caller")
			to := rapid.SampledFrom(accounts).Draw(rt, "to")
			claim := []byte(rapid.SampledFrom([]string{"aa", "bb", "cc"}).Draw(rt, "claim"))
			op := rapid.IntRange(0, 2).Draw(rt, "op")

			var err error
			switch op {
			case 0:
				_, err = h.run(caller, func(d *domain.Dispatch) error { return h.reg.CreateClaim(d, claim) })
				if _, taken := model[string(claim)]; !taken && err == nil {
					model[string(claim)] = caller
				} else if taken && !errors.Is(err, domain.ErrClaimAlreadyExists) {
					rt.Fatalf("expected duplicate rejection, got %v", err)
				}
			case 1:
				_, err = h.run(caller, func(d *domain.Dispatch) error { return h.reg.RevokeClaim(d, claim) })
				if owner, ok := model[string(claim)]; ok && owner == caller {
					if err != nil {
						rt.Fatalf("owner revoke failed: %v", err)
					}
					delete(model, string(claim))
				} else if err == nil {
					rt.Fatalf("non-owner revoke succeeded")
				}
			default:
				_, err = h.run(caller, func(d *domain.Dispatch) error { return h.reg.TransferClaim(d, claim, to) })
				if owner, ok := model[string(claim)]; ok && owner == caller && to != caller {
					if err != nil {
						rt.Fatalf("owner transfer failed: %v", err)
					}
					model[string(claim)] = to
				} else if err == nil {
					rt.Fatalf("invalid transfer succeeded")
				}
			}
		}

		_ = h.store.View(context.Background(), func(r domain.KVReader) error {
			for _, c := range []string{"aa", "bb", "cc"} {
				rec, ok, err := h.reg.Claim(r, []byte(c))
				if err != nil {
					rt.Fatalf("lookup: %v", err)
				}
				owner, want := model[c]
				if ok != want || (ok && rec.Owner != owner) {
					rt.Fatalf("claim %s: store owner %q (%v), model owner %q (%v)", c, rec.Owner, ok, owner, want)
				}
			}
			return nil
		})
	})
}
