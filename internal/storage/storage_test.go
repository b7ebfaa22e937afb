package storage_test

import (
	"bytes"
	"context"
	"testing"

	"ledgercore/internal/infra/persistence/memory"
	"ledgercore/internal/storage"
	"ledgercore/pkg/domain"
)

var (
	counter = storage.NewValue[uint32]("test.meta", "counter")
	owners  = storage.NewMap[domain.CreatureID, domain.AccountID]("test.owners", storage.Uint32Key[domain.CreatureID]{})
	pairs   = storage.NewDoubleMap[domain.CreatureID, domain.CreatureID, []domain.CreatureID](
		"test.pairs", storage.Uint32Key[domain.CreatureID]{}, storage.Uint32Key[domain.CreatureID]{})
)

func TestTypedAccessors(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := counter.Put(tx, 3); err != nil {
			return err
		}
		for _, id := range []domain.CreatureID{258, 1, 2} {
			if err := owners.Put(tx, id, domain.AccountID("owner")); err != nil {
				return err
			}
		}
		if err := pairs.Put(tx, 1, 2, []domain.CreatureID{5}); err != nil {
			return err
		}
		return pairs.Put(tx, 2, 1, []domain.CreatureID{6, 7})
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	err = store.View(ctx, func(r domain.KVReader) error {
		value, ok, err := counter.Get(r)
		if err != nil || !ok || value != 3 {
			t.Fatalf("counter: %d %v %v", value, ok, err)
		}

		var order []domain.CreatureID
		if err := owners.Iterate(r, func(id domain.CreatureID, _ domain.AccountID) bool {
			order = append(order, id)
			return true
		}); err != nil {
			return err
		}
		if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 258 {
			t.Fatalf("expected numeric key order, got %v", order)
		}

		var first []domain.CreatureID
		if err := owners.Iterate(r, func(id domain.CreatureID, _ domain.AccountID) bool {
			first = append(first, id)
			return false
		}); err != nil {
			return err
		}
		if len(first) != 1 {
			t.Fatalf("expected early stop, got %v", first)
		}

		ok, err = owners.Contains(r, 99)
		if err != nil || ok {
			t.Fatalf("unexpected contains result %v %v", ok, err)
		}

		children, ok, err := pairs.Get(r, 2, 1)
		if err != nil || !ok || len(children) != 2 {
			t.Fatalf("pair (2,1): %v %v %v", children, ok, err)
		}
		if _, ok, _ := pairs.Get(r, 1, 1); ok {
			t.Fatalf("unexpected entry for (1,1)")
		}

		var seconds []domain.CreatureID
		if err := pairs.IteratePrefix(r, 1, func(b domain.CreatureID, _ []domain.CreatureID) bool {
			seconds = append(seconds, b)
			return true
		}); err != nil {
			return err
		}
		if len(seconds) != 1 || seconds[0] != 2 {
			t.Fatalf("unexpected prefix scan %v", seconds)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if owners.Table() != "test.owners" || pairs.Table() != "test.pairs" {
		t.Fatalf("unexpected table names")
	}
}

func TestDeterministicEncoding(t *testing.T) {
	record := domain.ClaimRecord{Owner: "alice", Height: 9, AttestedAt: 4}
	a, err := storage.Encode(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := storage.Encode(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("encoding is not stable")
	}
	var back domain.ClaimRecord
	if err := storage.Decode(a, &back); err != nil || back != record {
		t.Fatalf("decode: %+v %v", back, err)
	}

	var genome domain.Genome
	genome[0], genome[15] = 0xaa, 0x55
	raw, err := storage.Encode(genome)
	if err != nil {
		t.Fatalf("encode genome: %v", err)
	}
	// major type 2 (byte string) of length 16
	if raw[0] != 0x50 || len(raw) != 17 {
		t.Fatalf("expected genome to encode as a 16 byte string, got %x", raw)
	}
}

func TestKeyCodecs(t *testing.T) {
	if _, err := (storage.Uint32Key[domain.CreatureID]{}).DecodeKey([]byte{1}); err == nil {
		t.Fatalf("expected short uint32 key error")
	}
	if _, err := (storage.Uint64Key[uint64]{}).DecodeKey([]byte{1, 2}); err == nil {
		t.Fatalf("expected short uint64 key error")
	}
	key := storage.Uint64Key[uint64]{}.EncodeKey(0x0102)
	if !bytes.Equal(key, []byte{0, 0, 0, 0, 0, 0, 1, 2}) {
		t.Fatalf("unexpected big-endian encoding %x", key)
	}
	account, _ := storage.StringKey[domain.AccountID]{}.DecodeKey([]byte("bob"))
	if account != "bob" {
		t.Fatalf("unexpected account %q", account)
	}
	src := []byte("claim")
	encoded := storage.BytesKey{}.EncodeKey(src)
	src[0] = 'X'
	if string(encoded) != "claim" {
		t.Fatalf("bytes key must copy its input")
	}
}
