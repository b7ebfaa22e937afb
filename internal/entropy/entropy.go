// Package entropy derives the deterministic randomness consumed by ledger
// transitions. Every replica derives identical bytes from identical inputs.
package entropy

import (
	"encoding/binary"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"ledgercore/pkg/domain"
)

// Derive returns 16 bytes of blake2b-128 over
// seed || u32be(len(caller)) || caller || u32be(index).
func Derive(seed domain.Seed, caller domain.AccountID, index uint32) [16]byte {
	h := newHash(16)
	h.Write(seed[:])
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(caller)))
	h.Write(scratch[:])
	h.Write([]byte(caller))
	binary.BigEndian.PutUint32(scratch[:], index)
	h.Write(scratch[:])

	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ForDispatch derives the randomness of the extrinsic executing in d.
func ForDispatch(d *domain.Dispatch) [16]byte {
	return Derive(d.Block.Seed, d.Caller, d.Index)
}

func newHash(size int) hash.Hash {
	h, err := blake2b.New(size, nil)
	if err != nil {
		// only reachable with an invalid size constant
		panic(fmt.Errorf("entropy: blake2b: %w", err))
	}
	return h
}
