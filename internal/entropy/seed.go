package entropy

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"ledgercore/pkg/domain"
)

var _ domain.RandomnessSource = SeedChain{}

const seedDomain = "ledgercore/seed"

// SeedChain is a RandomnessSource for single-operator and test deployments:
// the seed of a height is blake2b-256 over a domain tag, the genesis seed and
// the big-endian height. Replicated deployments plug in the seed agreed by
// their consensus instead.
type SeedChain struct {
	genesis domain.Seed
}

// NewSeedChain builds a chain rooted at genesis.
func NewSeedChain(genesis domain.Seed) SeedChain {
	return SeedChain{genesis: genesis}
}

// ParseSeed decodes a hex seed. An empty string yields the zero seed.
func ParseSeed(text string) (domain.Seed, error) {
	var seed domain.Seed
	if text == "" {
		return seed, nil
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return seed, fmt.Errorf("parse seed: %w", err)
	}
	if len(raw) != domain.SeedSize {
		return seed, fmt.Errorf("parse seed: want %d bytes, got %d", domain.SeedSize, len(raw))
	}
	copy(seed[:], raw)
	return seed, nil
}

// Seed implements domain.RandomnessSource.
func (c SeedChain) Seed(height uint64) domain.Seed {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(seedDomain))
	h.Write(c.genesis[:])
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], height)
	h.Write(scratch[:])

	var seed domain.Seed
	copy(seed[:], h.Sum(nil))
	return seed
}
