package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"ledgercore/internal/core"
	"ledgercore/pkg/domain"
)

// blockFile is the YAML layout accepted by `ledger apply`:
//
//	blocks:
//	  - height: 1
//	    extrinsics:
//	      - {caller: alice, call: create}
//	      - {caller: alice, call: transfer, to: bob, id: 0}
//	      - {caller: bob, call: breed, a: 0, b: 1}
//	      - {caller: carol, call: create_claim, claim: doc-1}
//	      - {caller: carol, call: transfer_claim, claim_hex: "0a0b", to: dave}
//
// A zero or missing height means "one above the previous block".
type blockFile struct {
	Blocks []blockSpec `yaml:"blocks"`
}

type blockSpec struct {
	Height     uint64          `yaml:"height"`
	Extrinsics []extrinsicSpec `yaml:"extrinsics"`
}

type extrinsicSpec struct {
	Caller   string  `yaml:"caller"`
	Call     string  `yaml:"call"`
	To       string  `yaml:"to"`
	ID       *uint32 `yaml:"id"`
	A        *uint32 `yaml:"a"`
	B        *uint32 `yaml:"b"`
	Claim    string  `yaml:"claim"`
	ClaimHex string  `yaml:"claim_hex"`
}

func decodeBlocks(r io.Reader) ([]blockSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file blockFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	return file.Blocks, nil
}

// resolveBlocks assigns heights and converts the specs into runtime blocks.
func resolveBlocks(specs []blockSpec, last uint64) ([]core.Block, error) {
	blocks := make([]core.Block, 0, len(specs))
	for i, spec := range specs {
		height := spec.Height
		if height == 0 {
			height = last + 1
		}
		block := core.Block{Height: height}
		for j, ext := range spec.Extrinsics {
			call, err := ext.call()
			if err != nil {
				return nil, fmt.Errorf("block %d extrinsic %d: %w", i, j, err)
			}
			block.Extrinsics = append(block.Extrinsics, core.Extrinsic{Caller: domain.AccountID(ext.Caller), Call: call})
		}
		blocks = append(blocks, block)
		last = height
	}
	return blocks, nil
}

func (e extrinsicSpec) call() (core.Call, error) {
	switch e.Call {
	case "create":
		return core.CreateCreature{}, nil
	case "transfer":
		if e.ID == nil {
			return nil, errors.New("transfer requires id")
		}
		return core.TransferCreature{To: domain.AccountID(e.To), ID: domain.CreatureID(*e.ID)}, nil
	case "breed":
		if e.A == nil || e.B == nil {
			return nil, errors.New("breed requires a and b")
		}
		return core.BreedCreatures{A: domain.CreatureID(*e.A), B: domain.CreatureID(*e.B)}, nil
	case "create_claim", "revoke_claim", "transfer_claim":
		claim, err := parseClaim(e.Claim, e.ClaimHex)
		if err != nil {
			return nil, err
		}
		switch e.Call {
		case "create_claim":
			return core.CreateClaim{Claim: claim}, nil
		case "revoke_claim":
			return core.RevokeClaim{Claim: claim}, nil
		default:
			return core.TransferClaim{Claim: claim, To: domain.AccountID(e.To)}, nil
		}
	default:
		return nil, fmt.Errorf("unknown call %q", e.Call)
	}
}

// parseClaim accepts either literal text or hex, not both.
func parseClaim(text, hexText string) ([]byte, error) {
	switch {
	case text != "" && hexText != "":
		return nil, errors.New("set claim or claim_hex, not both")
	case hexText != "":
		raw, err := hex.DecodeString(hexText)
		if err != nil {
			return nil, fmt.Errorf("claim_hex: %w", err)
		}
		return raw, nil
	default:
		return []byte(text), nil
	}
}
