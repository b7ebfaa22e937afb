// Package storage provides typed accessors over the raw ledger tables.
// Values are encoded with deterministic CBOR so every replica writes the same
// bytes for the same state; integer keys are big-endian so table order equals
// numeric order.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("storage: build cbor encoder: %w", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("storage: build cbor decoder: %w", err))
	}
}

// Encode serializes v with the deterministic ledger encoding.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode parses data produced by Encode into v.
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// KeyCodec converts typed keys to and from their table representation.
type KeyCodec[K any] interface {
	EncodeKey(K) []byte
	DecodeKey([]byte) (K, error)
}

// Uint32Key encodes any uint32-based key as 4 big-endian bytes.
type Uint32Key[K ~uint32] struct{}

func (Uint32Key[K]) EncodeKey(k K) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(k))
}

func (Uint32Key[K]) DecodeKey(b []byte) (K, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("uint32 key: want 4 bytes, got %d", len(b))
	}
	return K(binary.BigEndian.Uint32(b)), nil
}

// Uint64Key encodes any uint64-based key as 8 big-endian bytes.
type Uint64Key[K ~uint64] struct{}

func (Uint64Key[K]) EncodeKey(k K) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k))
}

func (Uint64Key[K]) DecodeKey(b []byte) (K, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("uint64 key: want 8 bytes, got %d", len(b))
	}
	return K(binary.BigEndian.Uint64(b)), nil
}

// StringKey stores string keys verbatim. It is only safe as the last
// component of a composite key.
type StringKey[K ~string] struct{}

func (StringKey[K]) EncodeKey(k K) []byte { return []byte(k) }

func (StringKey[K]) DecodeKey(b []byte) (K, error) { return K(b), nil }

// BytesKey stores opaque byte keys verbatim.
type BytesKey struct{}

func (BytesKey) EncodeKey(k []byte) []byte {
	return append([]byte(nil), k...)
}

func (BytesKey) DecodeKey(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}
