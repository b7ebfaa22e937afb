package storage

import (
	"errors"
	"fmt"

	"ledgercore/pkg/domain"
)

// Value is a single typed entry stored under a fixed key.
type Value[V any] struct {
	table domain.Table
	key   []byte
}

// NewValue declares a typed singleton entry.
func NewValue[V any](table domain.Table, key string) Value[V] {
	return Value[V]{table: table, key: []byte(key)}
}

// Get returns the stored value or the zero value with ok=false.
func (v Value[V]) Get(r domain.KVReader) (value V, ok bool, err error) {
	return get[V](r, v.table, v.key)
}

// Put stores value.
func (v Value[V]) Put(w domain.KVWriter, value V) error {
	return put(w, v.table, v.key, value)
}

// Map is a typed table keyed by K.
type Map[K, V any] struct {
	table domain.Table
	keys  KeyCodec[K]
}

// NewMap declares a typed map over table.
func NewMap[K, V any](table domain.Table, keys KeyCodec[K]) Map[K, V] {
	return Map[K, V]{table: table, keys: keys}
}

// Table returns the backing table name.
func (m Map[K, V]) Table() domain.Table { return m.table }

// Get returns the value stored for key.
func (m Map[K, V]) Get(r domain.KVReader, key K) (value V, ok bool, err error) {
	return get[V](r, m.table, m.keys.EncodeKey(key))
}

// Contains reports whether key is present.
func (m Map[K, V]) Contains(r domain.KVReader, key K) (bool, error) {
	_, ok, err := r.Get(m.table, m.keys.EncodeKey(key))
	return ok, err
}

// Put stores value under key.
func (m Map[K, V]) Put(w domain.KVWriter, key K, value V) error {
	return put(w, m.table, m.keys.EncodeKey(key), value)
}

// Delete removes key.
func (m Map[K, V]) Delete(w domain.KVWriter, key K) error {
	return w.Delete(m.table, m.keys.EncodeKey(key))
}

// Iterate visits every entry in ascending key order until fn returns false.
func (m Map[K, V]) Iterate(r domain.KVReader, fn func(K, V) bool) error {
	err := r.Iterate(m.table, nil, func(rawKey, rawValue []byte) error {
		key, err := m.keys.DecodeKey(rawKey)
		if err != nil {
			return fmt.Errorf("%s: %w", m.table, err)
		}
		var value V
		if err := Decode(rawValue, &value); err != nil {
			return fmt.Errorf("%s: decode value: %w", m.table, err)
		}
		if !fn(key, value) {
			return domain.ErrStopIteration
		}
		return nil
	})
	if errors.Is(err, domain.ErrStopIteration) {
		return nil
	}
	return err
}

// DoubleMap is a typed table keyed by the concatenation of K1 and K2. K1 must
// have a fixed-width encoding so prefixes address exactly one first key.
type DoubleMap[K1, K2, V any] struct {
	table domain.Table
	k1    KeyCodec[K1]
	k2    KeyCodec[K2]
}

// NewDoubleMap declares a typed double map over table.
func NewDoubleMap[K1, K2, V any](table domain.Table, k1 KeyCodec[K1], k2 KeyCodec[K2]) DoubleMap[K1, K2, V] {
	return DoubleMap[K1, K2, V]{table: table, k1: k1, k2: k2}
}

// Table returns the backing table name.
func (m DoubleMap[K1, K2, V]) Table() domain.Table { return m.table }

func (m DoubleMap[K1, K2, V]) key(a K1, b K2) []byte {
	return append(m.k1.EncodeKey(a), m.k2.EncodeKey(b)...)
}

// Get returns the value stored for (a, b).
func (m DoubleMap[K1, K2, V]) Get(r domain.KVReader, a K1, b K2) (value V, ok bool, err error) {
	return get[V](r, m.table, m.key(a, b))
}

// Put stores value under (a, b).
func (m DoubleMap[K1, K2, V]) Put(w domain.KVWriter, a K1, b K2, value V) error {
	return put(w, m.table, m.key(a, b), value)
}

// Delete removes (a, b).
func (m DoubleMap[K1, K2, V]) Delete(w domain.KVWriter, a K1, b K2) error {
	return w.Delete(m.table, m.key(a, b))
}

// IteratePrefix visits every (a, *) entry in ascending order of the second key
// until fn returns false.
func (m DoubleMap[K1, K2, V]) IteratePrefix(r domain.KVReader, a K1, fn func(K2, V) bool) error {
	prefix := m.k1.EncodeKey(a)
	err := r.Iterate(m.table, prefix, func(rawKey, rawValue []byte) error {
		key, err := m.k2.DecodeKey(rawKey[len(prefix):])
		if err != nil {
			return fmt.Errorf("%s: %w", m.table, err)
		}
		var value V
		if err := Decode(rawValue, &value); err != nil {
			return fmt.Errorf("%s: decode value: %w", m.table, err)
		}
		if !fn(key, value) {
			return domain.ErrStopIteration
		}
		return nil
	})
	if errors.Is(err, domain.ErrStopIteration) {
		return nil
	}
	return err
}

func get[V any](r domain.KVReader, table domain.Table, key []byte) (V, bool, error) {
	var value V
	raw, ok, err := r.Get(table, key)
	if err != nil || !ok {
		return value, false, err
	}
	if err := Decode(raw, &value); err != nil {
		return value, false, fmt.Errorf("%s: decode value: %w", table, err)
	}
	return value, true, nil
}

func put[V any](w domain.KVWriter, table domain.Table, key []byte, value V) error {
	raw, err := Encode(value)
	if err != nil {
		return fmt.Errorf("%s: encode value: %w", table, err)
	}
	return w.Put(table, key, raw)
}
