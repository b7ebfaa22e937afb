package domain

import (
	"context"
	"errors"
)

// Table names a keyed collection inside the ledger store. Keys are ordered
// bytewise within a table.
type Table string

// ErrStopIteration may be returned from an Iterate callback to end the scan
// early without reporting an error.
var ErrStopIteration = errors.New("stop iteration")

// KVReader provides read access to ledger tables.
type KVReader interface {
	Get(table Table, key []byte) ([]byte, bool, error)
	// Iterate visits every key in table starting with prefix in ascending key
	// order. fn must not write to the table being iterated.
	Iterate(table Table, prefix []byte, fn func(key, value []byte) error) error
}

// KVWriter extends KVReader with staged mutations.
type KVWriter interface {
	KVReader
	Put(table Table, key, value []byte) error
	Delete(table Table, key []byte) error
}

// Transaction is the mutable unit of work handed to RunInTransaction callbacks.
// Writes stay invisible to other readers until the callback returns nil and
// every registered rule passes.
type Transaction interface {
	KVWriter
	RecordChange(Change)
	Changes() []Change
}

// LedgerStore is the abstraction over durable key-value backends. Each call
// to RunInTransaction commits all staged writes atomically or none of them.
type LedgerStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(KVReader) error) error
	RulesEngine() *RulesEngine
	Close() error
}
