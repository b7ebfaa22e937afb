// Package badger provides a ledger store on the embedded BadgerDB key/value
// engine. Ledger tables share one keyspace: each key is prefixed with its
// table name and a zero byte.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"ledgercore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.LedgerStore = (*Store)(nil)

// Config configures the underlying database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in process memory.
	InMemory   bool
	SyncWrites bool
	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns durable settings for a database at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns settings for an ephemeral database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed ledger store.
type Store struct {
	db     *badger.DB
	engine *domain.RulesEngine
	// writers are serialized so transactions never conflict.
	mu sync.Mutex
}

// NewStore opens the database described by cfg.
func NewStore(cfg Config, engine *domain.RulesEngine) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badger: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{db: db, engine: engine}, nil
}

// RulesEngine exposes the configured engine for plugins.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// RunInTransaction executes fn inside a read-write Badger transaction that is
// committed only when fn succeeds and no blocking rule violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res domain.Result
	err := s.db.Update(func(txn *badger.Txn) error {
		tx := &transaction{reader: reader{txn: txn}}
		if err := fn(tx); err != nil {
			return err
		}
		var err error
		res, err = s.engine.Check(ctx, tx, tx.changes)
		return err
	})
	return res, err
}

// View executes fn against a consistent read-only snapshot.
func (s *Store) View(_ context.Context, fn func(domain.KVReader) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(reader{txn: txn})
	})
}

func rawKey(table domain.Table, key []byte) []byte {
	out := make([]byte, 0, len(table)+1+len(key))
	out = append(out, table...)
	out = append(out, 0)
	return append(out, key...)
}

type reader struct {
	txn *badger.Txn
}

func (r reader) Get(table domain.Table, key []byte) ([]byte, bool, error) {
	item, err := r.txn.Get(rawKey(table, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger: get %s: %w", table, err)
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("badger: read %s: %w", table, err)
	}
	return value, true, nil
}

// Iterate copies the matching entries before invoking fn so callbacks may use
// the transaction freely.
func (r reader) Iterate(table domain.Table, prefix []byte, fn func(key, value []byte) error) error {
	scan := rawKey(table, prefix)
	tablePrefix := len(table) + 1

	type pair struct{ k, v []byte }
	var pairs []pair
	opts := badger.DefaultIteratorOptions
	opts.Prefix = scan
	it := r.txn.NewIterator(opts)
	for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return fmt.Errorf("badger: read %s: %w", table, err)
		}
		pairs = append(pairs, pair{k: bytes.Clone(item.Key()[tablePrefix:]), v: value})
	}
	it.Close()

	for _, p := range pairs {
		if err := fn(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

type transaction struct {
	reader
	changes []domain.Change
}

func (t *transaction) Put(table domain.Table, key, value []byte) error {
	if err := t.txn.Set(rawKey(table, key), bytes.Clone(value)); err != nil {
		return fmt.Errorf("badger: put %s: %w", table, err)
	}
	return nil
}

func (t *transaction) Delete(table domain.Table, key []byte) error {
	if err := t.txn.Delete(rawKey(table, key)); err != nil {
		return fmt.Errorf("badger: delete %s: %w", table, err)
	}
	return nil
}

func (t *transaction) RecordChange(change domain.Change) {
	t.changes = append(t.changes, change)
}

func (t *transaction) Changes() []domain.Change {
	out := make([]domain.Change, len(t.changes))
	copy(out, t.changes)
	return out
}
