// Package memory provides an in-memory implementation of the ledger store
// used for tests and ephemeral environments.
package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"ledgercore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.LedgerStore = (*Store)(nil)

type table map[string][]byte

// Store provides an in-memory transactional ledger store. Transactions stage
// their writes in an overlay that is applied to the committed tables only
// after the callback and the rules engine both succeed.
type Store struct {
	mu     sync.RWMutex
	tables map[domain.Table]table
	engine *domain.RulesEngine
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		tables: make(map[domain.Table]table),
		engine: engine,
	}
}

// RulesEngine exposes the currently configured engine for integration points like plugins.
func (s *Store) RulesEngine() *domain.RulesEngine {
	return s.engine
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn against a staged overlay and commits it when
// fn returns nil and no blocking rule violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		base:   s.tables,
		staged: make(map[domain.Table]map[string]stagedValue),
	}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	res, err := s.engine.Check(ctx, tx, tx.changes)
	if err != nil {
		return res, err
	}

	tx.apply(s.tables)
	return res, nil
}

// View executes fn against the committed tables.
func (s *Store) View(_ context.Context, fn func(domain.KVReader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(committedView{tables: s.tables})
}

// ExportState clones the committed tables ordered by table and key.
func (s *Store) ExportState() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, string(name))
	}
	sort.Strings(names)

	var snapshot domain.Snapshot
	for _, name := range names {
		t := s.tables[domain.Table(name)]
		for _, key := range sortedKeys(t, "") {
			snapshot.Entries = append(snapshot.Entries, domain.SnapshotEntry{
				Table: domain.Table(name),
				Key:   []byte(key),
				Value: bytes.Clone(t[key]),
			})
		}
	}
	return snapshot
}

// ImportState replaces the store contents with the provided snapshot.
func (s *Store) ImportState(snapshot domain.Snapshot) {
	tables := make(map[domain.Table]table)
	for _, entry := range snapshot.Entries {
		t, ok := tables[entry.Table]
		if !ok {
			t = make(table)
			tables[entry.Table] = t
		}
		t[string(entry.Key)] = bytes.Clone(entry.Value)
	}

	s.mu.Lock()
	s.tables = tables
	s.mu.Unlock()
}

type committedView struct {
	tables map[domain.Table]table
}

func (v committedView) Get(tbl domain.Table, key []byte) ([]byte, bool, error) {
	value, ok := v.tables[tbl][string(key)]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

func (v committedView) Iterate(tbl domain.Table, prefix []byte, fn func(key, value []byte) error) error {
	t := v.tables[tbl]
	for _, key := range sortedKeys(t, string(prefix)) {
		if err := fn([]byte(key), bytes.Clone(t[key])); err != nil {
			return err
		}
	}
	return nil
}

type stagedValue struct {
	value   []byte
	deleted bool
}

// transaction represents a mutation set staged over the committed tables.
type transaction struct {
	base    map[domain.Table]table
	staged  map[domain.Table]map[string]stagedValue
	changes []domain.Change
}

func (tx *transaction) Get(tbl domain.Table, key []byte) ([]byte, bool, error) {
	if staged, ok := tx.staged[tbl][string(key)]; ok {
		if staged.deleted {
			return nil, false, nil
		}
		return bytes.Clone(staged.value), true, nil
	}
	return committedView{tables: tx.base}.Get(tbl, key)
}

func (tx *transaction) Iterate(tbl domain.Table, prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	p := string(prefix)
	for key, value := range tx.base[tbl] {
		if strings.HasPrefix(key, p) {
			merged[key] = value
		}
	}
	for key, staged := range tx.staged[tbl] {
		if !strings.HasPrefix(key, p) {
			continue
		}
		if staged.deleted {
			delete(merged, key)
			continue
		}
		merged[key] = staged.value
	}
	for _, key := range sortedKeys(merged, "") {
		if err := fn([]byte(key), bytes.Clone(merged[key])); err != nil {
			return err
		}
	}
	return nil
}

func (tx *transaction) Put(tbl domain.Table, key, value []byte) error {
	tx.stage(tbl, key, stagedValue{value: bytes.Clone(value)})
	return nil
}

func (tx *transaction) Delete(tbl domain.Table, key []byte) error {
	tx.stage(tbl, key, stagedValue{deleted: true})
	return nil
}

func (tx *transaction) stage(tbl domain.Table, key []byte, value stagedValue) {
	t, ok := tx.staged[tbl]
	if !ok {
		t = make(map[string]stagedValue)
		tx.staged[tbl] = t
	}
	t[string(key)] = value
}

// RecordChange appends a change entry evaluated by the rules engine before commit.
func (tx *transaction) RecordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Changes returns the changes recorded so far.
func (tx *transaction) Changes() []domain.Change {
	out := make([]domain.Change, len(tx.changes))
	copy(out, tx.changes)
	return out
}

func (tx *transaction) apply(tables map[domain.Table]table) {
	for tbl, writes := range tx.staged {
		t, ok := tables[tbl]
		if !ok {
			t = make(table)
			tables[tbl] = t
		}
		for key, staged := range writes {
			if staged.deleted {
				delete(t, key)
				continue
			}
			t[key] = staged.value
		}
		if len(t) == 0 {
			delete(tables, tbl)
		}
	}
}

func sortedKeys(t map[string][]byte, prefix string) []string {
	keys := make([]string, 0, len(t))
	for key := range t {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
