// Package sqlkv implements the ledger store on a single ordered key/value
// table in a SQL database. Each ledger transaction runs inside one SQL
// transaction that commits only after the rules engine accepts the staged
// changes.
package sqlkv

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"ledgercore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.LedgerStore = (*Store)(nil)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Schema creates the kv table when missing.
	Schema string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// ReadOnlyViews opens View transactions with sql.TxOptions.ReadOnly.
	ReadOnlyViews bool
}

// Store is a SQL-backed ledger store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	engine  *domain.RulesEngine
	// writers are serialized so rule evaluation sees a stable base.
	mu sync.Mutex

	getQuery     string
	scanQuery    string
	iterateQuery string
	putQuery     string
	deleteQuery  string
}

// New prepares the schema on db and returns a store using engine for rule
// evaluation. A nil engine is replaced with an empty one.
func New(ctx context.Context, db *sql.DB, dialect Dialect, engine *domain.RulesEngine) (*Store, error) {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
		return nil, fmt.Errorf("%s: create kv table: %w", dialect.Name, err)
	}
	p := dialect.Placeholder
	return &Store{
		db:           db,
		dialect:      dialect,
		engine:       engine,
		getQuery:     fmt.Sprintf(`SELECT v FROM kv WHERE tbl = %s AND k = %s`, p(1), p(2)),
		scanQuery:    fmt.Sprintf(`SELECT k, v FROM kv WHERE tbl = %s ORDER BY k`, p(1)),
		iterateQuery: fmt.Sprintf(`SELECT k, v FROM kv WHERE tbl = %s AND k >= %s ORDER BY k`, p(1), p(2)),
		putQuery: fmt.Sprintf(`INSERT INTO kv(tbl, k, v) VALUES(%s, %s, %s)
			ON CONFLICT(tbl, k) DO UPDATE SET v = excluded.v`, p(1), p(2), p(3)),
		deleteQuery: fmt.Sprintf(`DELETE FROM kv WHERE tbl = %s AND k = %s`, p(1), p(2)),
	}, nil
}

// DB exposes the underlying handle for integration hooks.
func (s *Store) DB() *sql.DB { return s.db }

// RulesEngine exposes the configured engine for plugins.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// RunInTransaction executes fn inside a SQL transaction and commits when fn
// succeeds and no blocking rule violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Result{}, fmt.Errorf("%s: begin: %w", s.dialect.Name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	tx := &transaction{reader: reader{ctx: ctx, q: sqlTx, s: s}}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}
	res, err := s.engine.Check(ctx, tx, tx.changes)
	if err != nil {
		return res, err
	}
	if err := sqlTx.Commit(); err != nil {
		return res, fmt.Errorf("%s: commit: %w", s.dialect.Name, err)
	}
	committed = true
	return res, nil
}

// View executes fn against a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(domain.KVReader) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.dialect.ReadOnlyViews})
	if err != nil {
		return fmt.Errorf("%s: begin view: %w", s.dialect.Name, err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(reader{ctx: ctx, q: sqlTx, s: s})
}

type reader struct {
	ctx context.Context
	q   *sql.Tx
	s   *Store
}

func (r reader) Get(table domain.Table, key []byte) ([]byte, bool, error) {
	var value []byte
	err := r.q.QueryRowContext(r.ctx, r.s.getQuery, string(table), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: get %s: %w", r.s.dialect.Name, table, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// Iterate buffers the matching rows before invoking fn so callbacks may issue
// further queries on the same transaction.
func (r reader) Iterate(table domain.Table, prefix []byte, fn func(key, value []byte) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	if len(prefix) == 0 {
		rows, err = r.q.QueryContext(r.ctx, r.s.scanQuery, string(table))
	} else {
		rows, err = r.q.QueryContext(r.ctx, r.s.iterateQuery, string(table), prefix)
	}
	if err != nil {
		return fmt.Errorf("%s: iterate %s: %w", r.s.dialect.Name, table, err)
	}
	type pair struct{ k, v []byte }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.k, &p.v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("%s: scan %s: %w", r.s.dialect.Name, table, err)
		}
		if !bytes.HasPrefix(p.k, prefix) {
			break
		}
		pairs = append(pairs, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: iterate %s: %w", r.s.dialect.Name, table, err)
	}

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
	if value == nil {
		value = []byte{}
	}
	if _, err := t.q.ExecContext(t.ctx, t.s.putQuery, string(table), key, value); err != nil {
		return fmt.Errorf("%s: put %s: %w", t.s.dialect.Name, table, err)
	}
	return nil
}

func (t *transaction) Delete(table domain.Table, key []byte) error {
	if _, err := t.q.ExecContext(t.ctx, t.s.deleteQuery, string(table), key); err != nil {
		return fmt.Errorf("%s: delete %s: %w", t.s.dialect.Name, table, err)
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
