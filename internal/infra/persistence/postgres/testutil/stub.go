// Package testutil provides a stub database understanding the kv statements
// issued by the postgres store, for tests that run without a server.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// StubConn is the shared state behind every connection of a stub database.
// Committed rows live in Tables keyed by ledger table then raw key.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Tables     map[string]map[string][]byte
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
}

// NewStubDB registers a sql.DB backed by a fresh stub.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string]map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Rows returns the committed rows of table in key order.
func (c *StubConn) Rows(table string) [][2][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedRows(c.Tables[table], nil)
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return &session{conn: d.conn}, nil
}

// session is one pooled connection. An open transaction works on a private
// copy of the tables that replaces the shared state on commit.
type session struct {
	conn    *StubConn
	working map[string]map[string][]byte
}

func (s *session) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (s *session) Close() error                        { return nil }
func (s *session) Begin() (driver.Tx, error) {
	return s.BeginTx(context.Background(), driver.TxOptions{})
}

func (s *session) Ping(context.Context) error {
	if s.conn.FailExec {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (s *session) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if s.conn.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	s.conn.mu.Lock()
	s.working = cloneTables(s.conn.Tables)
	s.conn.mu.Unlock()
	return &stubTx{session: s}, nil
}

func (s *session) tables() map[string]map[string][]byte {
	if s.working != nil {
		return s.working
	}
	return s.conn.Tables
}

func (s *session) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.Execs = append(s.conn.Execs, query)
	if s.conn.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	q := normalize(query)
	switch {
	case strings.HasPrefix(q, "INSERT INTO KV"):
		if len(args) != 3 {
			return nil, fmt.Errorf("insert: want 3 args, got %d", len(args))
		}
		tbl, key, value := asString(args[0]), asBytes(args[1]), asBytes(args[2])
		tables := s.tables()
		t, ok := tables[tbl]
		if !ok {
			t = make(map[string][]byte)
			tables[tbl] = t
		}
		t[string(key)] = bytes.Clone(value)
	case strings.HasPrefix(q, "DELETE FROM KV"):
		if len(args) != 2 {
			return nil, fmt.Errorf("delete: want 2 args, got %d", len(args))
		}
		delete(s.tables()[asString(args[0])], string(asBytes(args[1])))
	}
	return driver.RowsAffected(1), nil
}

func (s *session) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.FailExec {
		return nil, fmt.Errorf("query fail")
	}
	q := normalize(query)
	if len(args) == 0 {
		return nil, fmt.Errorf("query without args: %s", query)
	}
	t := s.tables()[asString(args[0])]
	switch {
	case strings.HasPrefix(q, "SELECT V FROM KV"):
		rows := &stubRows{cols: []string{"v"}, err: s.conn.RowsErr}
		if value, ok := t[string(asBytes(args[1]))]; ok {
			rows.rows = append(rows.rows, []driver.Value{bytes.Clone(value)})
		}
		return rows, nil
	case strings.HasPrefix(q, "SELECT K, V FROM KV"):
		var from []byte
		if len(args) > 1 {
			from = asBytes(args[1])
		}
		rows := &stubRows{cols: []string{"k", "v"}, err: s.conn.RowsErr}
		for _, kv := range sortedRows(t, from) {
			rows.rows = append(rows.rows, []driver.Value{kv[0], kv[1]})
		}
		return rows, nil
	}
	return nil, fmt.Errorf("unsupported query: %s", query)
}

type stubTx struct {
	session *session
}

func (t *stubTx) Commit() error {
	s := t.session
	defer func() { s.working = nil }()
	if s.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	s.conn.mu.Lock()
	s.conn.Tables = s.working
	s.conn.mu.Unlock()
	return nil
}

func (t *stubTx) Rollback() error {
	t.session.working = nil
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func normalize(query string) string {
	return strings.ToUpper(strings.Join(strings.Fields(query), " "))
}

func asString(v driver.NamedValue) string {
	switch x := v.Value.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v.Value)
}

func asBytes(v driver.NamedValue) []byte {
	switch x := v.Value.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	}
	return nil
}

func cloneTables(in map[string]map[string][]byte) map[string]map[string][]byte {
	out := make(map[string]map[string][]byte, len(in))
	for name, t := range in {
		cp := make(map[string][]byte, len(t))
		for k, v := range t {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}

func sortedRows(t map[string][]byte, from []byte) [][2][]byte {
	keys := make([]string, 0, len(t))
	for k := range t {
		if k >= string(from) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2][]byte{[]byte(k), bytes.Clone(t[k])})
	}
	return out
}
