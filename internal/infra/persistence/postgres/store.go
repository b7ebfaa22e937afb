// Package postgres provides a PostgreSQL ledger store using the pgx driver
// through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"ledgercore/internal/infra/persistence/sqlkv"
	"ledgercore/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/ledgercore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect is the PostgreSQL flavour of the kv schema.
var Dialect = sqlkv.Dialect{
	Name: "postgres",
	Schema: `CREATE TABLE IF NOT EXISTS kv (
		tbl TEXT NOT NULL,
		k   BYTEA NOT NULL,
		v   BYTEA NOT NULL,
		PRIMARY KEY (tbl, k)
	)`,
	Placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
	ReadOnlyViews: true,
}

// Store persists ledger tables to PostgreSQL.
type Store struct {
	*sqlkv.Store
}

// NewStore opens a store using dsn, falling back to a local default.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	kv, err := sqlkv.New(ctx, db, Dialect, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: kv}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
