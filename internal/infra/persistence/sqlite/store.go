// Package sqlite provides an embedded SQLite ledger store on the pure Go
// modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"ledgercore/internal/infra/persistence/sqlkv"
	"ledgercore/pkg/domain"
)

// DefaultPath is used when no file is configured.
const DefaultPath = "ledger.db"

// Dialect is the SQLite flavour of the kv schema.
var Dialect = sqlkv.Dialect{
	Name: "sqlite",
	Schema: `CREATE TABLE IF NOT EXISTS kv (
		tbl TEXT NOT NULL,
		k   BLOB NOT NULL,
		v   BLOB NOT NULL,
		PRIMARY KEY (tbl, k)
	) WITHOUT ROWID`,
	Placeholder: func(int) string { return "?" },
}

// Store persists ledger tables to a single SQLite file.
type Store struct {
	*sqlkv.Store
	path string
}

// NewStore opens (creating when needed) the SQLite database at path. The
// special path ":memory:" keeps the database in process memory.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared between transactions.
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	kv, err := sqlkv.New(ctx, db, Dialect, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: kv, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
