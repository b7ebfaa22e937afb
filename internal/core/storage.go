package core

import (
	"fmt"
	"log/slog"

	"ledgercore/internal/config"
	"ledgercore/internal/infra/persistence/badger"
	"ledgercore/internal/infra/persistence/memory"
	"ledgercore/internal/infra/persistence/postgres"
	"ledgercore/internal/infra/persistence/sqlite"
	"ledgercore/pkg/domain"
)

// OpenLedgerStore opens the backend selected by cfg. An empty driver selects
// sqlite. logger receives badger's internal log output and may be nil.
func OpenLedgerStore(cfg config.StorageConfig, engine *domain.RulesEngine, logger *slog.Logger) (domain.LedgerStore, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(engine), nil
	case config.StorageSQLite, "":
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case config.StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	case config.StorageBadger:
		bc := badger.DefaultConfig(cfg.BadgerPath)
		if cfg.BadgerInMem {
			bc = badger.InMemoryConfig()
		}
		bc.SyncWrites = cfg.BadgerSync
		bc.Logger = logger
		return badger.NewStore(bc, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
