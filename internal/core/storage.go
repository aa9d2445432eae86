package core

import (
	"fmt"
	"os"

	"meetcore/internal/infra/persistence/memory"
	"meetcore/internal/infra/persistence/sqlite"
	"meetcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// NewMemoryStore constructs the in-memory store used by tests and ephemeral
// deployments, with the given rules engine guarding commits.
func NewMemoryStore(engine *domain.RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	MEETCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	MEETCORE_SQLITE_PATH: path to sqlite file (default ./meetcore.db)
//	MEETCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *domain.RulesEngine) (domain.PersistentStore, error) {
	driver := os.Getenv("MEETCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("MEETCORE_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("MEETCORE_POSTGRES_DSN")
		ps, err := NewPostgresStore(dsn, engine)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
