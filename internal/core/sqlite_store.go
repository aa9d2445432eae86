package core

import (
	"meetcore/internal/infra/persistence/sqlite"
	"meetcore/pkg/domain"
)

// NewSQLiteStore constructs a SQLite-backed persistent store from the given
// file path (empty for the default) and rules engine.
func NewSQLiteStore(path string, engine *domain.RulesEngine) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine)
}
