// Package sqlite provides a SQLite-backed persistent store that reuses the
// in-memory transaction semantics and snapshots the full state after every
// successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"meetcore/internal/entitymodel/sqlbundle"
	"meetcore/internal/infra/persistence/memory"
	"meetcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store. It
// applies the entity-model DDL, ensures the snapshot table exists, and
// hydrates the in-memory store from any existing snapshot.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "meetcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := applyEntityModelDDL(db); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"competitors", "events", "relay_teams", "individual_results", "team_results", "sequence"}

func applyEntityModelDDL(db *sql.DB) error {
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.SQLite()) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	type raw struct {
		bucket  string
		payload []byte
	}
	var raws []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.bucket, &r.payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}
	snapshot := memory.Snapshot{}
	for _, r := range raws {
		switch r.bucket {
		case "competitors":
			if err := json.Unmarshal(r.payload, &snapshot.Competitors); err != nil {
				return fmt.Errorf("decode competitors: %w", err)
			}
		case "events":
			if err := json.Unmarshal(r.payload, &snapshot.Events); err != nil {
				return fmt.Errorf("decode events: %w", err)
			}
		case "relay_teams":
			if err := json.Unmarshal(r.payload, &snapshot.RelayTeams); err != nil {
				return fmt.Errorf("decode relay teams: %w", err)
			}
		case "individual_results":
			if err := json.Unmarshal(r.payload, &snapshot.IndividualResults); err != nil {
				return fmt.Errorf("decode individual results: %w", err)
			}
		case "team_results":
			if err := json.Unmarshal(r.payload, &snapshot.TeamResults); err != nil {
				return fmt.Errorf("decode team results: %w", err)
			}
		case "sequence":
			if err := json.Unmarshal(r.payload, &snapshot.LastSeq); err != nil {
				return fmt.Errorf("decode sequence: %w", err)
			}
		}
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "competitors":
			data, err = json.Marshal(snapshot.Competitors)
		case "events":
			data, err = json.Marshal(snapshot.Events)
		case "relay_teams":
			data, err = json.Marshal(snapshot.RelayTeams)
		case "individual_results":
			data, err = json.Marshal(snapshot.IndividualResults)
		case "team_results":
			data, err = json.Marshal(snapshot.TeamResults)
		case "sequence":
			data, err = json.Marshal(snapshot.LastSeq)
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies the provided function within a transaction, then snapshots state to SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// RestoreState replaces the entire store state with snapshot and persists it.
func (s *Store) RestoreState(ctx context.Context, snapshot memory.Snapshot) error {
	if err := s.Store.RestoreState(ctx, snapshot); err != nil {
		return err
	}
	return s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
