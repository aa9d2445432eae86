// Package archive persists whole-state snapshots of the competition store to
// a blob backend and restores them. Snapshots are operational backups, not a
// data-export surface: the payload is the store's own snapshot JSON.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetcore/internal/blob"
	"meetcore/internal/core"
	"meetcore/internal/infra/persistence/memory"
)

// StateStore is the slice of the persistent store the archiver needs. All
// bundled stores satisfy it (the SQL stores re-persist on restore).
type StateStore interface {
	ExportState() memory.Snapshot
	RestoreState(ctx context.Context, snapshot memory.Snapshot) error
}

const (
	keyPrefix   = "snapshots/"
	contentType = "application/json"
)

// Archiver implements core.SnapshotArchive over a blob store.
type Archiver struct {
	blobs blob.Store
	state StateStore
	now   func() time.Time
}

var _ core.SnapshotArchive = (*Archiver)(nil)

// New returns an archiver writing snapshots of state into blobs.
func New(blobs blob.Store, state StateStore) *Archiver {
	return &Archiver{blobs: blobs, state: state, now: func() time.Time { return time.Now().UTC() }}
}

// Archive exports the current store state and writes it under a fresh
// timestamped key. Keys sort lexicographically by creation time.
func (a *Archiver) Archive(ctx context.Context) (core.SnapshotInfo, error) {
	snapshot := a.state.ExportState()
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return core.SnapshotInfo{}, fmt.Errorf("encode snapshot: %w", err)
	}
	createdAt := a.now().UTC()
	key := fmt.Sprintf("%s%s-%s.json", keyPrefix, createdAt.Format("20060102T150405.000Z"), uuid.NewString())
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"competitors":        strconv.Itoa(len(snapshot.Competitors)),
			"events":             strconv.Itoa(len(snapshot.Events)),
			"relay_teams":        strconv.Itoa(len(snapshot.RelayTeams)),
			"individual_results": strconv.Itoa(len(snapshot.IndividualResults)),
			"team_results":       strconv.Itoa(len(snapshot.TeamResults)),
		},
	})
	if err != nil {
		return core.SnapshotInfo{}, fmt.Errorf("store snapshot: %w", err)
	}
	return core.SnapshotInfo{Key: info.Key, Size: info.Size, CreatedAt: createdAt}, nil
}

// List returns the archived snapshots, newest first.
func (a *Archiver) List(ctx context.Context) ([]core.SnapshotInfo, error) {
	infos, err := a.blobs.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]core.SnapshotInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, core.SnapshotInfo{Key: info.Key, Size: info.Size, CreatedAt: info.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Restore fetches the snapshot stored under key and replaces the store state
// with it. Keys outside the archive prefix and keys without a stored object
// both report core.ErrNotFound so callers can distinguish missing snapshots
// from restore failures.
func (a *Archiver) Restore(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, keyPrefix) {
		return fmt.Errorf("invalid snapshot key %q: %w", key, core.ErrNotFound{Entity: "snapshot", ID: key})
	}
	_, rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNotFound{Entity: "snapshot", ID: key}, err)
	}
	defer func() { _ = rc.Close() }()
	var snapshot memory.Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if err := a.state.RestoreState(ctx, snapshot); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	return nil
}
