package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"meetcore/internal/blob/core"
)

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver")
	}
	info, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader([]byte(`{"id":1}`)), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"origin": "test"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "snapshots/a.json" || info.Size != 8 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put error")
	}
	head, err := store.Head(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", head.ContentType)
	}
	got, rc, err := store.Get(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(payload) != `{"id":1}` || got.Size != head.Size {
		t.Fatalf("unexpected payload %q", string(payload))
	}
	list, err := store.List(ctx, "snapshots/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if empty, err := store.List(ctx, "other/"); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list for unmatched prefix")
	}
	ok, err := store.Delete(ctx, "snapshots/a.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, _ = store.Delete(ctx, "snapshots/a.json")
	if ok {
		t.Fatalf("second delete should report false")
	}
}

func TestStoreMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatalf("expected head error")
	}
	if _, _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatalf("expected get error")
	}
}

func TestStorePresignUnsupported(t *testing.T) {
	store := New()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestStoreListSortedAndIsolated(t *testing.T) {
	ctx := context.Background()
	store := New()
	meta := map[string]string{"round": "1"}
	for _, key := range []string{"b.json", "a.json", "c.json"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("data")), core.PutOptions{Metadata: meta}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	if list[0].Key != "a.json" || list[2].Key != "c.json" {
		t.Fatalf("expected sorted keys: %+v", list)
	}
	// mutating caller metadata must not leak into the store
	meta["round"] = "2"
	head, err := store.Head(ctx, "a.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["round"] != "1" {
		t.Fatalf("expected metadata isolation, got %q", head.Metadata["round"])
	}
}

func TestCopyMetadataNil(t *testing.T) {
	if copyMetadata(nil) != nil {
		t.Fatalf("expected nil pass-through")
	}
}
