package blob

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("MEETCORE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver")
	}
}

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("MEETCORE_BLOB_DRIVER", "")
	t.Setenv("MEETCORE_BLOB_FS_ROOT", t.TempDir())
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected filesystem driver")
	}
	if _, err := store.Put(context.Background(), "probe.json", bytes.NewReader([]byte("{}")), PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestOpenInvalidDriver(t *testing.T) {
	t.Setenv("MEETCORE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("expected error for invalid driver")
	}
}

func TestOpenS3DriverRequiresBucket(t *testing.T) {
	t.Setenv("MEETCORE_BLOB_DRIVER", "s3")
	t.Setenv("MEETCORE_BLOB_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestMockS3RoundTrip(t *testing.T) {
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("expected DriverS3")
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "snapshots/latest.json", bytes.NewReader([]byte(`{"v":1}`)), PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := store.Get(ctx, "snapshots/latest.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(payload) != `{"v":1}` {
		t.Fatalf("unexpected payload %q", string(payload))
	}
	list, err := store.List(ctx, "snapshots/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
}
