package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	coreblob "worldtrip/internal/blob/core"
)

func TestStorePutOverwritesAndReads(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.Driver() != coreblob.DriverFilesystem || store.Root() != root {
		t.Fatalf("unexpected driver %v root %s", store.Driver(), store.Root())
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "overlay/packages.json", bytes.NewBufferString("[]"), coreblob.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := store.Put(ctx, "overlay/packages.json", bytes.NewBufferString(`[{"id":1}]`), coreblob.PutOptions{ContentType: "application/json", Metadata: map[string]string{"v": "2"}})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if info.Size != 10 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	got, rc, err := store.Get(ctx, "overlay/packages.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != `[{"id":1}]` || got.ContentType != "application/json" || got.Metadata["v"] != "2" {
		t.Fatalf("unexpected read %s %+v", b, got)
	}
	if _, statErr := os.Stat(filepath.Join(root, "overlay", "packages.json")); statErr != nil {
		t.Fatalf("expected file on disk: %v", statErr)
	}
}

func TestStoreMissingKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "nope.json"); !errors.Is(err, coreblob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if _, err := store.Head(ctx, "nope.json"); !errors.Is(err, coreblob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	deleted, err := store.Delete(ctx, "nope.json")
	if err != nil || deleted {
		t.Fatalf("expected delete of missing key to report false, got %v %v", deleted, err)
	}
}

func TestStoreReadsFilesWithoutSidecar(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "database.json"), []byte(`{"packages":[]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := New(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	info, rc, err := store.Get(context.Background(), "database.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = rc.Close()
	if info.Size != 15 || info.ContentType != "" {
		t.Fatalf("unexpected info %+v", info)
	}
	list, err := store.List(context.Background(), "")
	if err != nil || len(list) != 1 || list[0].Key != "database.json" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
}

func TestStoreDeleteAndList(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"overlay/orders.json", "overlay/customers.json", "other.txt"} {
		if _, err := store.Put(ctx, key, bytes.NewBufferString("x"), coreblob.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "overlay/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "overlay/customers.json" || list[1].Key != "overlay/orders.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	deleted, err := store.Delete(ctx, "other.txt")
	if err != nil || !deleted {
		t.Fatalf("expected delete success, err=%v deleted=%v", err, deleted)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected sidecars to be removed with data, got %+v", all)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"", "  ", "../escape", "/abs", "x.meta"} {
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), coreblob.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}
