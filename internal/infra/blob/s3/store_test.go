package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"worldtrip/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %v", s.Driver())
	}
	ctx := context.Background()
	if _, err := s.Put(ctx, "overlay/orders.json", bytes.NewReader([]byte("[]")), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "overlay/orders.json", bytes.NewReader([]byte(`[{"id":9}]`)), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	info, rc, err := s.Get(ctx, "overlay/orders.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != `[{"id":9}]` || info.ContentType != "application/json" {
		t.Fatalf("unexpected object %s %+v", b, info)
	}
	list, err := s.List(ctx, "overlay/")
	if err != nil || len(list) != 1 || list[0].Key != "overlay/orders.json" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
}

func TestMockStoreMissingKeys(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	if _, err := s.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	deleted, err := s.Delete(ctx, "nope")
	if err != nil || deleted {
		t.Fatalf("expected missing delete to report false, got %v %v", deleted, err)
	}
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	deleted, err = s.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("expected delete success, got %v %v", deleted, err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", AccessKeyID: "a", SecretAccessKey: "s", PathStyle: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.bucket != "b" {
		t.Fatalf("unexpected bucket %s", s.bucket)
	}
}
