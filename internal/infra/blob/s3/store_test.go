package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/BKHilton/Ember/internal/blob/core"
)

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver")
	}
	obj, err := s.Write(ctx, "reports/c1/weekly.json", []byte(`{"ok":true}`), "application/json")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if obj.Location != "s3://mock-bucket/reports/c1/weekly.json" {
		t.Fatalf("unexpected location %s", obj.Location)
	}
	if obj.Size != int64(len(`{"ok":true}`)) {
		t.Fatalf("unexpected size %d", obj.Size)
	}
	data, got, err := s.Read(ctx, "reports/c1/weekly.json")
	if err != nil || string(data) != `{"ok":true}` {
		t.Fatalf("read: %q %v", data, err)
	}
	if got.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", got.ContentType)
	}
	if _, err := s.Write(ctx, "photos/c1/k1.png", []byte("png"), "image/png"); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	list, err := s.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "reports/c1/weekly.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
	if err := s.Delete(ctx, "photos/c1/k1.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "photos/c1/k1.png"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, _, err := s.Read(ctx, "missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestDecodeChunked(t *testing.T) {
	body, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n\r\n"))
	if !ok || string(body) != "hello" {
		t.Fatalf("unexpected decode %q %v", body, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("expected plain body to pass through")
	}
}
