package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BKHilton/Ember/internal/blob/core"
)

func TestFilesystemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverFilesystem || s.Root() != root {
		t.Fatalf("unexpected identity")
	}
	obj, err := s.Write(ctx, "reports/c1/weekly.json", []byte(`{"ok":true}`), "")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if obj.Location != filepath.Join(root, "reports", "c1", "weekly.json") {
		t.Fatalf("unexpected location %s", obj.Location)
	}
	if obj.ContentType != "application/json" {
		t.Fatalf("expected content type from extension, got %q", obj.ContentType)
	}
	if _, err := s.Write(ctx, "reports/c1/weekly.json", []byte(`{"ok":false}`), ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _, err := s.Read(ctx, "reports/c1/weekly.json")
	if err != nil || string(data) != `{"ok":false}` {
		t.Fatalf("read: %q %v", data, err)
	}
	if _, err := s.Write(ctx, "photos/c1/k1.png", []byte("img"), "image/png"); err != nil {
		t.Fatalf("write photo: %v", err)
	}

	list, err := s.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "reports/c1/weekly.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected two blobs, got %d", len(all))
	}

	if err := s.Delete(ctx, "photos/c1/k1.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "photos/c1/k1.png"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := s.Read(ctx, "photos/c1/k1.png"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFilesystemStoreRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../b"} {
		if _, err := s.Write(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestFilesystemStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "blobs")
	if _, err := New(root); err != nil {
		t.Fatalf("new: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("expected root directory to exist")
	}
}
