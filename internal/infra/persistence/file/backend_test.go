package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := New(filepath.Join(dir, "nested", "doc.json"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data, err := b.Load(context.Background())
	if err != nil || data != nil {
		t.Fatalf("expected empty load, got %q %v", data, err)
	}
	if err := b.Save(context.Background(), []byte(`{"version":3}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := b.Save(context.Background(), []byte(`{"version":3,"churches":{}}`)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	data, err = b.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"version":3,"churches":{}}` {
		t.Fatalf("unexpected payload %s", data)
	}
	entries, err := os.ReadDir(filepath.Dir(b.Path()))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
	if b.Name() != "file" || b.Close() != nil {
		t.Fatalf("unexpected backend identity")
	}
}

func TestBackendSaveHonoursCancelledContext(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "doc.json"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Save(ctx, []byte("{}")); err == nil {
		t.Fatalf("expected cancelled save to fail")
	}
}

func TestLoadReportsUnreadablePath(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := b.Load(context.Background()); err == nil {
		t.Fatalf("expected reading a directory to fail")
	}
}
