package mongo

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewRequiresURI(t *testing.T) {
	if _, err := New(context.Background(), "", ""); err == nil {
		t.Fatalf("expected missing uri error")
	}
}

func TestMongoIntegration(t *testing.T) {
	uri := os.Getenv("EMBER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("EMBER_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	backend, err := New(ctx, uri, "ember_test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.coll.Drop(context.Background())
		_ = backend.Close()
	})
	if data, err := backend.Load(ctx); err != nil || data != nil {
		t.Fatalf("expected empty load, got %q %v", data, err)
	}
	for _, payload := range []string{`{"version":1}`, `{"version":3}`} {
		if err := backend.Save(ctx, []byte(payload)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	data, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(string(data), `"version":3`) {
		t.Fatalf("unexpected payload %s", data)
	}
	count, err := backend.coll.CountDocuments(ctx, map[string]any{})
	if err != nil || count != 1 {
		t.Fatalf("expected exactly one state record, got %d %v", count, err)
	}
}
