package postgres

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/BKHilton/Ember/internal/infra/persistence/document"
	"github.com/BKHilton/Ember/internal/infra/persistence/postgres/testutil"
	"github.com/BKHilton/Ember/pkg/domain"
)

func TestNewCreatesStateTable(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	backend, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS ember_state") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.Execs)
	}
	if backend.Name() != "postgres" || backend.DB() != db {
		t.Fatalf("unexpected backend identity")
	}
}

func TestBackendRoundTripThroughDocumentStore(t *testing.T) {
	db, _ := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	backend, err := New(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	store, err := document.Open(context.Background(), backend, nil, document.Options{Timeout: time.Second, SaveAttempts: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var churchID string
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		c, err := tx.CreateChurch(domain.Church{Name: "Grace"})
		if err != nil {
			return err
		}
		churchID = c.ID
		_, err = tx.CreateCampus(domain.Campus{ChurchID: c.ID, Name: "Main"})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	payload, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(string(payload), churchID) {
		t.Fatalf("expected persisted document to contain church %s", churchID)
	}
}

func TestNewFailsWhenPingFails(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := New(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestSaveAndLoadErrorsAreWrapped(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	backend, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conn.FailExec = true
	if err := backend.Save(context.Background(), []byte("{}")); err == nil || !strings.Contains(err.Error(), "upsert") {
		t.Fatalf("expected upsert error, got %v", err)
	}
	conn.FailQuery = true
	if _, err := backend.Load(context.Background()); err == nil {
		t.Fatalf("expected select error")
	}
}

func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("EMBER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EMBER_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	backend, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	if err := backend.Save(ctx, []byte(`{"version":3}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	payload, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(string(payload), `"version"`) {
		t.Fatalf("unexpected payload %s", payload)
	}
}
