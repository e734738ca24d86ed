package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/BKHilton/Ember/pkg/domain"
)

func TestOpenPersistentStoreDrivers(t *testing.T) {
	dir := t.TempDir()
	cases := []StorageConfig{
		{Driver: StorageMemory},
		{Driver: StorageFile, Path: filepath.Join(dir, "ember.json")},
		{Driver: StorageSQLite, Path: filepath.Join(dir, "ember.db")},
	}
	for _, cfg := range cases {
		t.Run(string(cfg.Driver), func(t *testing.T) {
			store, err := OpenPersistentStore(context.Background(), cfg, nil)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			svc := NewService(store, WithClock(newTestClock(baseTime)))
			seedChurch(t, svc, "Grace")
			if store.Saves() < 2 {
				t.Fatalf("expected the committed transaction to be flushed, got %d saves", store.Saves())
			}
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	cfg := StorageConfig{Driver: StorageFile, Path: filepath.Join(t.TempDir(), "ember.json")}
	store, err := OpenPersistentStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	church, _ := seedChurch(t, NewService(store), "Grace")
	_ = store.Close()

	reopened, err := OpenPersistentStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	svc := NewService(reopened)
	got, ok := svc.FindChurch(context.Background(), church.ID)
	if !ok || got.Name != "Grace" || len(got.Campuses) != 1 {
		t.Fatalf("expected church after reopen, got %+v", got)
	}
	if _, err := svc.CreateContact(context.Background(), CreateContactInput{ChurchID: church.ID, FirstName: "Ari"}); err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
}

func TestOpenPersistentStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "etcd"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if !StoragePostgres.Remote() || !StorageMongo.Remote() || StorageSQLite.Remote() {
		t.Fatalf("unexpected remote classification")
	}
}

func TestOpenPersistentStoreUsesRulesEngine(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateChurch(domain.Church{Name: "No campus"})
		return err
	})
	if err == nil {
		t.Fatalf("expected default rules to block a church without campus")
	}
}
