package core

import (
	"context"
	"fmt"
	"time"

	"github.com/BKHilton/Ember/internal/infra/persistence/document"
	"github.com/BKHilton/Ember/internal/infra/persistence/file"
	"github.com/BKHilton/Ember/internal/infra/persistence/memory"
	"github.com/BKHilton/Ember/internal/infra/persistence/mongo"
	"github.com/BKHilton/Ember/internal/infra/persistence/postgres"
	"github.com/BKHilton/Ember/internal/infra/persistence/sqlite"
	"github.com/BKHilton/Ember/pkg/domain"
	"go.uber.org/zap"
)

// DocumentStore is the durable store returned by OpenPersistentStore.
type DocumentStore = document.Store

// DocumentVersion is the schema version of documents written by this build.
const DocumentVersion = memory.CurrentVersion

// StorageDriver identifies where the persisted document lives.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-process only (tests / ephemeral)
	StorageFile     StorageDriver = "file"     // JSON file on local disk
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMongo    StorageDriver = "mongo"    // MongoDB server
)

// Remote returns true for drivers that write over the network.
func (d StorageDriver) Remote() bool {
	return d == StoragePostgres || d == StorageMongo
}

// StorageConfig selects and configures a storage driver.
type StorageConfig struct {
	Driver        StorageDriver
	Path          string // file and sqlite
	DSN           string // postgres
	MongoURI      string
	MongoDatabase string
	Timeout       time.Duration
	SaveAttempts  int
	Logger        *zap.Logger
}

// OpenPersistentStore opens the configured backend and hydrates the
// document from it. Remote drivers get a write timeout and retries.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine) (*document.Store, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageFile
	}

	var (
		backend document.Backend
		err     error
	)
	switch driver {
	case StorageMemory:
		backend = document.NewMemoryBackend(nil)
	case StorageFile:
		backend, err = file.New(cfg.Path)
	case StorageSQLite:
		backend, err = sqlite.New(cfg.Path)
	case StoragePostgres:
		backend, err = postgres.New(ctx, cfg.DSN)
	case StorageMongo:
		backend, err = mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}

	opts := document.Options{Logger: cfg.Logger}
	if driver.Remote() {
		opts.Timeout = cfg.Timeout
		if opts.Timeout <= 0 {
			opts.Timeout = 5 * time.Second
		}
		opts.SaveAttempts = cfg.SaveAttempts
		if opts.SaveAttempts <= 0 {
			opts.SaveAttempts = 3
		}
	}
	store, err := document.Open(ctx, backend, engine, opts)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}
