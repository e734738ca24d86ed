// Package blob is the facade over the blob storage backends. Callers depend
// on Store and obtain one from Open.
package blob

import (
	"context"
	"fmt"

	"github.com/BKHilton/Ember/internal/blob/core"
	"github.com/BKHilton/Ember/internal/infra/blob/fs"
	"github.com/BKHilton/Ember/internal/infra/blob/memory"
	"github.com/BKHilton/Ember/internal/infra/blob/s3"
)

type (
	Store  = core.Store
	Object = core.Object
	Driver = core.Driver
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrNotFound is returned for unknown keys.
var ErrNotFound = core.ErrNotFound

// S3Config configures the s3 driver.
type S3Config = s3.Config

// Config selects and configures a blob backend.
type Config struct {
	Driver string
	Root   string
	S3     S3Config
}

// Open selects a Store implementation. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fs.New(cfg.Root)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memory.New() }

// NewS3Mock returns an S3 Store wired to an in-process fake endpoint.
func NewS3Mock() Store { return s3.NewMockForTests() }
