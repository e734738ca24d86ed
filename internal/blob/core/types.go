// Package core defines the blob storage contract shared by the backends.
// Blobs hold generated report files and contact photos.
package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory"
)

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	Modified    time.Time `json:"modified"`
	Location    string    `json:"location"`
}

// Store is a small key/value blob abstraction. Write replaces any existing
// blob under the same key.
type Store interface {
	Write(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Read(ctx context.Context, key string) ([]byte, Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Driver() Driver
}

// ErrNotFound is returned by Read and Delete for unknown keys.
var ErrNotFound = errors.New("blob not found")

// ValidateKey rejects empty keys, absolute keys and keys escaping their root.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return errors.New("empty blob key")
	case key[0] == '/':
		return errors.New("invalid absolute blob key")
	}
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return errors.New("invalid blob key contains '..'")
		}
	}
	return nil
}
