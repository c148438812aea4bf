// Package blob defines a minimal key/value object store used to persist
// whole ledger snapshots, with filesystem, memory, SQLite and S3 backends.
package blob

import (
	"context"
	"errors"
	"time"
)

// Driver identifies a concrete backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default)
	DriverMemory     Driver = "memory" // tests
	DriverSQLite     Driver = "sqlite" // single file database
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob: not found")

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store writes and reads whole objects. Put replaces any existing object
// under the same key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, []byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

// Closer is implemented by stores holding resources.
type Closer interface {
	Close() error
}

// Close releases st if it holds resources.
func Close(st Store) error {
	if c, ok := st.(Closer); ok {
		return c.Close()
	}
	return nil
}
