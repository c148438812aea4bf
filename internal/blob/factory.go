package blob

import (
	"context"
	"fmt"
)

// Options selects and configures a backend.
type Options struct {
	Driver     Driver
	FSRoot     string
	SQLitePath string
	S3         S3Config
}

// Open builds the Store named by opts.Driver. An empty driver means fs.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(opts.SQLitePath)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
