package storage

import (
	"context"
	"fmt"
)

// Config selects and configures a Bucket driver.
type Config struct {
	Driver Driver
	Dir    string // fs driver root
	S3     S3Config
}

// Open returns the Bucket described by cfg. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Bucket, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewDirBucket(cfg.Dir), nil
	case DriverMemory:
		return NewMemoryBucket(), nil
	case DriverS3:
		return NewS3Bucket(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
