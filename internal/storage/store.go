package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Driver identifies a Bucket implementation.
type Driver string

const (
	// DriverFilesystem keeps blobs as files under a directory.
	DriverFilesystem Driver = "fs"
	// DriverMemory keeps blobs in process memory.
	DriverMemory Driver = "memory"
	// DriverS3 keeps blobs in an S3 compatible bucket.
	DriverS3 Driver = "s3"
)

var (
	// ErrExists is returned by Create when the key is already taken.
	ErrExists = errors.New("blob already exists")
	// ErrNotExist is returned when a key has no blob.
	ErrNotExist = errors.New("blob does not exist")
	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Bucket stores byte payloads by key.
type Bucket interface {
	// Create stores data under key. It fails with ErrExists if key is taken.
	Create(ctx context.Context, key string, data []byte) error

	// Read returns the payload stored under key, or ErrNotExist.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Driver reports the implementation.
	Driver() Driver
}

// CleanKey validates key and returns its normalized form.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q escapes the bucket", ErrInvalidKey, key)
	}
	return clean, nil
}
