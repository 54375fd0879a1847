package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirBucket keeps each blob as a file under a root directory. The root is
// created on first write, so opening a bucket over a missing directory is
// fine for reads and listings.
type DirBucket struct {
	root string
}

// NewDirBucket returns a bucket rooted at dir.
func NewDirBucket(dir string) *DirBucket {
	if dir == "" {
		dir = "."
	}
	return &DirBucket{root: dir}
}

// Driver returns DriverFilesystem.
func (b *DirBucket) Driver() Driver { return DriverFilesystem }

// Root returns the directory blobs are stored under.
func (b *DirBucket) Root() string { return b.root }

func (b *DirBucket) pathFor(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// Create writes data to a new file. The file is opened with O_EXCL so two
// writers can never both claim the same key.
func (b *DirBucket) Create(_ context.Context, key string, data []byte) error {
	p, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

// Read returns the contents of the file for key.
func (b *DirBucket) Read(_ context.Context, key string) ([]byte, error) {
	p, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return nil, err
	}
	return data, nil
}

// List walks the root and returns the keys of regular files starting with
// prefix. A missing root lists as empty.
func (b *DirBucket) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == b.root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list %s: %w", b.root, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the file for key.
func (b *DirBucket) Delete(_ context.Context, key string) error {
	p, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
