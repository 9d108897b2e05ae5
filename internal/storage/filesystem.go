package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FilesystemBackend stores each document as a JSON file under a base
// directory. Counter files are guarded by a process-wide mutex, so a data
// directory must not be shared between server processes.
type FilesystemBackend struct {
	basePath string
	mu       sync.Mutex
}

func NewFilesystemBackend(basePath string) (*FilesystemBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path %s: %w", basePath, err)
	}

	return &FilesystemBackend{basePath: basePath}, nil
}

func (f *FilesystemBackend) path(key string) string {
	return filepath.Join(f.basePath, filepath.FromSlash(key)+".json")
}

func (f *FilesystemBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (f *FilesystemBackend) Put(ctx context.Context, key string, data []byte) error {
	path := f.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (f *FilesystemBackend) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (f *FilesystemBackend) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var current int64
	data, err := os.ReadFile(f.path(key))
	if err == nil {
		current, err = strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
		}
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}

	next := current + 1
	if err := f.Put(ctx, key, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}
