package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrInvalidKey is returned when a key does not name a plain file.
var ErrInvalidKey = errors.New("invalid storage key")

// LocalStorage implements the Storage interface using a directory on disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage instance rooted at dir.
// If dir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "audiotrim")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the storage directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// path resolves key inside the storage directory. Keys never address
// subdirectories.
func (s *LocalStorage) path(key string) (string, error) {
	base := filepath.Base(key)
	if base != key || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, base), nil
}

// Put writes data to a file named key. The file is written under a temporary
// name first so readers never observe a partial object.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, _ string) (Object, error) {
	select {
	case <-ctx.Done():
		return Object{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dst, err := s.path(key)
	if err != nil {
		return Object{}, err
	}

	f, err := os.CreateTemp(s.dir, ".put_*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	n, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return Object{}, fmt.Errorf("write object: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return Object{}, fmt.Errorf("close object: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return Object{}, fmt.Errorf("store object: %w", err)
	}

	return Object{Key: key, Size: n}, nil
}

// Open opens the file stored under key.
func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p) // #nosec G304 - path is confined to the storage directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("open object: %w", err)
	}

	return f, nil
}

// Delete removes the file stored under key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
