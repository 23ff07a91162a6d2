package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements Storage on a directory tree. Useful for
// development and tests; production deployments typically use S3Storage.
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocal creates a directory-backed storage rooted at dir. baseURL is
// prepended to keys by URL and may be empty.
func NewLocal(dir, baseURL string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &LocalStorage{root: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put writes data under the resolved key.
func (l *LocalStorage) Put(_ context.Context, r io.Reader, size int64, opts ...PutOption) (*FileInfo, error) {
	o := &putOptions{}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == "" {
		key = buildKey(o.prefix, o.name, o.contentType)
	}

	full, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if size > 0 && written != size {
		return nil, fmt.Errorf("%w: wrote %d of %d bytes", ErrUploadFailed, written, size)
	}

	return &FileInfo{
		Key:         key,
		Name:        o.name,
		Size:        written,
		ContentType: o.contentType,
	}, nil
}

// Get opens a stored file.
func (l *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

// Delete removes a stored file.
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	full, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// URL joins the base URL and the key.
func (l *LocalStorage) URL(_ context.Context, key string) (string, error) {
	return l.baseURL + "/" + key, nil
}

// resolve maps a key to a path inside the root, rejecting traversal.
func (l *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: key %q", ErrAccessDenied, key)
	}
	return filepath.Join(l.root, clean), nil
}

var _ Storage = (*LocalStorage)(nil)
