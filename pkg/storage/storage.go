// Package storage provides the file destinations consumed by route upload
// descriptors. The server core stages an uploaded file into a Storage before
// invoking the route handler; handlers receive the resulting FileInfo.
package storage

import (
	"context"
	"io"
)

// Storage is a file destination for uploads.
type Storage interface {
	// Put writes data under a generated or caller-supplied key and returns
	// the stored file's metadata.
	Put(ctx context.Context, r io.Reader, size int64, opts ...PutOption) (*FileInfo, error)

	// Get opens the stored file. The caller closes the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the stored file.
	Delete(ctx context.Context, key string) error

	// URL returns an access URL for the stored file.
	URL(ctx context.Context, key string) (string, error)
}

// FileInfo describes a stored file.
type FileInfo struct {
	// Key is the storage key the file was written under.
	Key string `json:"key"`

	// Name is the original client-side file name, when known.
	Name string `json:"name,omitempty"`

	// Size is the stored size in bytes.
	Size int64 `json:"size"`

	// ContentType is the declared MIME type.
	ContentType string `json:"content_type,omitempty"`
}

// putOptions collects Put customizations.
type putOptions struct {
	key         string
	prefix      string
	name        string
	contentType string
}

// PutOption customizes a Put call.
type PutOption func(*putOptions)

// WithKey pins the storage key instead of generating one.
func WithKey(key string) PutOption {
	return func(o *putOptions) {
		o.key = key
	}
}

// WithPrefix namespaces the generated key under a path segment.
func WithPrefix(prefix string) PutOption {
	return func(o *putOptions) {
		o.prefix = prefix
	}
}

// WithName records the original file name in the returned FileInfo.
func WithName(name string) PutOption {
	return func(o *putOptions) {
		o.name = name
	}
}

// WithContentType sets the declared MIME type.
func WithContentType(ct string) PutOption {
	return func(o *putOptions) {
		o.contentType = ct
	}
}
