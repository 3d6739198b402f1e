package fsx

import (
	"context"
	"time"
)

// FileInfo represents information about a stored object
type FileInfo struct {
	Name        string            // Base name of the object
	Size        int64             // Size in bytes
	ModTime     time.Time         // Last modification time
	ContentType string            // MIME type (when available)
	Metadata    map[string]string // Additional metadata
}

// WriteOptions carries per-object attributes for a write
type WriteOptions struct {
	ContentType  string
	CacheControl string
}

// WriteOption configures a single write
type WriteOption func(*WriteOptions)

// WithContentType sets the stored content type
func WithContentType(contentType string) WriteOption {
	return func(o *WriteOptions) {
		o.ContentType = contentType
	}
}

// WithCacheControl sets the Cache-Control header served with the object
func WithCacheControl(value string) WriteOption {
	return func(o *WriteOptions) {
		o.CacheControl = value
	}
}

// ApplyWriteOptions folds opts over the defaults
func ApplyWriteOptions(opts ...WriteOption) WriteOptions {
	o := WriteOptions{ContentType: "application/octet-stream"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FileReader provides read-only operations
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Stat(ctx context.Context, path string) (FileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// FileWriter provides write operations. Writing an existing path overwrites it.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, data []byte, opts ...WriteOption) error
}

// FileDeleter provides deletion operations
type FileDeleter interface {
	DeleteFile(ctx context.Context, path string) error
}

// ContainerEnsurer creates the bucket or root directory when it is missing.
// Implementations must be safe to call repeatedly.
type ContainerEnsurer interface {
	EnsureContainer(ctx context.Context) error
}

// URLResolver maps a stored path to the URL clients use to fetch it
type URLResolver interface {
	PublicURL(path string) string
}

// ObjectStore combines everything the asset publisher needs
type ObjectStore interface {
	FileReader
	FileWriter
	FileDeleter
	ContainerEnsurer
	URLResolver
}
