package fsxlocal

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/fsx"
)

// LocalFileSystem implements fsx.ObjectStore on local disk. Objects are
// served by the HTTP layer under publicBaseURL.
type LocalFileSystem struct {
	basePath      string // Root directory for all objects
	publicBaseURL string // URL prefix the root directory is served under
}

// NewLocalFileSystem creates a store rooted at basePath. The directory is
// created lazily by EnsureContainer or the first write.
// publicBaseURL: e.g. "/images" or "https://cdn.example.com/images"
func NewLocalFileSystem(basePath, publicBaseURL string) (*LocalFileSystem, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fsx.Wrap(fsx.ErrInvalidPath, basePath, err)
	}

	if publicBaseURL == "" {
		publicBaseURL = "/images"
	}

	return &LocalFileSystem{
		basePath:      absPath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// ============================================================================
// FileReader Implementation
// ============================================================================

func (fs *LocalFileSystem) ReadFile(ctx context.Context, name string) ([]byte, error) {
	fullPath, err := fs.fullPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fsx.NotFound(name)
		}
		return nil, fsx.Wrap(fsx.ErrReadFailed, name, err)
	}
	return data, nil
}

func (fs *LocalFileSystem) Stat(ctx context.Context, name string) (fsx.FileInfo, error) {
	fullPath, err := fs.fullPath(name)
	if err != nil {
		return fsx.FileInfo{}, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fsx.FileInfo{}, fsx.NotFound(name)
		}
		return fsx.FileInfo{}, fsx.Wrap(fsx.ErrReadFailed, name, err)
	}

	return fsx.FileInfo{
		Name:        info.Name(),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: detectContentType(fullPath),
		Metadata:    make(map[string]string),
	}, nil
}

func (fs *LocalFileSystem) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := fs.fullPath(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fsx.Wrap(fsx.ErrReadFailed, name, err)
	}
	return true, nil
}

// ============================================================================
// FileWriter Implementation
// ============================================================================

// WriteFile writes data atomically through a temp file in the same
// directory. The content type is implied by the extension on disk.
func (fs *LocalFileSystem) WriteFile(ctx context.Context, name string, data []byte, opts ...fsx.WriteOption) error {
	fullPath, err := fs.fullPath(name)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fsx.Wrap(fsx.ErrWriteFailed, name, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fsx.Wrap(fsx.ErrWriteFailed, name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fsx.Wrap(fsx.ErrWriteFailed, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fsx.Wrap(fsx.ErrWriteFailed, name, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fsx.Wrap(fsx.ErrWriteFailed, name, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fsx.Wrap(fsx.ErrWriteFailed, name, err)
	}

	return nil
}

// ============================================================================
// FileDeleter Implementation
// ============================================================================

func (fs *LocalFileSystem) DeleteFile(ctx context.Context, name string) error {
	fullPath, err := fs.fullPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fsx.Wrap(fsx.ErrDeleteFailed, name, err)
	}
	return nil
}

// ============================================================================
// Container / URL
// ============================================================================

// EnsureContainer creates the root directory if needed
func (fs *LocalFileSystem) EnsureContainer(ctx context.Context) error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fsx.Wrap(fsx.ErrContainerFailed, fs.basePath, err)
	}
	return nil
}

// PublicURL returns publicBaseURL joined with the slash-separated name
func (fs *LocalFileSystem) PublicURL(name string) string {
	return fs.publicBaseURL + "/" + strings.TrimLeft(path.Clean("/"+name), "/")
}

// GetBasePath returns the base path
func (fs *LocalFileSystem) GetBasePath() string {
	return fs.basePath
}

// ============================================================================
// Helper Methods
// ============================================================================

// fullPath resolves name under basePath, rejecting anything that escapes it
func (fs *LocalFileSystem) fullPath(name string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))
	if clean == "/" {
		return "", fsx.InvalidPath(name)
	}
	if strings.Contains(name, "..") {
		return "", fsx.InvalidPath(name)
	}
	return filepath.Join(fs.basePath, filepath.FromSlash(clean)), nil
}

// detectContentType detects MIME type from file extension
func detectContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
