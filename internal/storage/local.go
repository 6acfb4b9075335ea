package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage implements Uploader using local disk. Uploaded assets land in
// an assets directory under the configured root and are referenced by
// absolute path, which is durable for renderers running on the same host.
type LocalStorage struct {
	rootDir   string
	assetsDir string
}

// NewLocalStorage creates a LocalStorage rooted at rootDir.
// If rootDir is empty, a directory under os.TempDir() is used.
// The root and assets directories are created if they don't exist.
func NewLocalStorage(rootDir string) (*LocalStorage, error) {
	if rootDir == "" {
		rootDir = filepath.Join(os.TempDir(), "slidecast")
	}

	assetsDir := filepath.Join(rootDir, "assets")
	if err := os.MkdirAll(assetsDir, 0750); err != nil {
		return nil, fmt.Errorf("create assets directory: %w", err)
	}

	return &LocalStorage{rootDir: rootDir, assetsDir: assetsDir}, nil
}

// RootDir returns the storage root directory.
func (s *LocalStorage) RootDir() string {
	return s.rootDir
}

// Upload writes data to the assets directory and returns the absolute path.
func (s *LocalStorage) Upload(ctx context.Context, key string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dst := filepath.Join(s.assetsDir, filepath.Base(key))
	f, err := os.Create(dst) // #nosec G304 - dst is constructed from a sanitized key
	if err != nil {
		return "", fmt.Errorf("create asset file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write asset file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close asset file: %w", err)
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		return "", fmt.Errorf("resolve asset path: %w", err)
	}
	return abs, nil
}
