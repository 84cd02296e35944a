// Package fs provides a filesystem-backed blob adapter. Blobs are stored as
// flat files under a configured directory, with a sidecar file holding the
// declared content type so it survives process restarts.
package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blinkhost/blink/pkg/blob"
)

// Scheme is the reference prefix for filesystem blobs.
const Scheme = "fs"

const metaSuffix = ".meta"

// Config holds configuration for the filesystem blob adapter.
type Config struct {
	// BasePath is the root directory for blob storage.
	BasePath string

	// CreateDir creates the base directory if it doesn't exist.
	// Default: true
	CreateDir bool

	// MaxBlobBytes rejects writes larger than this (0 = no adapter limit;
	// the upload coordinator applies its own cap regardless).
	MaxBlobBytes int64

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0755,
		FileMode:  0644,
	}
}

// Adapter is a filesystem-backed implementation of blob.Adapter.
type Adapter struct {
	mu       sync.RWMutex
	basePath string
	maxBytes int64
	fileMode os.FileMode
	closed   bool
}

// New creates a new filesystem blob adapter with the given configuration.
func New(cfg Config) (*Adapter, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}

	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	return &Adapter{
		basePath: cfg.BasePath,
		maxBytes: cfg.MaxBlobBytes,
		fileMode: cfg.FileMode,
	}, nil
}

// NewWithPath creates a new filesystem blob adapter with default configuration.
func NewWithPath(basePath string) (*Adapter, error) {
	return New(DefaultConfig(basePath))
}

// Scheme implements blob.Adapter.
func (a *Adapter) Scheme() string { return Scheme }

// blobPath returns the full filesystem path for a blob key. Keys are opaque
// identifiers minted by the store wrapper; anything that would escape the
// base directory is refused.
func (a *Adapter) blobPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", blob.ErrBlobNotFound
	}
	return filepath.Join(a.basePath, key), nil
}

// Write persists data under key. The blob is written to a temporary file and
// renamed into place so readers never observe partial content.
func (a *Adapter) Write(ctx context.Context, key string, data []byte, meta blob.Meta) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return blob.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return blob.ErrBlobTooLarge
	}

	path, err := a.blobPath(key)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, a.fileMode); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Sidecar carries the declared content type (line 1) and original
	// filename (line 2). Best-effort format, read back by ContentType.
	sidecar := meta.ContentType + "\n" + meta.Filename + "\n"
	if err := os.WriteFile(path+metaSuffix, []byte(sidecar), a.fileMode); err != nil {
		return err
	}

	return nil
}

// Read returns the complete bytes stored under key.
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, blob.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := a.blobPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, blob.ErrBlobNotFound
		}
		return nil, err
	}

	return data, nil
}

// ContentType returns the content type recorded at write time, or "" when
// the sidecar is missing.
func (a *Adapter) ContentType(ctx context.Context, key string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return "", blob.ErrStoreClosed
	}

	path, err := a.blobPath(key)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	ct, _, _ := strings.Cut(string(data), "\n")
	return ct, nil
}

// HealthCheck verifies the base directory is accessible.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return blob.ErrStoreClosed
	}

	_, err := os.Stat(a.basePath)
	return err
}

// Close marks the adapter as closed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	return nil
}

// BasePath returns the base path of the store (for testing).
func (a *Adapter) BasePath() string {
	return a.basePath
}

var _ blob.Adapter = (*Adapter)(nil)
