package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
)

// DirStore serves artifacts from a local directory; keys are slash separated paths.
type DirStore struct {
	root string
}

var _ ports.ArtifactStore = (*DirStore)(nil)

// NewDirStore verifies that root is a directory.
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("model directory: %w", domain.ErrStorageNotConfigured)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model directory %s is not a directory", root)
	}
	return &DirStore{root: root}, nil
}

// Get opens the artifact; keys escaping the root are rejected.
func (d *DirStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(d.root)
	if err != nil {
		return nil, fmt.Errorf("open model directory: %w", err)
	}
	defer root.Close()

	f, err := root.Open(filepath.FromSlash(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", key, err)
	}
	return f, nil
}
