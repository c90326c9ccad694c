package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"CTIScraper/internal/ports"
)

// ModelCache mirrors remote artifacts on local disk. Concurrent requests for
// the same key share one download.
type ModelCache struct {
	dir   string
	store ports.ArtifactStore
	group singleflight.Group
}

// NewModelCache creates dir when missing. The store must not be nil.
func NewModelCache(dir string, store ports.ArtifactStore) (*ModelCache, error) {
	if store == nil {
		return nil, fmt.Errorf("model cache: artifact store is required")
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ml_models")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &ModelCache{dir: dir, store: store}, nil
}

// Path returns the cache file for key: <sha256(key)[:12]>_<basename>.
func (c *ModelCache) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])[:12]+"_"+path.Base(key))
}

// Fetch returns the local path of key, downloading it on first use.
func (c *ModelCache) Fetch(ctx context.Context, key string) (string, error) {
	local := c.Path(key)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	_, err, _ := c.group.Do(key, func() (any, error) {
		if _, err := os.Stat(local); err == nil {
			return nil, nil
		}
		return nil, c.download(ctx, key, local)
	})
	if err != nil {
		return "", err
	}
	return local, nil
}

func (c *ModelCache) download(ctx context.Context, key, local string) (err error) {
	body, err := c.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get artifact %s: %w", key, err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), local); err != nil {
		return fmt.Errorf("store artifact %s: %w", key, err)
	}
	return nil
}

// Invalidate removes the cached copy of key.
func (c *ModelCache) Invalidate(key string) error {
	if err := os.Remove(c.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cached %s: %w", key, err)
	}
	return nil
}
