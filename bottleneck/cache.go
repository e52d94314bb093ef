package bottleneck

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const cacheExt = ".btl"

// Cache stores bottleneck features in the workspace, one file per image
// content and extractor: <workspace>/<cache id>/<sha256>.btl.
// Entries are replaced atomically, so concurrent readers see either the old
// or the new entry.
type Cache struct {
	fs  billy.Filesystem
	dir string
}

// NewCache creates a cache under workspace for the extractor with cache id id,
// see Extractor.CacheID.
func NewCache(fs billy.Filesystem, workspace, id string) *Cache {
	return &Cache{fs: fs, dir: filepath.Join(workspace, id)}
}

// Key returns the cache key of raw image bytes.
func Key(raw []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(raw))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+cacheExt)
}

// Get returns the cached features for key. ok is false when there is no
// entry or the entry cannot be decoded, in which case it should be recomputed.
func (c *Cache) Get(key string) (features []uint32, ok bool, err error) {
	b, err := util.ReadFile(c.fs, c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bottleneck: cache get %s: %w", key, err)
	}
	if len(b) < 4 {
		return nil, false, nil
	}
	n := binary.LittleEndian.Uint32(b)
	if uint64(len(b)) != 4+4*uint64(n) {
		return nil, false, nil
	}
	features = make([]uint32, n)
	for i := range features {
		features[i] = binary.LittleEndian.Uint32(b[4+4*i:])
	}
	return features, true, nil
}

// Put stores features under key.
func (c *Cache) Put(key string, features []uint32) error {
	b := make([]byte, 4+4*len(features))
	binary.LittleEndian.PutUint32(b, uint32(len(features)))
	for i, f := range features {
		binary.LittleEndian.PutUint32(b[4+4*i:], f)
	}
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("bottleneck: cache mkdir %q: %w", c.dir, err)
	}
	tmp, err := c.fs.TempFile(c.dir, key+".tmp-")
	if err != nil {
		return fmt.Errorf("bottleneck: cache put %s: %w", key, err)
	}
	_, err = tmp.Write(b)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = c.fs.Rename(tmp.Name(), c.path(key))
	}
	if err != nil {
		c.fs.Remove(tmp.Name())
		return fmt.Errorf("bottleneck: cache put %s: %w", key, err)
	}
	return nil
}
